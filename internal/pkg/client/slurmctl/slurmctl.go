package slurmctl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"slurmtools/internal/pkg/client/slurmctl/models"
)

// Package-level default Client for convenience wiring.
var defaultClient *Client

// SetDefault sets the package-level default slurmctl Client.
func SetDefault(c *Client) { defaultClient = c }

// Default returns the package-level default slurmctl Client.
func Default() *Client { return defaultClient }

// ExecCommandFunc matches exec.CommandContext so tests can substitute a fake.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client reads the live queue and node inventory through the slurmctld
// command-line tools.
type Client struct {
	execCommand ExecCommandFunc
	logger      *slog.Logger
}

func (c *Client) Set(exec ExecCommandFunc, logger *slog.Logger) *Client {
	c.execCommand = exec
	c.logger = logger
	return c
}

// GetNodes reads the node inventory via sinfo -h -N -o "%N %P %t %m %c %X %Y %Z %G":
// name, partition, state, memory, cpus, sockets, cores, threads, gres.
// An optional partition filter maps to -p.
func (c *Client) GetNodes(ctx context.Context, condPartition string) (models.Nodes, error) {
	nodes := make(models.Nodes, 0)
	args := []string{"-h", "-N"}
	if condPartition != "" {
		args = append(args, "-p", condPartition)
	}
	args = append(args, "-o", "%N %P %t %m %c %X %Y %Z %G")
	cmd := c.execCommand(ctx, "sinfo", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("failed to exec sinfo command", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec sinfo command")
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) != 9 {
			c.logger.Warn("invalid sinfo output line, skip", "line", line)
			continue
		}
		memory, _ := strconv.Atoi(fields[3])
		cpus, _ := strconv.Atoi(fields[4])
		socket, _ := strconv.Atoi(fields[5])
		cores, _ := strconv.Atoi(fields[6])
		threads, _ := strconv.Atoi(fields[7])
		node, ok := nodes[fields[0]]
		if !ok {
			node = &models.Node{
				Name:      fields[0],
				Partition: make([]string, 0),
				State:     fields[2],
				Memory:    memory,
				CPUs:      cpus,
				Socket:    socket,
				Cores:     cores,
				Threads:   threads,
				GPU:       fields[8],
			}
			nodes[fields[0]] = node
		}
		node.Partition = append(node.Partition, fields[1])
	}

	return nodes, nil
}

// GetJobs reads the scheduling queue via
// squeue -h -o "%i|%t|%u|%a|%C|%N|%P|%q|%r":
// JOBID ST USER ACCOUNT CPUS NODELIST PARTITION QOS REASON.
func (c *Client) GetJobs(ctx context.Context) (models.Jobs, error) {
	jobs := make(models.Jobs, 0)
	cmd := c.execCommand(ctx, "squeue", "-h", "-o", "%i|%t|%u|%a|%C|%N|%P|%q|%r")
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("unable to get all jobs in scheduling queue", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec squeue command")
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, "|")
		if len(fields) != 9 {
			c.logger.Warn("invalid squeue output line, skip", "line", line)
			continue
		}
		jobs = append(jobs, models.Job{
			Jobid:     fields[0],
			State:     fields[1],
			User:      fields[2],
			Account:   fields[3],
			CPUs:      fields[4],
			Nodelist:  fields[5],
			Partition: fields[6],
			QoS:       fields[7],
			Reason:    fields[8],
		})
	}

	return jobs, nil
}
