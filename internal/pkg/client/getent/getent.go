package getent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"slurmtools/internal/pkg/model"
)

// ExecCommandFunc matches exec.CommandContext so tests can substitute a fake.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client enumerates OS users and groups through getent(1), which covers
// files, NIS and sssd-backed directories alike.
type Client struct {
	execCommand ExecCommandFunc
	logger      *slog.Logger
}

func (c *Client) Set(exec ExecCommandFunc, logger *slog.Logger) *Client {
	c.execCommand = exec
	c.logger = logger
	return c
}

// Groups runs `getent group` and parses name:password:gid:members lines.
// Group names are lower-cased since Slurm account names are conventionally
// lowercase.
func (c *Client) Groups(ctx context.Context) ([]model.Group, error) {
	cmd := c.execCommand(ctx, "getent", "group")
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("failed to exec getent group", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec getent group")
	}
	groups := make([]model.Group, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, ":")
		if len(fields) < 3 {
			c.logger.Warn("invalid getent group line, skip", "line", line)
			continue
		}
		gid, err := strconv.Atoi(fields[2])
		if err != nil {
			c.logger.Warn("invalid gid in getent group line, skip", "line", line)
			continue
		}
		groups = append(groups, model.Group{
			Name: strings.ToLower(fields[0]),
			GID:  gid,
		})
	}
	return groups, nil
}

// Users runs `getent passwd` and parses
// name:password:uid:gid:fullname:homedir:shell lines. No eligibility
// filtering happens here.
func (c *Client) Users(ctx context.Context) ([]model.Identity, error) {
	cmd := c.execCommand(ctx, "getent", "passwd")
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("failed to exec getent passwd", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec getent passwd")
	}
	users := make([]model.Identity, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, ":")
		if len(fields) != 7 {
			c.logger.Warn("invalid getent passwd line, skip", "line", line)
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			c.logger.Warn("invalid uid in getent passwd line, skip", "line", line)
			continue
		}
		gid, err := strconv.Atoi(fields[3])
		if err != nil {
			c.logger.Warn("invalid gid in getent passwd line, skip", "line", line)
			continue
		}
		users = append(users, model.Identity{
			Username: fields[0],
			UID:      uid,
			GID:      gid,
			FullName: fields[4],
			HomeDir:  fields[5],
			Shell:    fields[6],
		})
	}
	return users, nil
}
