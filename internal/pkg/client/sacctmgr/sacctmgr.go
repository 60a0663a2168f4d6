package sacctmgr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"slurmtools/internal/pkg/model"
)

// ExecCommandFunc matches exec.CommandContext so tests can substitute a fake.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// listFormat selects the 19 positional columns of the association listing.
const listFormat = "cluster,account,user,partition,fairshare,grpjobs,grptres," +
	"grpsubmit,grpwall,grptresmins,maxjobs,maxtres,maxtrespernode,maxsubmit," +
	"maxwall,maxtresmins,qos,defaultqos,grptresrunmins"

// column positions within a pipe-delimited association row, for the
// attribute columns that are retained.
var attrColumns = map[model.Attribute]int{
	model.Fairshare:      4,
	model.GrpTRES:        6,
	model.GrpTRESMins:    9,
	model.MaxTRES:        11,
	model.MaxTRESPerNode: 12,
	model.MaxTRESMins:    15,
	model.QOS:            16,
	model.DefQOS:         17,
	model.GrpTRESRunMins: 18,
}

// Client reads current association state by running sacctmgr and parsing
// its pipe-delimited output.
type Client struct {
	bin         string
	execCommand ExecCommandFunc
	logger      *slog.Logger
}

func (c *Client) Set(bin string, exec ExecCommandFunc, logger *slog.Logger) *Client {
	c.bin = bin
	c.execCommand = exec
	c.logger = logger
	return c
}

// Associations runs `sacctmgr -nP show associations format=...` and parses
// each row into an AssociationRecord. Attribute values are case-normalized
// on read. Rows of the built-in root account and rows that do not have
// exactly 19 fields are skipped.
func (c *Client) Associations(ctx context.Context) ([]model.AssociationRecord, error) {
	cmd := c.execCommand(ctx, c.bin, "-nP", "show", "associations", "format="+listFormat)
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("failed to exec sacctmgr", "output", string(out), "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("failed to exec sacctmgr")
	}
	records := make([]model.AssociationRecord, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, "|")
		if len(fields) != 19 {
			c.logger.Warn("invalid sacctmgr output line, skip", "line", line)
			continue
		}
		if strings.EqualFold(fields[0], "cluster") {
			// header row, present only without -n
			continue
		}
		account := strings.TrimSpace(fields[1])
		if account == "root" {
			// the built-in root account is never managed
			continue
		}
		attrs := make(model.AttrValues)
		for attr, col := range attrColumns {
			if v := strings.TrimSpace(fields[col]); v != "" {
				attrs[attr] = attr.Normalize(v)
			}
		}
		records = append(records, model.AssociationRecord{
			Account: account,
			User:    strings.TrimSpace(fields[2]),
			Attrs:   attrs,
		})
	}
	return records, nil
}
