package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slurmtools/internal/pkg/client/slurmctl/models"
)

func sampleJobs() models.Jobs {
	return models.Jobs{
		{Jobid: "1", State: "R", User: "alice", Account: "laba", CPUs: "8"},
		{Jobid: "2", State: "R", User: "alice", Account: "laba", CPUs: "4"},
		{Jobid: "3", State: "PD", User: "alice", Account: "laba", CPUs: "16"},
		{Jobid: "4", State: "R", User: "bobby", Account: "laba", CPUs: "2"},
		{Jobid: "5", State: "PD", User: "carol", Account: "labb", CPUs: "32"},
		{Jobid: "6", State: "CD", User: "carol", Account: "labb", CPUs: "32"}, // finished, ignored
	}
}

func sampleNodes() models.Nodes {
	return models.Nodes{
		"node01": {Name: "node01", State: "mix", CPUs: 64},
		"node02": {Name: "node02", State: "idle", CPUs: 64},
		"node03": {Name: "node03", State: "idle", CPUs: 128},
	}
}

func TestBuildUserAggregation(t *testing.T) {
	r := Build(sampleJobs(), sampleNodes())
	require.Len(t, r.Users, 3)

	al := r.Users[0]
	assert.Equal(t, "alice", al.User)
	assert.Equal(t, 2, al.Running)
	assert.Equal(t, 1, al.Pending)
	assert.Equal(t, 12, al.CPUsRunning)
	assert.Equal(t, 16, al.CPUsPending)

	// sorted by account then user
	assert.Equal(t, "bobby", r.Users[1].User)
	assert.Equal(t, "carol", r.Users[2].User)
}

func TestBuildAccountAggregation(t *testing.T) {
	r := Build(sampleJobs(), sampleNodes())
	require.Len(t, r.Accounts, 2)

	laba := r.Accounts[0]
	assert.Equal(t, "laba", laba.Account)
	assert.Equal(t, 2, laba.Users)
	assert.Equal(t, 3, laba.Running)
	assert.Equal(t, 1, laba.Pending)
	assert.Equal(t, 14, laba.CPUsRunning)

	labb := r.Accounts[1]
	assert.Equal(t, 1, labb.Users)
	assert.Equal(t, 0, labb.Running)
	assert.Equal(t, 1, labb.Pending)
}

func TestBuildNodeInventory(t *testing.T) {
	r := Build(nil, sampleNodes())
	require.Len(t, r.Nodes, 2)
	assert.Equal(t, NodeState{State: "idle", Nodes: 2, CPUs: 192}, r.Nodes[0])
	assert.Equal(t, NodeState{State: "mix", Nodes: 1, CPUs: 64}, r.Nodes[1])
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	Build(sampleJobs(), sampleNodes()).WriteText(&buf)
	out := buf.String()
	assert.Contains(t, out, "USER")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "NODE STATE")
	assert.Contains(t, out, "idle")
}
