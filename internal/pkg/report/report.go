// Package report aggregates the live scheduling queue into per-user and
// per-account utilization, plus a node state inventory.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"slurmtools/internal/pkg/client/slurmctl/models"
)

type UserUsage struct {
	User        string `json:"user"`
	Account     string `json:"account"`
	Running     int    `json:"running"`
	Pending     int    `json:"pending"`
	CPUsRunning int    `json:"cpus_running"`
	CPUsPending int    `json:"cpus_pending"`
}

type AccountUsage struct {
	Account     string `json:"account"`
	Users       int    `json:"users"`
	Running     int    `json:"running"`
	Pending     int    `json:"pending"`
	CPUsRunning int    `json:"cpus_running"`
	CPUsPending int    `json:"cpus_pending"`
}

type NodeState struct {
	State string `json:"state"`
	Nodes int    `json:"nodes"`
	CPUs  int    `json:"cpus"`
}

type Report struct {
	Users    []UserUsage    `json:"users"`
	Accounts []AccountUsage `json:"accounts"`
	Nodes    []NodeState    `json:"nodes"`
}

// Build flattens the queue into usage rows. Jobs in states other than
// running (R, CG) or pending (PD) are ignored. Rows are sorted by key so
// output is stable across runs.
func Build(jobs models.Jobs, nodes models.Nodes) *Report {
	type key struct{ user, account string }
	byUser := make(map[key]*UserUsage)
	for _, j := range jobs {
		cpus, _ := strconv.Atoi(j.CPUs)
		k := key{j.User, j.Account}
		u, ok := byUser[k]
		if !ok {
			u = &UserUsage{User: j.User, Account: j.Account}
			byUser[k] = u
		}
		switch j.State {
		case "R", "CG":
			u.Running++
			u.CPUsRunning += cpus
		case "PD":
			u.Pending++
			u.CPUsPending += cpus
		}
	}

	r := &Report{
		Users:    make([]UserUsage, 0, len(byUser)),
		Accounts: make([]AccountUsage, 0),
		Nodes:    make([]NodeState, 0),
	}
	for _, u := range byUser {
		r.Users = append(r.Users, *u)
	}
	sort.Slice(r.Users, func(i, j int) bool {
		if r.Users[i].Account != r.Users[j].Account {
			return r.Users[i].Account < r.Users[j].Account
		}
		return r.Users[i].User < r.Users[j].User
	})

	byAccount := make(map[string]*AccountUsage)
	for _, u := range r.Users {
		a, ok := byAccount[u.Account]
		if !ok {
			a = &AccountUsage{Account: u.Account}
			byAccount[a.Account] = a
		}
		a.Users++
		a.Running += u.Running
		a.Pending += u.Pending
		a.CPUsRunning += u.CPUsRunning
		a.CPUsPending += u.CPUsPending
	}
	for _, a := range byAccount {
		r.Accounts = append(r.Accounts, *a)
	}
	sort.Slice(r.Accounts, func(i, j int) bool { return r.Accounts[i].Account < r.Accounts[j].Account })

	byState := make(map[string]*NodeState)
	for _, n := range nodes {
		s, ok := byState[n.State]
		if !ok {
			s = &NodeState{State: n.State}
			byState[n.State] = s
		}
		s.Nodes++
		s.CPUs += n.CPUs
	}
	for _, s := range byState {
		r.Nodes = append(r.Nodes, *s)
	}
	sort.Slice(r.Nodes, func(i, j int) bool { return r.Nodes[i].State < r.Nodes[j].State })

	return r
}

// WriteText renders the report as aligned tables for terminal review.
func (r *Report) WriteText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "USER\tACCOUNT\tRUN\tPEND\tCPUS(R)\tCPUS(PD)")
	for _, u := range r.Users {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", u.User, u.Account, u.Running, u.Pending, u.CPUsRunning, u.CPUsPending)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "ACCOUNT\tUSERS\tRUN\tPEND\tCPUS(R)\tCPUS(PD)")
	for _, a := range r.Accounts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", a.Account, a.Users, a.Running, a.Pending, a.CPUsRunning, a.CPUsPending)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "NODE STATE\tNODES\tCPUS")
	for _, s := range r.Nodes {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.State, s.Nodes, s.CPUs)
	}
	tw.Flush()
}
