// Package reconcile computes the minimal set of sacctmgr mutations that
// bring the scheduler's account database in line with the OS user database
// and the layered settings policy.
package reconcile

import (
	"context"
	"fmt"
	"os"
	"sort"

	"slurmtools/internal/pkg/diag"
	"slurmtools/internal/pkg/model"
	"slurmtools/internal/pkg/policy"
)

// IdentitySource enumerates OS groups and users. Implemented by the getent
// and ldap clients.
type IdentitySource interface {
	Groups(ctx context.Context) ([]model.Group, error)
	Users(ctx context.Context) ([]model.Identity, error)
}

// SchedulerStateSource reads the scheduler's current association records.
// Implemented by the sacctmgr and slurmdb clients.
type SchedulerStateSource interface {
	Associations(ctx context.Context) ([]model.AssociationRecord, error)
}

// Snapshot is the fully materialized input state for one reconciliation
// run. All three sources are read completely before any resolution starts;
// a failure in any of them aborts the run with no commands emitted.
type Snapshot struct {
	Groups      map[string]model.Group
	GroupsByGID map[int]model.Group
	Users       []model.Identity
	State       model.SchedulerState
}

// TakeSnapshot reads identity and scheduler state in full.
func TakeSnapshot(ctx context.Context, ident IdentitySource, sched SchedulerStateSource) (*Snapshot, error) {
	groups, err := ident.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate groups: %w", err)
	}
	users, err := ident.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate users: %w", err)
	}
	records, err := sched.Associations(ctx)
	if err != nil {
		return nil, fmt.Errorf("read scheduler associations: %w", err)
	}
	snap := &Snapshot{
		Groups:      make(map[string]model.Group, len(groups)),
		GroupsByGID: make(map[int]model.Group, len(groups)),
		Users:       users,
	}
	for _, g := range groups {
		snap.Groups[g.Name] = g
		snap.GroupsByGID[g.GID] = g
	}
	snap.State = model.IndexAssociations(records, snap.Groups)
	return snap, nil
}

// Reconciler derives corrective actions from a snapshot and a policy set.
type Reconciler struct {
	MinUID int
	Policy *policy.Set
	Diag   *diag.Reporter

	// HomeDirExists is replaceable in tests; nil means os.Stat.
	HomeDirExists func(dir string) bool
}

const nologinShell = "/sbin/nologin"

func (r *Reconciler) homeDirExists(dir string) bool {
	if r.HomeDirExists != nil {
		return r.HomeDirExists(dir)
	}
	st, err := os.Stat(dir)
	return err == nil && st.IsDir()
}

// eligible applies the UID floor and shell filters. Ineligible users are
// skipped silently; they are ordinary system accounts, not errors.
func (r *Reconciler) eligible(u model.Identity) bool {
	return u.UID >= r.MinUID && u.Shell != nologinShell
}

// Plan walks every eligible user, resolves the desired profile, and diffs
// it against current scheduler state. Scheduler users with no eligible OS
// identity are deleted. Users are processed in username order so the
// emitted command list is deterministic.
func (r *Reconciler) Plan(snap *Snapshot) []model.Action {
	users := make([]model.Identity, len(snap.Users))
	copy(users, snap.Users)
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	managed := make(map[string]bool)
	actions := make([]model.Action, 0)
	for _, u := range users {
		if !r.eligible(u) {
			continue
		}
		g, ok := snap.GroupsByGID[u.GID]
		if !ok {
			// An evaluation error excludes the user from planning, but the
			// user is still in the eligible set: their existing record must
			// not fall through to the orphan pass.
			r.Diag.Errorf("user %s (uid %d) has gid %d with no matching group, skipped", u.Username, u.UID, u.GID)
			managed[u.Username] = true
			continue
		}
		if !r.homeDirExists(u.HomeDir) {
			r.Diag.Noticef("user %s home directory %s does not exist, skipped", u.Username, u.HomeDir)
			continue
		}
		managed[u.Username] = true
		prof := r.resolve(u, g.Name, snap.State)
		if act := diff(prof, snap.State); act.Kind != model.NoOp {
			actions = append(actions, act)
		}
	}

	orphans := make([]string, 0)
	for name := range snap.State.Users {
		if !managed[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		actions = append(actions, model.Action{Kind: model.DeleteUser, User: name})
	}
	return actions
}
