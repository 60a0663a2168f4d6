package reconcile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slurmtools/internal/pkg/diag"
	"slurmtools/internal/pkg/model"
	"slurmtools/internal/pkg/policy"
)

type fakeIdentity struct {
	groups []model.Group
	users  []model.Identity
	fail   bool
}

func (f *fakeIdentity) Groups(ctx context.Context) ([]model.Group, error) {
	if f.fail {
		return nil, errors.New("identity source down")
	}
	return f.groups, nil
}

func (f *fakeIdentity) Users(ctx context.Context) ([]model.Identity, error) {
	if f.fail {
		return nil, errors.New("identity source down")
	}
	return f.users, nil
}

type fakeScheduler struct {
	records []model.AssociationRecord
	fail    bool
}

func (f *fakeScheduler) Associations(ctx context.Context) ([]model.AssociationRecord, error) {
	if f.fail {
		return nil, errors.New("scheduler source down")
	}
	return f.records, nil
}

func snapshot(t *testing.T, groups []model.Group, users []model.Identity, records []model.AssociationRecord) *Snapshot {
	t.Helper()
	snap, err := TakeSnapshot(context.Background(),
		&fakeIdentity{groups: groups, users: users},
		&fakeScheduler{records: records})
	require.NoError(t, err)
	return snap
}

func newReconciler(pol *policy.Set, w io.Writer) *Reconciler {
	if w == nil {
		w = io.Discard
	}
	return &Reconciler{
		MinUID:        1002,
		Policy:        pol,
		Diag:          diag.New(w),
		HomeDirExists: func(string) bool { return true },
	}
}

var (
	labA  = model.Group{Name: "laba", GID: 5000}
	alice = model.Identity{Username: "alice", UID: 2000, GID: 5000, HomeDir: "/home/alice", Shell: "/bin/bash"}
)

func TestTakeSnapshotSourceFailure(t *testing.T) {
	_, err := TakeSnapshot(context.Background(), &fakeIdentity{fail: true}, &fakeScheduler{})
	require.Error(t, err)

	_, err = TakeSnapshot(context.Background(), &fakeIdentity{}, &fakeScheduler{fail: true})
	require.Error(t, err)
}

func TestSnapshotDropsRootAndStaleAccounts(t *testing.T) {
	snap := snapshot(t, []model.Group{labA}, nil, []model.AssociationRecord{
		{Account: "root", Attrs: model.AttrValues{}},
		{Account: "root", User: "root", Attrs: model.AttrValues{}},
		{Account: "laba", Attrs: model.AttrValues{model.Fairshare: "10"}},
		{Account: "ghosts", Attrs: model.AttrValues{}}, // no such OS group
		{Account: "laba", User: "alice", Attrs: model.AttrValues{}},
	})
	assert.Len(t, snap.State.Accounts, 1)
	assert.Contains(t, snap.State.Accounts, "laba")
	assert.Len(t, snap.State.Users, 1)
	assert.Contains(t, snap.State.Users, "alice")
}

func TestPrecedenceUserOverGroupOverDefault(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.GrpTRES] = "cpu=1"
	pol.Groups["laba"] = model.AttrValues{model.GrpTRES: "cpu=2"}
	pol.Users["alice"] = model.AttrValues{model.GrpTRES: "cpu=3"}

	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice}, nil)

	acts := newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, model.CreateUser, acts[0].Kind)
	assert.Equal(t, "cpu=3", acts[0].Changes[model.GrpTRES])

	// Removing the user layer resolves to the group value.
	delete(pol.Users, "alice")
	acts = newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, "cpu=2", acts[0].Changes[model.GrpTRES])

	// Removing both resolves to the default.
	delete(pol.Groups, "laba")
	acts = newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, "cpu=1", acts[0].Changes[model.GrpTRES])
}

func TestDefaultsCoverEveryUser(t *testing.T) {
	// A default set for an attribute never mentioned at group or user scope
	// still resolves for every user.
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"
	pol.Defaults[model.GrpTRESRunMins] = "cpu=100000"
	pol.Groups["laba"] = model.AttrValues{model.GrpTRES: "cpu=500"}

	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice}, nil)
	acts := newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, model.AttrValues{
		model.Fairshare:      "2",
		model.GrpTRES:        "cpu=500",
		model.GrpTRESRunMins: "cpu=100000",
	}, acts[0].Changes)
}

func TestNewUserCreate(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"
	pol.Defaults[model.GrpTRES] = "cpu=1500"

	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice}, nil)
	acts := newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, model.CreateUser, acts[0].Kind)
	assert.Equal(t, "alice", acts[0].User)
	assert.Equal(t, "laba", acts[0].DefaultAccount)
	assert.Equal(t, "2", acts[0].Changes[model.Fairshare])
	assert.Equal(t, "cpu=1500", acts[0].Changes[model.GrpTRES])
}

func TestNoopWhenCurrentMatches(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"
	pol.Defaults[model.GrpTRES] = "cpu=1500"

	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice}, []model.AssociationRecord{
		{Account: "laba", User: "alice", Attrs: model.AttrValues{
			model.Fairshare: "2",
			model.GrpTRES:   "cpu=1500",
		}},
	})
	acts := newReconciler(pol, nil).Plan(snap)
	assert.Empty(t, acts)
}

func TestModifyEmitsOnlyChangedAttributes(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"
	pol.Defaults[model.GrpTRES] = "cpu=2000"
	pol.SetDefault(model.QOS, "normal")

	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice}, []model.AssociationRecord{
		{Account: "laba", User: "alice", Attrs: model.AttrValues{
			model.Fairshare: "2",
			model.GrpTRES:   "cpu=1500",
			// QOS current is unset: desired non-empty counts as a change
		}},
	})
	acts := newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, model.ModifyUser, acts[0].Kind)
	assert.Empty(t, acts[0].DefaultAccount)
	assert.Equal(t, model.AttrValues{
		model.GrpTRES: "cpu=2000",
		model.QOS:     "NORMAL",
	}, acts[0].Changes)
}

func TestAccountMismatchStagesDefaultAccount(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"

	var buf bytes.Buffer
	snap := snapshot(t, []model.Group{labA, {Name: "labb", GID: 6000}},
		[]model.Identity{alice},
		[]model.AssociationRecord{
			{Account: "labb", User: "alice", Attrs: model.AttrValues{model.Fairshare: "2"}},
		})
	acts := newReconciler(pol, &buf).Plan(snap)
	require.Len(t, acts, 1)
	assert.Equal(t, model.ModifyUser, acts[0].Kind)
	assert.Equal(t, "laba", acts[0].DefaultAccount)
	assert.Empty(t, acts[0].Changes)
	assert.Contains(t, buf.String(), "### NOTICE:")
}

func TestOrphanDeletion(t *testing.T) {
	pol := policy.NewSet()
	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice}, []model.AssociationRecord{
		{Account: "laba", User: "alice", Attrs: model.AttrValues{}},
		{Account: "laba", User: "bob", Attrs: model.AttrValues{}},   // no passwd entry
		{Account: "laba", User: "carol", Attrs: model.AttrValues{}}, // uid below floor
	})
	snap.Users = append(snap.Users, model.Identity{Username: "carol", UID: 900, GID: 5000, HomeDir: "/home/carol", Shell: "/bin/bash"})

	acts := newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 2)
	assert.Equal(t, model.DeleteUser, acts[0].Kind)
	assert.Equal(t, "bob", acts[0].User)
	assert.Equal(t, model.DeleteUser, acts[1].Kind)
	assert.Equal(t, "carol", acts[1].User)
}

func TestIneligibleUsersProduceNothing(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"

	users := []model.Identity{
		{Username: "daemonish", UID: 500, GID: 5000, HomeDir: "/", Shell: "/bin/bash"},
		{Username: "nologin", UID: 3000, GID: 5000, HomeDir: "/home/nologin", Shell: "/sbin/nologin"},
		{Username: "homeless", UID: 3001, GID: 5000, HomeDir: "/home/gone", Shell: "/bin/bash"},
	}
	snap := snapshot(t, []model.Group{labA}, users, nil)

	var buf bytes.Buffer
	r := newReconciler(pol, &buf)
	r.HomeDirExists = func(dir string) bool { return dir != "/home/gone" }
	acts := r.Plan(snap)
	assert.Empty(t, acts)
	assert.Contains(t, buf.String(), "home directory /home/gone does not exist")
}

func TestUnknownGroupSkipsUserWithError(t *testing.T) {
	pol := policy.NewSet()
	var buf bytes.Buffer
	stray := model.Identity{Username: "stray", UID: 2001, GID: 9999, HomeDir: "/home/stray", Shell: "/bin/bash"}
	snap := snapshot(t, []model.Group{labA}, []model.Identity{stray}, nil)
	acts := newReconciler(pol, &buf).Plan(snap)
	assert.Empty(t, acts)
	assert.Contains(t, buf.String(), "### ERROR:")
}

func TestUnknownGroupKeepsExistingRecord(t *testing.T) {
	// An unknown GID excludes the user from planning, but the user is still
	// eligible: their existing association must not be deleted as an orphan.
	pol := policy.NewSet()
	var buf bytes.Buffer
	stray := model.Identity{Username: "stray", UID: 2001, GID: 9999, HomeDir: "/home/stray", Shell: "/bin/bash"}
	snap := snapshot(t, []model.Group{labA}, []model.Identity{stray}, []model.AssociationRecord{
		{Account: "laba", User: "stray", Attrs: model.AttrValues{}},
	})
	acts := newReconciler(pol, &buf).Plan(snap)
	assert.Empty(t, acts)
	assert.Contains(t, buf.String(), "### ERROR:")
}

// applying the planned actions to the current state and re-planning must
// come out empty.
func TestIdempotence(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"
	pol.Groups["laba"] = model.AttrValues{model.GrpTRES: "cpu=1500"}
	pol.Users["alice"] = model.AttrValues{model.QOS: "HIGH"}

	bobby := model.Identity{Username: "bobby", UID: 2002, GID: 5000, HomeDir: "/home/bobby", Shell: "/bin/bash"}
	records := []model.AssociationRecord{
		{Account: "laba", User: "bobby", Attrs: model.AttrValues{model.Fairshare: "5"}},
		{Account: "laba", User: "zombie", Attrs: model.AttrValues{}},
	}
	snap := snapshot(t, []model.Group{labA}, []model.Identity{alice, bobby}, records)

	acts := newReconciler(pol, nil).Plan(snap)
	require.NotEmpty(t, acts)

	// Apply the plan to produce the next run's current state.
	next := make(map[string]model.AssociationRecord)
	for _, rec := range records {
		next[rec.User] = model.AssociationRecord{Account: rec.Account, User: rec.User, Attrs: rec.Attrs.Clone()}
	}
	for _, a := range acts {
		switch a.Kind {
		case model.CreateUser:
			next[a.User] = model.AssociationRecord{Account: a.DefaultAccount, User: a.User, Attrs: a.Changes.Clone()}
		case model.ModifyUser:
			rec := next[a.User]
			if a.DefaultAccount != "" {
				rec.Account = a.DefaultAccount
			}
			for attr, v := range a.Changes {
				rec.Attrs[attr] = v
			}
			next[a.User] = rec
		case model.DeleteUser:
			delete(next, a.User)
		}
	}
	applied := make([]model.AssociationRecord, 0, len(next))
	for _, rec := range next {
		applied = append(applied, rec)
	}

	snap2 := snapshot(t, []model.Group{labA}, []model.Identity{alice, bobby}, applied)
	acts2 := newReconciler(pol, nil).Plan(snap2)
	assert.Empty(t, acts2)
}

func TestPlanOrderIsDeterministic(t *testing.T) {
	pol := policy.NewSet()
	pol.Defaults[model.Fairshare] = "2"
	users := []model.Identity{
		{Username: "zed", UID: 2010, GID: 5000, HomeDir: "/home/zed", Shell: "/bin/bash"},
		alice,
		{Username: "mike", UID: 2011, GID: 5000, HomeDir: "/home/mike", Shell: "/bin/bash"},
	}
	snap := snapshot(t, []model.Group{labA}, users, nil)
	acts := newReconciler(pol, nil).Plan(snap)
	require.Len(t, acts, 3)
	assert.Equal(t, "alice", acts[0].User)
	assert.Equal(t, "mike", acts[1].User)
	assert.Equal(t, "zed", acts[2].User)
}
