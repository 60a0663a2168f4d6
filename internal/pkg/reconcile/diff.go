package reconcile

import "slurmtools/internal/pkg/model"

// diff compares a resolved profile against the scheduler's current record
// for that user. For a user the scheduler does not know, every resolved
// attribute is a change. For an existing user only differing attributes are
// included; "current unset, desired set" counts as a difference. Values on
// both sides were case-normalized on read, so comparison is plain equality.
func diff(p Profile, st model.SchedulerState) model.Action {
	cur, exists := st.Users[p.User]
	if !exists {
		return model.Action{
			Kind:           model.CreateUser,
			User:           p.User,
			DefaultAccount: p.DefaultAccount,
			Changes:        p.Attrs.Clone(),
		}
	}

	changes := make(model.AttrValues)
	for attr, want := range p.Attrs {
		if cur.Attrs[attr] != want {
			changes[attr] = want
		}
	}
	if len(changes) == 0 && p.DefaultAccount == "" {
		return model.Action{Kind: model.NoOp, User: p.User}
	}
	return model.Action{
		Kind:           model.ModifyUser,
		User:           p.User,
		DefaultAccount: p.DefaultAccount,
		Changes:        changes,
	}
}
