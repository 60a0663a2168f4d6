package reconcile

import "slurmtools/internal/pkg/model"

// Profile is the fully resolved desired state for one user. Attributes
// absent from Attrs carry no opinion: the diff engine will not touch them.
type Profile struct {
	User string
	// Account is the user's OS group, which is the account they belong in.
	Account string
	// DefaultAccount is non-empty when the scheduler's current account
	// assignment differs from Account (or the user does not exist yet).
	DefaultAccount string
	Attrs          model.AttrValues
}

// resolve merges the policy layers for user u in group. Precedence, most
// specific wins: explicit user setting > group setting > global default.
// The merge fills empty slots only, first from the group map, then from
// the whole default map, so every defaulted attribute ends up resolved for
// every user.
func (r *Reconciler) resolve(u model.Identity, group string, st model.SchedulerState) Profile {
	p := Profile{User: u.Username, Account: group}

	cur, exists := st.Users[u.Username]
	if !exists {
		p.DefaultAccount = group
	} else if cur.Account != group {
		r.Diag.Noticef("user %s is in account %s but group %s, staging defaultaccount change", u.Username, cur.Account, group)
		p.DefaultAccount = group
	}

	attrs := r.Policy.Users[u.Username].Clone()
	gset, ok := r.Policy.Groups[group]
	if !ok {
		r.Diag.Noticef("no policy settings for group %s, using defaults for user %s", group, u.Username)
	}
	for attr, v := range gset {
		if _, set := attrs[attr]; !set {
			attrs[attr] = v
		}
	}
	for attr, v := range r.Policy.Defaults {
		if _, set := attrs[attr]; !set {
			attrs[attr] = v
		}
	}
	p.Attrs = attrs
	return p
}
