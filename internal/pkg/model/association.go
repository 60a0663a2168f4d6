package model

// AssociationRecord is the scheduler's current state for one association:
// an account alone (group-level defaults, User == "") or an account+user
// pair. Attribute values are case-normalized on read.
type AssociationRecord struct {
	Account string
	User    string
	Attrs   AttrValues
}

// GroupLevel reports whether the record is an account-level association
// with no user attached.
func (r AssociationRecord) GroupLevel() bool { return r.User == "" }

// SchedulerState is the materialized snapshot of all association records,
// indexed for the reconciler.
type SchedulerState struct {
	// Accounts holds group-level records keyed by account name.
	Accounts map[string]AssociationRecord
	// Users holds user-level records keyed by username.
	Users map[string]AssociationRecord
}

// IndexAssociations splits raw records into account-level and user-level
// maps. Records for the root account are dropped, as are account-level
// records whose account matches no known OS group (stale or foreign
// accounts).
func IndexAssociations(records []AssociationRecord, groups map[string]Group) SchedulerState {
	st := SchedulerState{
		Accounts: make(map[string]AssociationRecord),
		Users:    make(map[string]AssociationRecord),
	}
	for _, r := range records {
		if r.Account == "root" {
			continue
		}
		if r.GroupLevel() {
			if _, ok := groups[r.Account]; !ok {
				continue
			}
			st.Accounts[r.Account] = r
			continue
		}
		st.Users[r.User] = r
	}
	return st
}
