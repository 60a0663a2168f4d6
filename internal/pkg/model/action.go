package model

// ActionKind classifies the corrective action for one user.
type ActionKind int

const (
	// NoOp means current state already matches the resolved profile.
	NoOp ActionKind = iota
	// CreateUser adds a user unknown to the scheduler.
	CreateUser
	// ModifyUser applies the changed attributes of an existing user.
	ModifyUser
	// DeleteUser removes a scheduler user with no eligible OS identity.
	DeleteUser
)

func (k ActionKind) String() string {
	switch k {
	case NoOp:
		return "noop"
	case CreateUser:
		return "create"
	case ModifyUser:
		return "modify"
	case DeleteUser:
		return "delete"
	}
	return "unknown"
}

// Action is one reconciliation decision. For CreateUser and ModifyUser,
// Changes holds only the attributes that differ from current state, and
// DefaultAccount is non-empty when the user's account assignment itself
// must change.
type Action struct {
	Kind           ActionKind
	User           string
	DefaultAccount string
	Changes        AttrValues
}
