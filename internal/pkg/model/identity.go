package model

// Group is an OS group as enumerated from the identity source. Group names
// are stored lower-cased since Slurm account names are conventionally
// lowercase.
type Group struct {
	Name string
	GID  int
}

// Identity is an OS user as enumerated from the identity source. Eligibility
// (UID floor, shell, home directory) is decided later by the reconciler, not
// at enumeration time.
type Identity struct {
	Username string
	UID      int
	GID      int
	FullName string
	HomeDir  string
	Shell    string
}
