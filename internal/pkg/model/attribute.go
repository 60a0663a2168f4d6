package model

import "strings"

// Attribute is one of the fixed set of Slurm association limit fields this
// tool manages. Values are opaque strings with scheduler-defined syntax
// (e.g. "cpu=1500"); the tool normalizes their case but never interprets
// their internal structure.
type Attribute int

// Declaration order is the emission order within a command.
const (
	Fairshare Attribute = iota
	GrpTRES
	GrpTRESMins
	MaxTRES
	MaxTRESPerNode
	MaxTRESMins
	GrpTRESRunMins
	QOS
	DefQOS
	numAttributes
)

// canonical spellings as accepted by sacctmgr.
var attributeNames = [numAttributes]string{
	Fairshare:      "fairshare",
	GrpTRES:        "GrpTRES",
	GrpTRESMins:    "GrpTRESMins",
	MaxTRES:        "MaxTRES",
	MaxTRESPerNode: "MaxTRESPerNode",
	MaxTRESMins:    "MaxTRESMins",
	GrpTRESRunMins: "GrpTRESRunMins",
	QOS:            "QOS",
	DefQOS:         "DefQOS",
}

func (a Attribute) String() string {
	if a < 0 || a >= numAttributes {
		return "unknown"
	}
	return attributeNames[a]
}

// Attributes returns all managed attributes in emission order.
func Attributes() []Attribute {
	out := make([]Attribute, 0, int(numAttributes))
	for a := Attribute(0); a < numAttributes; a++ {
		out = append(out, a)
	}
	return out
}

// ParseAttribute matches s case-insensitively against the canonical
// attribute names.
func ParseAttribute(s string) (Attribute, bool) {
	for a := Attribute(0); a < numAttributes; a++ {
		if strings.EqualFold(s, attributeNames[a]) {
			return a, true
		}
	}
	return 0, false
}

// Normalize case-normalizes an attribute value for storage and comparison:
// QOS class values are upper-cased, TRES class values (and fairshare)
// lower-cased.
func (a Attribute) Normalize(value string) string {
	value = strings.TrimSpace(value)
	switch a {
	case QOS, DefQOS:
		return strings.ToUpper(value)
	default:
		return strings.ToLower(value)
	}
}

// AttrValues maps attributes to normalized values. Absence of a key means
// "no opinion" for desired state, or "unset" for current state.
type AttrValues map[Attribute]string

// Clone returns a copy of m (nil-safe).
func (m AttrValues) Clone() AttrValues {
	out := make(AttrValues, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
