// Package policy parses the layered user settings file: colon-delimited
// lines of scope:attribute:value where scope is DEFAULT, a UNIX group name,
// or a username.
package policy

import (
	"bufio"
	"io"
	"os"
	"strings"

	"slurmtools/internal/pkg/diag"
	"slurmtools/internal/pkg/model"
)

// DefaultScope is the reserved scope name for global defaults.
const DefaultScope = "DEFAULT"

// Set holds the parsed policy, one attribute map per scope layer. Values
// are case-normalized at parse time.
type Set struct {
	Defaults model.AttrValues
	Groups   map[string]model.AttrValues
	Users    map[string]model.AttrValues
}

func NewSet() *Set {
	return &Set{
		Defaults: make(model.AttrValues),
		Groups:   make(map[string]model.AttrValues),
		Users:    make(map[string]model.AttrValues),
	}
}

// SetDefault records a global default for attr. Used to seed the set from
// configuration before the policy file is read; file DEFAULT lines override.
func (s *Set) SetDefault(attr model.Attribute, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	s.Defaults[attr] = attr.Normalize(value)
}

func (s *Set) add(scope string, attr model.Attribute, value string, groups map[string]model.Group) {
	v := attr.Normalize(value)
	switch {
	case scope == DefaultScope:
		s.Defaults[attr] = v
	default:
		if _, ok := groups[scope]; ok {
			if s.Groups[scope] == nil {
				s.Groups[scope] = make(model.AttrValues)
			}
			s.Groups[scope][attr] = v
			return
		}
		if s.Users[scope] == nil {
			s.Users[scope] = make(model.AttrValues)
		}
		s.Users[scope][attr] = v
	}
}

// Load reads the policy file at path. A missing file is not fatal: the run
// proceeds with whatever defaults were seeded, after a warning. Scopes that
// match neither a known group nor a known scheduler user are still recorded
// as user-scope overrides, with a notice.
func Load(path string, groups map[string]model.Group, schedulerUsers map[string]model.AssociationRecord, seed *Set, d *diag.Reporter) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			d.Warningf("policy file %s not found, proceeding with defaults only", path)
			return seed, nil
		}
		return nil, err
	}
	defer f.Close()
	return parse(f, groups, schedulerUsers, seed, d), nil
}

func parse(r io.Reader, groups map[string]model.Group, schedulerUsers map[string]model.AssociationRecord, s *Set, d *diag.Reporter) *Set {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, ":")
		if strings.Contains(fields[0], "#") {
			continue
		}
		if len(fields) != 3 {
			continue
		}
		scope := strings.TrimSpace(fields[0])
		attr, ok := model.ParseAttribute(strings.TrimSpace(fields[1]))
		if !ok {
			d.Noticef("unknown attribute %s in policy line %q, skipped", fields[1], line)
			continue
		}
		if scope != DefaultScope {
			_, knownGroup := groups[scope]
			_, knownUser := schedulerUsers[scope]
			if !knownGroup && !knownUser {
				d.Noticef("policy scope %s is neither a known group nor a known user, applying as user setting", scope)
			}
		}
		s.add(scope, attr, fields[2], groups)
	}
	return s
}
