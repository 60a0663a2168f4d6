package sacctmgr

import (
	"fmt"
	"strings"

	"slurmtools/internal/pkg/model"
)

// Render turns a reconciliation action into the sacctmgr command line that
// applies it. The command is not executed here: it is printed for review or
// piped to a shell by the operator. Returns "" for NoOp actions.
//
// Attributes are emitted in their declaration order so repeated runs over
// identical inputs produce identical text.
func Render(bin string, a model.Action) string {
	switch a.Kind {
	case model.CreateUser:
		var b strings.Builder
		fmt.Fprintf(&b, "%s -i create user name=%s", bin, a.User)
		if a.DefaultAccount != "" {
			fmt.Fprintf(&b, " defaultaccount=%s", a.DefaultAccount)
		}
		appendAttrs(&b, a.Changes)
		return b.String()
	case model.ModifyUser:
		var b strings.Builder
		fmt.Fprintf(&b, "%s -i modify user where name=%s set", bin, a.User)
		if a.DefaultAccount != "" {
			fmt.Fprintf(&b, " defaultaccount=%s", a.DefaultAccount)
		}
		appendAttrs(&b, a.Changes)
		return b.String()
	case model.DeleteUser:
		return fmt.Sprintf("%s -i delete user %s", bin, a.User)
	}
	return ""
}

func appendAttrs(b *strings.Builder, changes model.AttrValues) {
	for _, attr := range model.Attributes() {
		if v, ok := changes[attr]; ok {
			fmt.Fprintf(b, " %s=%s", attr, v)
		}
	}
}
