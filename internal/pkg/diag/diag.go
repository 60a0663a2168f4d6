// Package diag renders the tool's human-review diagnostics. These lines are
// part of the output contract (interleaved with commands on stdout, prefixed
// with "###" so a consumer can grep them out before piping the commands to a
// shell), which is why they are not slog events.
package diag

import (
	"fmt"
	"io"
)

type Reporter struct {
	w io.Writer
}

func New(w io.Writer) *Reporter { return &Reporter{w: w} }

func (r *Reporter) Noticef(format string, args ...any) {
	fmt.Fprintf(r.w, "### NOTICE: "+format+"\n", args...)
}

func (r *Reporter) Warningf(format string, args ...any) {
	fmt.Fprintf(r.w, "### WARNING: "+format+"\n", args...)
}

func (r *Reporter) Errorf(format string, args ...any) {
	fmt.Fprintf(r.w, "### ERROR: "+format+"\n", args...)
}
