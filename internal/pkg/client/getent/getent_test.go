package getent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"testing"
)

const sampleGroup = `root:x:0:
LabA:x:5000:alice,bobby
labb:x:6000:
badgid:x:notanumber:`

const samplePasswd = `root:x:0:0:root:/root:/bin/bash
alice:x:2000:5000:Alice Smith:/home/alice:/bin/bash
nobody:x:65534:65534:Nobody:/:/sbin/nologin
malformed:line`

// helper: build fake exec that returns output based on args
func fakeExec(outputFn func(name string, args ...string) string) ExecCommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		script := fmt.Sprintf("cat <<'EOF'\n%s\nEOF\n", outputFn(name, args...))
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGroups(t *testing.T) {
	c := (&Client{}).Set(fakeExec(func(name string, args ...string) string {
		if name != "getent" || len(args) != 1 || args[0] != "group" {
			t.Errorf("unexpected command %s %v", name, args)
		}
		return sampleGroup
	}), discardLogger())

	groups, err := c.Groups(context.Background())
	if err != nil {
		t.Fatalf("Groups error: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	// group names are lower-cased
	if groups[1].Name != "laba" || groups[1].GID != 5000 {
		t.Errorf("expected laba/5000, got %+v", groups[1])
	}
}

func TestUsers(t *testing.T) {
	c := (&Client{}).Set(fakeExec(func(name string, args ...string) string {
		return samplePasswd
	}), discardLogger())

	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users error: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	al := users[1]
	if al.Username != "alice" || al.UID != 2000 || al.GID != 5000 {
		t.Errorf("unexpected alice record %+v", al)
	}
	if al.FullName != "Alice Smith" || al.HomeDir != "/home/alice" || al.Shell != "/bin/bash" {
		t.Errorf("unexpected alice fields %+v", al)
	}
	// no eligibility filtering at this stage: nologin users are returned
	if users[2].Shell != "/sbin/nologin" {
		t.Errorf("expected nologin shell preserved, got %+v", users[2])
	}
}

func TestExecFailure(t *testing.T) {
	c := (&Client{}).Set(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}, discardLogger())
	if _, err := c.Groups(context.Background()); err == nil {
		t.Fatal("expected error from failing getent group")
	}
	if _, err := c.Users(context.Background()); err == nil {
		t.Fatal("expected error from failing getent passwd")
	}
}
