// internal/shell/runner_test.go
//
// Runner policy semantics: pretend never spawns, force swallows failures,
// per-call ignore matches force scoped to one action.

package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordedCall struct {
	name string
	args []string
}

// testRunner returns a Runner whose exec backend records calls and returns
// failErr for every command.
func testRunner(policy Policy, failErr error) (*Runner, *[]recordedCall) {
	calls := &[]recordedCall{}
	r := NewRunner(policy, time.Millisecond, zap.NewNop().Sugar())
	r.execFn = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name, args})
		return []byte("diagnostic output"), failErr
	}
	r.sleepFn = func(time.Duration) {}
	return r, calls
}

func TestRunSplitsArgv(t *testing.T) {
	r, calls := testRunner(Policy{}, nil)
	if err := r.Run(context.Background(), "useradd -U -m clubx"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(*calls))
	}
	c := (*calls)[0]
	if c.name != "useradd" || len(c.args) != 3 || c.args[2] != "clubx" {
		t.Errorf("unexpected argv: %q %q", c.name, c.args)
	}
}

func TestRunFailureReturnsActionError(t *testing.T) {
	r, _ := testRunner(Policy{}, errors.New("exit status 1"))
	err := r.Run(context.Background(), "userdel -r ghost")
	var actionErr *ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("want *ActionError, got %v", err)
	}
	if actionErr.Command != "userdel -r ghost" {
		t.Errorf("Command = %q", actionErr.Command)
	}
	if actionErr.Output != "diagnostic output" {
		t.Errorf("Output = %q", actionErr.Output)
	}
}

func TestPretendNeverSpawns(t *testing.T) {
	r, calls := testRunner(Policy{Pretend: true}, errors.New("must not surface"))
	if err := r.Run(context.Background(), "rm -rf /srv/sites/clubx"); err != nil {
		t.Fatalf("pretend Run must report success, got %v", err)
	}
	if err := r.RunShell(context.Background(), "passwd clubx < /tmp/x"); err != nil {
		t.Fatalf("pretend RunShell must report success, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("pretend mode spawned %d commands", len(*calls))
	}
}

func TestForceSwallowsFailure(t *testing.T) {
	r, calls := testRunner(Policy{Force: true}, errors.New("exit status 1"))
	if err := r.Run(context.Background(), "groupdel clubx"); err != nil {
		t.Fatalf("force Run must swallow the failure, got %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("force mode must still execute, got %d calls", len(*calls))
	}
}

func TestRunIgnoreErrors(t *testing.T) {
	r, _ := testRunner(Policy{}, errors.New("exit status 1"))
	if err := r.RunIgnoreErrors(context.Background(), "pkill -u clubx"); err != nil {
		t.Fatalf("ignore Run must swallow the failure, got %v", err)
	}
	// The next non-ignoring call still fails: ignore is scoped per action.
	if err := r.Run(context.Background(), "userdel -r clubx"); err == nil {
		t.Fatal("expected failure after per-call ignore")
	}
}

func TestRunShellUsesSh(t *testing.T) {
	r, calls := testRunner(Policy{}, nil)
	if err := r.RunShell(context.Background(), "passwd clubx < /tmp/pass"); err != nil {
		t.Fatalf("RunShell: %v", err)
	}
	c := (*calls)[0]
	if c.name != "/bin/sh" || c.args[0] != "-c" {
		t.Errorf("RunShell argv = %q %q", c.name, c.args)
	}
}

func TestWaitSettlePretendSkipsSleep(t *testing.T) {
	slept := false
	r := NewRunner(Policy{Pretend: true}, time.Second, zap.NewNop().Sugar())
	r.sleepFn = func(time.Duration) { slept = true }
	r.WaitSettle("waiting for processes to exit")
	if slept {
		t.Fatal("pretend WaitSettle must not sleep")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, b := GeneratePassword(20), GeneratePassword(20)
	if len(a) != 20 || len(b) != 20 {
		t.Fatalf("lengths: %d, %d", len(a), len(b))
	}
	if a == b {
		t.Fatal("two generated passwords collided")
	}
}

func TestParseSymbolic(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"u=rwx,g=rx,o=", 0o750},
		{"u=rw", 0o600},
		{"u=rwx,g=rx,o=rx", 0o755},
	}
	for _, c := range cases {
		mode, err := ParseSymbolic(c.in)
		if err != nil {
			t.Fatalf("ParseSymbolic(%q): %v", c.in, err)
		}
		if uint32(mode) != c.want {
			t.Errorf("ParseSymbolic(%q) = %o, want %o", c.in, uint32(mode), c.want)
		}
	}
	if _, err := ParseSymbolic("u+rwx"); err == nil {
		t.Error("expected error for non-assignment clause")
	}
}
