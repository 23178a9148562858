// internal/shell/runner.go
//
// External-action executor.
//
// Context
// -------
// Every OS-level side effect piccolo performs (account creation, permission
// changes, service start/stop) funnels through one Runner.  The Runner owns
// the pretend/force execution policy, so orchestrators never special-case
// dry-run logic: they always "run" actions, and the Runner decides whether
// anything actually happens.
//
//   - Pretend: the command is logged and reported successful, never spawned.
//   - Force:   failures are logged and swallowed; the lifecycle proceeds on
//     a best-effort basis.
//   - Per-call ignore: same effect as force, scoped to one action.
//
// The policy is an explicit value handed to NewRunner, never package state,
// so repeated test invocations cannot leak configuration between runs.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Policy is the process-wide execution mode, set once per CLI invocation.
type Policy struct {
	Pretend bool
	Force   bool
}

// ActionError reports a side-effecting command that exited non-zero.
type ActionError struct {
	Command string
	Output  string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("shell action failed: %s: %v", e.Command, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Runner executes external actions under one Policy.  The exec and sleep
// functions are injectable so tests can record invocations without touching
// the host.
type Runner struct {
	policy Policy
	settle time.Duration
	log    *zap.SugaredLogger

	execFn  func(ctx context.Context, name string, args ...string) ([]byte, error)
	sleepFn func(d time.Duration)
}

// NewRunner returns a Runner with the real exec.CommandContext backend.
// settle is the fixed delay WaitSettle sleeps after kill signals.
func NewRunner(policy Policy, settle time.Duration, log *zap.SugaredLogger) *Runner {
	return &Runner{
		policy: policy,
		settle: settle,
		log:    log,
		execFn: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		sleepFn: time.Sleep,
	}
}

// ExecFunc runs one command and returns its combined output.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// NewRunnerWithExec returns a Runner backed by a custom exec function.
// Orchestrator tests use it to record commands without spawning processes.
func NewRunnerWithExec(policy Policy, settle time.Duration, log *zap.SugaredLogger, exec ExecFunc) *Runner {
	r := NewRunner(policy, settle, log)
	r.execFn = exec
	return r
}

// Policy returns the Runner's execution policy so collaborators (store,
// orchestrators) can share the same pretend/force decision.
func (r *Runner) Policy() Policy { return r.policy }

// Run executes command and fails with *ActionError on a non-zero exit,
// subject to the Runner's policy.
func (r *Runner) Run(ctx context.Context, command string) error {
	return r.run(ctx, command, false, false)
}

// RunIgnoreErrors is Run with a per-call force: failures are logged but
// never returned.  Used for actions like pkill where a non-zero exit is an
// acceptable outcome.
func (r *Runner) RunIgnoreErrors(ctx context.Context, command string) error {
	return r.run(ctx, command, true, false)
}

// RunShell executes command through /bin/sh -c, for the few actions that
// need shell redirection (setting the initial password from a file).
func (r *Runner) RunShell(ctx context.Context, command string) error {
	return r.run(ctx, command, false, true)
}

func (r *Runner) run(ctx context.Context, command string, ignoreErrors, viaShell bool) error {
	r.log.Infow("executing shell command", "cmd", command)
	if r.policy.Pretend {
		return nil
	}

	var out []byte
	var err error
	if viaShell {
		out, err = r.execFn(ctx, "/bin/sh", "-c", command)
	} else {
		argv := strings.Fields(command)
		if len(argv) == 0 {
			return &ActionError{Command: command, Err: fmt.Errorf("empty command")}
		}
		out, err = r.execFn(ctx, argv[0], argv[1:]...)
	}
	if err != nil {
		if !ignoreErrors {
			r.log.Errorw("shell command failed", "cmd", command, "err", err, "output", string(out))
		}
		if r.policy.Force || ignoreErrors {
			return nil
		}
		return &ActionError{Command: command, Output: string(out), Err: err}
	}
	if len(out) > 0 {
		r.log.Debugw("shell command output", "cmd", command, "output", string(out))
	}
	return nil
}

// WaitSettle sleeps the configured settle delay, logging why.  It is a
// best-effort "let the OS reap them" pause after termination signals, not a
// verified-exit guarantee; a poll-until-exit loop would be stronger but
// would change the original's timing behaviour.
func (r *Runner) WaitSettle(reason string) {
	r.log.Infow(reason, "delay", r.settle)
	if r.policy.Pretend {
		return
	}
	r.sleepFn(r.settle)
}

// Exists reports whether a path is present on disk.  Pre-checks use it even
// under pretend mode: pretend sees the real world, touches nothing.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
