// internal/user/user_test.go
//
// User lifecycle semantics against the in-memory store and a recording
// shell backend: create/rollback, duplicate and bad-name rejection,
// welcome mail, adoption, and pretend-mode inertness.

package user

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/shell"
	"github.com/aspc/piccolo/internal/store"
	"github.com/aspc/piccolo/internal/template"
)

type sentMail struct {
	toName, toAddr, subject, body string
}

type fakeMailer struct {
	sent    []sentMail
	sendErr error
}

func (f *fakeMailer) Send(toName, toAddr, subject, body string) error {
	f.sent = append(f.sent, sentMail{toName, toAddr, subject, body})
	return f.sendErr
}

type fixture struct {
	m      *Manager
	store  *store.Memory
	mailer *fakeMailer
	// commands holds every spawned command line, space-joined.
	commands *[]string
}

// newFixture wires a Manager over temp directories.  The fake exec backend
// records commands, creates the home directory when useradd runs (so the
// later profile/password steps have a directory to write into), and fails
// any command whose first word appears in failOn.
func newFixture(t *testing.T, policy shell.Policy, failOn ...string) *fixture {
	t.Helper()
	usersRoot := t.TempDir()
	templateRoot := t.TempDir()
	writeTemplate(t, templateRoot, "user_bash_profile.sh", "export LOGIN=$USERNAME\n")
	writeTemplate(t, templateRoot, "user_email.txt",
		"Hello $FULL_NAME,\nYour initial password is $INITIAL_PASSWORD.\n")

	log := zap.NewNop().Sugar()
	commands := &[]string{}
	runner := shell.NewRunnerWithExec(policy, time.Millisecond, log,
		func(_ context.Context, name string, args ...string) ([]byte, error) {
			line := strings.Join(append([]string{name}, args...), " ")
			*commands = append(*commands, line)
			for _, f := range failOn {
				if name == f || strings.Contains(line, " "+f+" ") {
					return []byte("boom"), errors.New("exit status 1")
				}
			}
			if name == "useradd" {
				require.NoError(t, os.MkdirAll(filepath.Join(usersRoot, args[len(args)-1]), 0o750))
			}
			return nil, nil
		})

	st := store.NewMemory(policy)
	mailer := &fakeMailer{}
	m := NewManager(st, runner, template.New(templateRoot, policy, log), mailer, usersRoot, log)
	m.accountExists = func(string) bool { return false }
	return &fixture{m: m, store: st, mailer: mailer, commands: commands}
}

func writeTemplate(t *testing.T, root, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
}

func TestCreateProvisionsAndSendsWelcome(t *testing.T) {
	f := newFixture(t, shell.Policy{})
	ctx := context.Background()

	require.NoError(t, f.m.Create(ctx, "j-doe", "Jane Doe", "jane@example.org", CreateOptions{}))

	require.Len(t, f.store.Users, 1)
	require.Equal(t, "Jane Doe", f.store.Users["j-doe"].FullName)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	require.Equal(t, "jane@example.org", msg.toAddr)
	require.Equal(t, "New account j-doe", msg.subject)
	require.Contains(t, msg.body, "Hello Jane Doe,")
	require.NotContains(t, msg.body, "$INITIAL_PASSWORD")

	joined := strings.Join(*f.commands, "\n")
	require.Contains(t, joined, "useradd -U -b")
	require.Contains(t, joined, "passwd -e j-doe")
}

func TestCreateDuplicateRejected(t *testing.T) {
	f := newFixture(t, shell.Policy{})
	ctx := context.Background()
	require.NoError(t, f.m.Create(ctx, "j-doe", "Jane Doe", "jane@example.org", CreateOptions{}))

	err := f.m.Create(ctx, "j-doe", "Jane Doe", "jane@example.org", CreateOptions{})
	require.ErrorIs(t, err, ErrExists)
	require.Len(t, f.store.Users, 1)
	require.Len(t, f.mailer.sent, 1)
}

func TestCreateBadName(t *testing.T) {
	f := newFixture(t, shell.Policy{})

	err := f.m.Create(context.Background(), "bad_name!", "X", "x@example.org", CreateOptions{})
	require.ErrorIs(t, err, ErrBadName)
	require.Empty(t, f.store.Users)
	require.Empty(t, *f.commands)
}

func TestCreateRejectsExistingOSAccount(t *testing.T) {
	f := newFixture(t, shell.Policy{})
	f.m.accountExists = func(string) bool { return true }

	err := f.m.Create(context.Background(), "j-doe", "Jane Doe", "jane@example.org", CreateOptions{})
	require.ErrorIs(t, err, ErrExists)
	require.Empty(t, f.store.Users)
}

func TestCreateRollsBackRecordOnShellFailure(t *testing.T) {
	f := newFixture(t, shell.Policy{}, "useradd")

	err := f.m.Create(context.Background(), "j-doe", "Jane Doe", "jane@example.org", CreateOptions{})
	var actionErr *shell.ActionError
	require.ErrorAs(t, err, &actionErr)
	require.Empty(t, f.store.Users, "provisional record must be rolled back")
	require.Empty(t, f.mailer.sent)
}

func TestCreateAdoptExisting(t *testing.T) {
	f := newFixture(t, shell.Policy{})
	f.m.accountExists = func(string) bool { return true }

	err := f.m.Create(context.Background(), "j-doe", "Jane Doe", "jane@example.org",
		CreateOptions{AdoptExisting: true})
	require.NoError(t, err)
	require.Len(t, f.store.Users, 1)
	require.Empty(t, *f.commands, "adoption must not touch the OS")
	require.Empty(t, f.mailer.sent, "adoption implies no welcome email")
}

func TestDeleteMissingUser(t *testing.T) {
	f := newFixture(t, shell.Policy{})

	err := f.m.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrDoesNotExist)
	require.Empty(t, *f.commands)
}

func TestDeleteKeepsRecordWhenUserdelFails(t *testing.T) {
	f := newFixture(t, shell.Policy{}, "userdel")
	ctx := context.Background()
	require.NoError(t, f.m.Create(ctx, "j-doe", "Jane Doe", "jane@example.org", CreateOptions{}))

	err := f.m.Delete(ctx, "j-doe")
	var actionErr *shell.ActionError
	require.ErrorAs(t, err, &actionErr)
	require.Len(t, f.store.Users, 1, "record must survive a failed userdel")
}

func TestDeleteRemovesRecord(t *testing.T) {
	f := newFixture(t, shell.Policy{})
	ctx := context.Background()
	require.NoError(t, f.m.Create(ctx, "j-doe", "Jane Doe", "jane@example.org", CreateOptions{}))

	require.NoError(t, f.m.Delete(ctx, "j-doe"))
	require.Empty(t, f.store.Users)
	require.Contains(t, strings.Join(*f.commands, "\n"), "userdel -r j-doe")
}

func TestPretendCreateTouchesNothing(t *testing.T) {
	f := newFixture(t, shell.Policy{Pretend: true})

	require.NoError(t, f.m.Create(context.Background(), "j-doe", "Jane Doe", "jane@example.org", CreateOptions{}))
	require.Empty(t, f.store.Users)
	require.Empty(t, *f.commands, "pretend must not spawn anything")
	require.Empty(t, f.mailer.sent)
}
