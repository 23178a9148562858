// internal/user/user.go
//
// User lifecycle orchestrator.
//
// Context
// -------
// A user is an OS account under the users root plus one metadata record.
// Create inserts the store record *before* any external action, so a crash
// mid-provisioning leaves a breadcrumb an operator can find and clean up,
// never a ghost OS account with no trace.  If an external step then fails
// the provisional record is removed again (best effort) and the failure
// re-raised.
//
// Delete is the mirror with the opposite bias: the store record is only
// removed after the OS teardown succeeds.  A stale-but-truthful record
// beats a dangling OS account with no metadata trail.
package user

import (
	"context"
	"errors"
	"fmt"
	"os"
	osuser "os/user"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/mail"
	"github.com/aspc/piccolo/internal/names"
	"github.com/aspc/piccolo/internal/shell"
	"github.com/aspc/piccolo/internal/store"
	"github.com/aspc/piccolo/internal/template"
)

var (
	ErrExists       = errors.New("user already exists")
	ErrDoesNotExist = errors.New("user does not exist")
	ErrBadName      = errors.New("bad username")
)

const passwordLength = 12

// Manager drives user create/delete against the store, the OS, and the
// mail relay.
type Manager struct {
	store     store.Store
	runner    *shell.Runner
	renderer  *template.Renderer
	mailer    mail.Sender
	usersRoot string
	log       *zap.SugaredLogger

	// accountExists consults the OS account database; injectable for tests.
	accountExists func(username string) bool
}

func NewManager(st store.Store, runner *shell.Runner, renderer *template.Renderer,
	mailer mail.Sender, usersRoot string, log *zap.SugaredLogger) *Manager {
	return &Manager{
		store:     st,
		runner:    runner,
		renderer:  renderer,
		mailer:    mailer,
		usersRoot: usersRoot,
		log:       log,
		accountExists: func(username string) bool {
			_, err := osuser.Lookup(username)
			return err == nil
		},
	}
}

// HomeOf derives the user's home directory; it is never stored.
func (m *Manager) HomeOf(username string) string {
	return filepath.Join(m.usersRoot, username)
}

// CreateOptions tunes Create.  AdoptExisting brings an already-present OS
// account under management: the account and home pre-checks become
// non-fatal and no external action runs.
type CreateOptions struct {
	SuppressWelcome bool
	AdoptExisting   bool
}

// Create provisions one user end to end.
func (m *Manager) Create(ctx context.Context, username, fullName, email string, opts CreateOptions) error {
	if !names.Valid(username) {
		return fmt.Errorf("%w: %q must be 2-%d characters of letters, digits, and dashes",
			ErrBadName, username, names.Limit)
	}

	if existing, err := m.store.GetUser(ctx, username); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: %s is already in the store", ErrExists, username)
	}
	if !opts.AdoptExisting {
		if m.accountExists(username) {
			return fmt.Errorf("%w: %s is already an OS account", ErrExists, username)
		}
		if shell.Exists(m.HomeOf(username)) {
			return fmt.Errorf("%w: home directory %s already exists", ErrExists, m.HomeOf(username))
		}
	}

	if opts.AdoptExisting || m.runner.Policy().Pretend {
		opts.SuppressWelcome = true
	}

	rec := &store.User{Username: username, FullName: fullName, Email: email}
	if err := m.store.AddUser(ctx, rec); err != nil {
		return err
	}

	password := shell.GeneratePassword(passwordLength)
	if !opts.AdoptExisting {
		if err := m.shellCreate(ctx, rec, password); err != nil {
			// Compensate: drop the provisional record so the store does not
			// claim an account that never finished provisioning.
			if delErr := m.store.DeleteUser(ctx, username); delErr != nil {
				m.log.Errorw("rollback of provisional user record failed",
					"user", username, "err", delErr)
			}
			return err
		}
	}

	m.log.Infow("created user", "user", username, "full_name", fullName, "email", email)

	if !opts.SuppressWelcome {
		m.sendWelcome(rec, password)
	} else if !opts.AdoptExisting && !m.runner.Policy().Pretend {
		m.log.Infow("initial password (welcome email suppressed)",
			"user", username, "password", password)
	}
	return nil
}

func (m *Manager) shellCreate(ctx context.Context, rec *store.User, password string) error {
	if err := m.runner.Run(ctx, fmt.Sprintf("useradd -U -b %s -m -s /bin/bash %s",
		m.usersRoot, rec.Username)); err != nil {
		return err
	}

	home := m.HomeOf(rec.Username)
	if err := m.renderer.AppendFile("user_bash_profile.sh",
		filepath.Join(home, ".profile"), m.vars(rec)); err != nil {
		return err
	}

	// Set the one-time password through a root-only temp file, then force
	// expiry so the first login has to change it.
	tmppass := filepath.Join(home, ".tmppass")
	if !m.runner.Policy().Pretend {
		if err := os.WriteFile(tmppass, []byte(password+"\n"+password+"\n"), 0o700); err != nil {
			return fmt.Errorf("write %s: %w", tmppass, err)
		}
	}
	if err := m.runner.RunShell(ctx, fmt.Sprintf("passwd %s < %s", rec.Username, tmppass)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "passwd -e "+rec.Username); err != nil {
		return err
	}
	return m.runner.Run(ctx, "rm "+tmppass)
}

func (m *Manager) sendWelcome(rec *store.User, password string) {
	vars := m.vars(rec)
	vars["$INITIAL_PASSWORD"] = password
	body, err := m.renderer.RenderTemplate("user_email.txt", vars)
	if err != nil {
		m.log.Errorw("welcome email render failed", "user", rec.Username, "err", err)
		return
	}
	subject := fmt.Sprintf("New account %s", rec.Username)
	if err := m.mailer.Send(rec.FullName, rec.Email, subject, body); err != nil {
		// The account is valid whether or not the notification arrived.
		m.log.Errorw("welcome email failed", "user", rec.Username, "err", err)
		return
	}
	m.log.Infow("sent welcome email", "user", rec.Username, "email", rec.Email)
}

// Delete tears down one user.  When OS teardown fails the store record is
// deliberately kept.
func (m *Manager) Delete(ctx context.Context, username string) error {
	rec, err := m.store.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: cannot delete %s", ErrDoesNotExist, username)
	}

	m.runner.RunIgnoreErrors(ctx, "pkill -u "+username)
	m.runner.WaitSettle("waiting for user's processes to exit")
	if err := m.runner.Run(ctx, "userdel -r "+username); err != nil {
		return err
	}

	if err := m.store.DeleteUser(ctx, username); err != nil {
		return err
	}
	m.log.Infow("deleted user", "user", username)
	return nil
}

func (m *Manager) vars(rec *store.User) map[string]string {
	return map[string]string{
		"$USERNAME":  rec.Username,
		"$FULL_NAME": rec.FullName,
	}
}
