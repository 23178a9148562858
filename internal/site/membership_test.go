// internal/site/membership_test.go
//
// Membership semantics: relation/group/symlink coupling, compensation on
// shell failure, and notification behaviour.

package site

import (
	"context"
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

func membershipFixture(t *testing.T, policy shell.Policy, failOn string) (*fixture, *store.Site, *store.User) {
	t.Helper()
	f := newFixture(t, policy)
	ctx := context.Background()
	require.NoError(t, f.m.Create(ctx, "the-club", "The Club"))
	usr := &store.User{Username: "j-doe", FullName: "Jane Doe", Email: "jane@example.org"}
	require.NoError(t, f.store.AddUser(ctx, usr))

	if failOn != "" {
		// Swap in a failing exec backend after provisioning succeeded.
		log := zap.NewNop().Sugar()
		commands := &[]string{}
		f.commands = commands
		runner := shell.NewRunnerWithExec(policy, time.Millisecond, log,
			func(_ context.Context, name string, args ...string) ([]byte, error) {
				*commands = append(*commands, strings.Join(append([]string{name}, args...), " "))
				if name == failOn {
					return []byte("boom"), context.DeadlineExceeded
				}
				return nil, nil
			})
		f.m = NewManager(f.store, runner, template.New(f.layout.TemplateRoot, policy, log),
			f.mailer, f.mysql, f.postgres, f.layout, log)
	}
	*f.commands = nil
	return f, mustSite(t, f, "the-club"), usr
}

func TestAddUserGrantsAccess(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "")
	ctx := context.Background()

	require.NoError(t, f.m.AddUser(ctx, rec, usr, false))

	member, err := f.store.HasMember(ctx, "the-club", "j-doe")
	require.NoError(t, err)
	require.True(t, member)

	joined := f.joined()
	require.Contains(t, joined, "gpasswd -a j-doe the-club")
	require.Contains(t, joined, "ln -s "+f.m.HomeOf("the-club")+" "+
		filepath.Join(f.layout.UsersRoot, "j-doe", "the-club"))

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	require.Equal(t, "jane@example.org", msg.toAddr)
	require.Contains(t, msg.subject, "j-doe added to site the-club")
	require.Contains(t, msg.body, "access to the-club")
}

func TestAddUserSuppressedWelcome(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "")

	require.NoError(t, f.m.AddUser(context.Background(), rec, usr, true))
	require.Empty(t, f.mailer.sent)
}

func TestAddUserTwiceRejected(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "")
	ctx := context.Background()
	require.NoError(t, f.m.AddUser(ctx, rec, usr, true))
	*f.commands = nil

	err := f.m.AddUser(ctx, rec, usr, true)
	require.ErrorIs(t, err, ErrAlreadyHasUser)
	require.Empty(t, *f.commands)
}

func TestAddUserRollsBackOnShellFailure(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "gpasswd")
	ctx := context.Background()

	err := f.m.AddUser(ctx, rec, usr, false)
	var actionErr *shell.ActionError
	require.ErrorAs(t, err, &actionErr)

	member, herr := f.store.HasMember(ctx, "the-club", "j-doe")
	require.NoError(t, herr)
	require.False(t, member, "relation must be compensated after a failed grant")
	require.Empty(t, f.mailer.sent)
}

func TestRemoveUserRevokesAccess(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "")
	ctx := context.Background()
	require.NoError(t, f.m.AddUser(ctx, rec, usr, true))
	*f.commands = nil

	require.NoError(t, f.m.RemoveUser(ctx, rec, usr))

	member, err := f.store.HasMember(ctx, "the-club", "j-doe")
	require.NoError(t, err)
	require.False(t, member)
	joined := f.joined()
	require.Contains(t, joined, "gpasswd -d j-doe the-club")
	require.Contains(t, joined, "rm "+filepath.Join(f.layout.UsersRoot, "j-doe", "the-club"))
}

func TestRemoveUserNotMember(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "")

	err := f.m.RemoveUser(context.Background(), rec, usr)
	require.ErrorIs(t, err, ErrNoSuchUser)
	require.Empty(t, *f.commands)
}

func TestRemoveUserKeepsRelationOnShellFailure(t *testing.T) {
	f, rec, usr := membershipFixture(t, shell.Policy{}, "gpasswd")
	ctx := context.Background()
	require.NoError(t, f.store.AddMember(ctx, "the-club", "j-doe"))

	err := f.m.RemoveUser(ctx, rec, usr)
	var actionErr *shell.ActionError
	require.ErrorAs(t, err, &actionErr)
	member, herr := f.store.HasMember(ctx, "the-club", "j-doe")
	require.NoError(t, herr)
	require.True(t, member, "the store must never understate access")
}

func TestPretendAddUserChangesNothing(t *testing.T) {
	pretend := shell.Policy{Pretend: true}
	f := newFixture(t, pretend)
	ctx := context.Background()
	// Seed directly; the pretend store skips writes from the manager.
	f.store.Sites["the-club"] = store.Site{Shortname: "the-club", FullName: "The Club"}
	f.store.Users["j-doe"] = store.User{Username: "j-doe", FullName: "Jane Doe", Email: "jane@example.org"}
	rec := mustSite(t, f, "the-club")
	usr := &store.User{Username: "j-doe", FullName: "Jane Doe", Email: "jane@example.org"}

	require.NoError(t, f.m.AddUser(ctx, rec, usr, false))
	require.Empty(t, f.store.Members)
	require.Empty(t, *f.commands)
	require.Empty(t, f.mailer.sent, "pretend always suppresses the welcome email")
}
