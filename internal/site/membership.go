// internal/site/membership.go
//
// Site membership.
//
// Context
// -------
// Membership has three coupled effects: the store relation, the OS group,
// and a symlink from the user's home into the site's home.  AddUser
// persists the relation first and compensates it back out if the external
// steps fail; RemoveUser does the reverse and only drops the relation
// once the external steps succeed.
package site

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aspc/piccolo/internal/store"
)

// AddUser makes usr a member of rec and notifies them by email unless
// suppressed.  Pretend mode always suppresses the email.
func (m *Manager) AddUser(ctx context.Context, rec *store.Site, usr *store.User, suppressWelcome bool) error {
	if m.runner.Policy().Pretend {
		suppressWelcome = true
		m.log.Infow("pretending to add user to site", "user", usr.Username, "site", rec.Shortname)
	}

	member, err := m.store.HasMember(ctx, rec.Shortname, usr.Username)
	if err != nil {
		return err
	}
	if member {
		return fmt.Errorf("%w: %s in %s", ErrAlreadyHasUser, usr.Username, rec.Shortname)
	}
	if err := m.store.AddMember(ctx, rec.Shortname, usr.Username); err != nil {
		return err
	}

	link := filepath.Join(m.layout.UsersRoot, usr.Username, rec.Shortname)
	if err := m.runShellPair(ctx,
		fmt.Sprintf("gpasswd -a %s %s", usr.Username, rec.Shortname),
		fmt.Sprintf("ln -s %s %s", m.HomeOf(rec.Shortname), link),
	); err != nil {
		if remErr := m.store.RemoveMember(ctx, rec.Shortname, usr.Username); remErr != nil {
			m.log.Errorw("failed to roll back membership", "user", usr.Username,
				"site", rec.Shortname, "err", remErr)
		}
		return err
	}

	if !suppressWelcome {
		body, err := m.renderer.RenderTemplate("site_adduser_email.txt", map[string]string{
			"$FULL_NAME":      usr.FullName,
			"$SITE_SHORTNAME": rec.Shortname,
		})
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("Account update: %s added to site %s", usr.Username, rec.Shortname)
		if err := m.mailer.Send(usr.FullName, usr.Email, subject, body); err != nil {
			m.log.Errorw("failed to send adduser email", "to", usr.Email, "err", err)
		} else {
			m.log.Infow("sent adduser email", "to", usr.Email)
		}
	}
	m.log.Infow("added user to site", "user", usr.Username, "site", rec.Shortname)
	return nil
}

// RemoveUser revokes usr's membership of rec.  If the external steps
// fail the relation is kept so the store never understates access.
func (m *Manager) RemoveUser(ctx context.Context, rec *store.Site, usr *store.User) error {
	if m.runner.Policy().Pretend {
		m.log.Infow("pretending to remove user from site", "user", usr.Username, "site", rec.Shortname)
	}

	member, err := m.store.HasMember(ctx, rec.Shortname, usr.Username)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: %s in %s", ErrNoSuchUser, usr.Username, rec.Shortname)
	}

	link := filepath.Join(m.layout.UsersRoot, usr.Username, rec.Shortname)
	if err := m.runShellPair(ctx,
		fmt.Sprintf("gpasswd -d %s %s", usr.Username, rec.Shortname),
		"rm "+link,
	); err != nil {
		m.log.Errorw("removal failed, user is still a member in the store",
			"user", usr.Username, "site", rec.Shortname)
		return err
	}

	if err := m.store.RemoveMember(ctx, rec.Shortname, usr.Username); err != nil {
		return err
	}
	m.log.Infow("removed user from site", "user", usr.Username, "site", rec.Shortname)
	return nil
}

func (m *Manager) runShellPair(ctx context.Context, first, second string) error {
	if err := m.runner.Run(ctx, first); err != nil {
		return err
	}
	return m.runner.Run(ctx, second)
}
