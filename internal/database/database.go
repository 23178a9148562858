// internal/database/database.go
//
// Per-site database lifecycle.
//
// Context
// -------
// Databases are created on one of the two engines and owned by the site's
// engine credentials.  The store record is the authority on ownership:
// a name known to the store is refused outright, while a schema that
// exists only on the engine can be adopted with IgnoreExisting (ownership
// is reassigned to the site instead of creating anything).
//
// Each site's config/databases.txt mirrors its databases so site owners
// can see their inventory without store access.  The mirror is convenience
// output, maintained on the same create/delete path but never consulted.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/dbms"
	"github.com/aspc/piccolo/internal/shell"
	"github.com/aspc/piccolo/internal/store"
)

var (
	ErrExists       = errors.New("database already exists")
	ErrDoesNotExist = errors.New("database does not exist")
	ErrBadName      = errors.New("bad database name")
	ErrMismatch     = errors.New("database belongs to a different site")
)

// Manager drives database create/delete for sites.
type Manager struct {
	store     store.Store
	policy    shell.Policy
	mysql     dbms.Backend
	postgres  dbms.Backend
	sitesRoot string
	log       *zap.SugaredLogger
}

func NewManager(st store.Store, policy shell.Policy, mysql, postgres dbms.Backend,
	sitesRoot string, log *zap.SugaredLogger) *Manager {
	return &Manager{
		store:     st,
		policy:    policy,
		mysql:     mysql,
		postgres:  postgres,
		sitesRoot: sitesRoot,
		log:       log,
	}
}

// CreateOptions tunes Create.  IgnoreExisting adopts a schema already
// present on the engine by reassigning its ownership to the site.
type CreateOptions struct {
	IgnoreExisting bool
}

// Create provisions dbname on the given engine for rec.
func (m *Manager) Create(ctx context.Context, dbname string, rec *store.Site, kind dbms.Kind, opts CreateOptions) error {
	if existing, err := m.store.GetDatabase(ctx, dbname); err != nil {
		return err
	} else if existing != nil {
		// A name the store knows is never adoptable, whatever the flags.
		return fmt.Errorf("%w: %s is owned by site %s", ErrExists, dbname, existing.SiteShortname)
	}
	if len(dbname) > kind.MaxNameLen() {
		return fmt.Errorf("%w: %q exceeds the %d-character limit of %s",
			ErrBadName, dbname, kind.MaxNameLen(), kind)
	}

	owner := m.ownerRole(rec, kind)
	m.log.Infow("creating database", "db", dbname, "dbms", kind.String(), "owner", owner)
	if !m.policy.Pretend {
		backend := m.backendFor(kind)
		exists, err := backend.SchemaExists(ctx, dbname)
		if err != nil {
			return err
		}
		switch {
		case exists && !opts.IgnoreExisting:
			return fmt.Errorf("%w: schema %s is already present on %s", ErrExists, dbname, kind)
		case exists:
			if err := backend.ReassignOwner(ctx, dbname, owner); err != nil {
				return err
			}
		default:
			if err := backend.CreateSchema(ctx, dbname, owner); err != nil {
				return err
			}
		}
	}

	if err := m.store.AddDatabase(ctx, &store.Database{
		DBName:        dbname,
		DBMS:          kind,
		SiteShortname: rec.Shortname,
	}); err != nil {
		return err
	}
	if err := m.appendListing(rec.Shortname, kind, dbname); err != nil {
		return err
	}
	m.log.Infow("created database", "db", dbname, "dbms", kind.String(), "site", rec.Shortname)
	return nil
}

// Delete drops dbname from its engine and forgets it.
func (m *Manager) Delete(ctx context.Context, dbname string, rec *store.Site) error {
	existing, err := m.store.GetDatabase(ctx, dbname)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrDoesNotExist, dbname)
	}
	if existing.SiteShortname != rec.Shortname {
		return fmt.Errorf("%w: %s is owned by %s, not %s",
			ErrMismatch, dbname, existing.SiteShortname, rec.Shortname)
	}

	m.log.Infow("dropping database", "db", dbname, "dbms", existing.DBMS.String())
	if !m.policy.Pretend {
		backend := m.backendFor(existing.DBMS)
		onEngine, err := backend.SchemaExists(ctx, dbname)
		if err != nil {
			return err
		}
		if !onEngine {
			return fmt.Errorf("%w: schema %s is missing on %s", ErrDoesNotExist, dbname, existing.DBMS)
		}
		if err := backend.DropSchema(ctx, dbname); err != nil {
			return err
		}
	}

	if err := m.store.DeleteDatabase(ctx, dbname); err != nil {
		return err
	}
	if err := m.removeListing(rec.Shortname, existing.DBMS, dbname); err != nil {
		return err
	}
	m.log.Infow("deleted database", "db", dbname, "site", rec.Shortname)
	return nil
}

func (m *Manager) backendFor(kind dbms.Kind) dbms.Backend {
	if kind == dbms.MySQL {
		return m.mysql
	}
	return m.postgres
}

// ownerRole picks the site credential valid on the engine; MySQL carries
// the truncated variant.
func (m *Manager) ownerRole(rec *store.Site, kind dbms.Kind) string {
	if kind == dbms.MySQL {
		return rec.DBUsernameMySQL
	}
	return rec.DBUsername
}

func (m *Manager) listingPath(shortname string) string {
	return filepath.Join(m.sitesRoot, shortname, "config", "databases.txt")
}

func listingLine(kind dbms.Kind, dbname string) string {
	return fmt.Sprintf("[%s] %s\n", kind, dbname)
}

func (m *Manager) appendListing(shortname string, kind dbms.Kind, dbname string) error {
	if m.policy.Pretend {
		return nil
	}
	f, err := os.OpenFile(m.listingPath(shortname), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		return fmt.Errorf("append %s: %w", m.listingPath(shortname), err)
	}
	defer f.Close()
	if _, err := f.WriteString(listingLine(kind, dbname)); err != nil {
		return fmt.Errorf("append %s: %w", m.listingPath(shortname), err)
	}
	return nil
}

func (m *Manager) removeListing(shortname string, kind dbms.Kind, dbname string) error {
	if m.policy.Pretend {
		return nil
	}
	path := m.listingPath(shortname)
	old, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	trimmed := strings.Replace(string(old), listingLine(kind, dbname), "", 1)
	if err := os.WriteFile(path, []byte(trimmed), 0o664); err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	return nil
}
