// internal/site/site.go
//
// Site lifecycle orchestrator.
//
// Context
// -------
// A site is the unit of tenancy: one OS account/group pair, one directory
// tree materialized from the site template, one nginx virtual host, a
// credentials pair valid on both database engines, and at least one domain
// at all times.
//
// Create persists the provisional record and then drives the external
// sequence.  Unlike users, a failure partway does NOT roll the record
// back: site provisioning has many steps and a full inverse is riskier
// than a forward retry, so a partially-provisioned site is an accepted,
// operator-recoverable state.
//
// Delete is the explicit, ordered inverse: stop services → drop owned
// databases → drop login roles → remove sudo/nginx config → remove the OS
// identity → remove the store records → reload nginx.  The record-level
// cascade in the store is the last step, never a substitute for the
// external teardown.
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/dbms"
	"github.com/aspc/piccolo/internal/mail"
	"github.com/aspc/piccolo/internal/names"
	"github.com/aspc/piccolo/internal/shell"
	"github.com/aspc/piccolo/internal/store"
	"github.com/aspc/piccolo/internal/template"
)

var (
	ErrExists         = errors.New("site already exists")
	ErrDoesNotExist   = errors.New("site does not exist")
	ErrBadName        = errors.New("bad site name")
	ErrAlreadyHasUser = errors.New("user is already a member of site")
	ErrNoSuchUser     = errors.New("user is not a member of site")
)

// Sub-directories of a fresh site home and their permission strings.  The
// public tree carries the group-sticky bit so site members can collaborate;
// bin is executable-only.
var sitePermissions = []struct {
	path string
	mode string
}{
	{"bin", "u=rx,g=rx,o="},
	{"config", "u=rwx,g=rwx,o="},
	{"logs", "u=rwx,g=rx,o="},
	{"public", "u=rwx,g=rwxs,o="},
	{"run", "u=rwx,g=rxs,o=x"},
	{"temp", "u=rwx,g=rxs,o="},
}

// Directories created empty rather than copied from the template tree.
var additionalDirs = []string{"logs", "run", "temp", "temp/nginx"}

// Services every site runs out of its own bin directory.
var siteServices = []string{"httpd.sh", "php.sh"}

// Layout is the host-path configuration the orchestrator needs.
type Layout struct {
	SitesRoot     string
	UsersRoot     string
	NginxConfRoot string
	SudoersDir    string
	TemplateRoot  string
	DefaultDomain string
}

// Manager drives site, domain, and membership lifecycles.
type Manager struct {
	store    store.Store
	runner   *shell.Runner
	renderer *template.Renderer
	mailer   mail.Sender
	mysql    dbms.Backend
	postgres dbms.Backend
	layout   Layout
	log      *zap.SugaredLogger
}

func NewManager(st store.Store, runner *shell.Runner, renderer *template.Renderer,
	mailer mail.Sender, mysql, postgres dbms.Backend, layout Layout,
	log *zap.SugaredLogger) *Manager {
	return &Manager{
		store:    st,
		runner:   runner,
		renderer: renderer,
		mailer:   mailer,
		mysql:    mysql,
		postgres: postgres,
		layout:   layout,
		log:      log,
	}
}

// HomeOf derives the site's home directory.
func (m *Manager) HomeOf(shortname string) string {
	return filepath.Join(m.layout.SitesRoot, shortname)
}

// DefaultDomainOf is the implied default domain a new site registers.
func (m *Manager) DefaultDomainOf(shortname string) string {
	return shortname + "." + m.layout.DefaultDomain
}

// Create provisions one site end to end, finishing with its implied
// default domain.
func (m *Manager) Create(ctx context.Context, shortname, fullName string) error {
	if existing, err := m.store.GetSite(ctx, shortname); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: %s is already in the store", ErrExists, shortname)
	}
	if shell.Exists(m.HomeOf(shortname)) {
		return fmt.Errorf("%w: %s already exists on disk", ErrExists, m.HomeOf(shortname))
	}
	if !names.Valid(shortname) {
		return fmt.Errorf("%w: %q must be 2-%d characters of letters, digits, and dashes",
			ErrBadName, shortname, names.Limit)
	}
	// Domain-collision pre-check, strictly before any store or external
	// mutation.
	if owner, err := m.store.GetDomain(ctx, m.DefaultDomainOf(shortname)); err != nil {
		return err
	} else if owner != nil {
		return fmt.Errorf("%w: domain %s already belongs to site %s; remove it first",
			ErrBadName, owner.DomainName, owner.SiteShortname)
	}

	rec := &store.Site{
		Shortname:       shortname,
		FullName:        fullName,
		DBUsername:      names.SanitizeIdentifier(shortname),
		DBUsernameMySQL: names.MySQLIdentifier(shortname),
		DBPassword:      shell.GeneratePassword(20),
	}
	if err := m.store.AddSite(ctx, rec); err != nil {
		return err
	}

	if err := m.shellCreate(ctx, rec); err != nil {
		// Deliberately no record rollback; see package comment.
		return err
	}
	if err := m.CreateDomain(ctx, m.DefaultDomainOf(shortname), rec); err != nil {
		return err
	}

	if err := m.runner.Run(ctx, "service nginx reload"); err != nil {
		return err
	}
	m.log.Infow("created site", "site", shortname, "full_name", fullName)
	return nil
}

func (m *Manager) shellCreate(ctx context.Context, rec *store.Site) error {
	home := m.HomeOf(rec.Shortname)

	if err := m.runner.Run(ctx, fmt.Sprintf("useradd -U -b %s -m -s /bin/bash %s",
		m.layout.SitesRoot, rec.Shortname)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "chmod u=rwX,g=rwXs,o=X "+home); err != nil {
		return err
	}

	// Materialize the site template tree.
	matches, err := filepath.Glob(filepath.Join(m.layout.TemplateRoot, "site", "*"))
	if err != nil {
		return err
	}
	for _, src := range matches {
		if err := m.runner.Run(ctx, fmt.Sprintf("cp -R %s %s", src, home)); err != nil {
			return err
		}
	}
	for _, d := range additionalDirs {
		if err := m.runner.Run(ctx, "mkdir "+filepath.Join(home, d)); err != nil {
			return err
		}
	}
	if err := m.runner.Run(ctx, fmt.Sprintf("chown -R %s:%s %s",
		rec.Shortname, rec.Shortname, home)); err != nil {
		return err
	}
	for _, p := range sitePermissions {
		if err := m.runner.Run(ctx, fmt.Sprintf("chmod %s %s",
			p.mode, filepath.Join(home, p.path))); err != nil {
			return err
		}
	}

	// Substitute variables across every templated file, then harden the
	// per-role file modes.
	if err := m.rewriteTree(home, m.vars(rec)); err != nil {
		return err
	}
	if err := m.chmodTree(ctx, filepath.Join(home, "bin"), "u=rwx,g=rx,o="); err != nil {
		return err
	}
	if err := m.chmodTree(ctx, filepath.Join(home, "config"), "u=rw,g=rw,o="); err != nil {
		return err
	}

	// Crontab installs from a rendered temp file that is removed after.
	crontabPath := filepath.Join(home, "crontab")
	if err := m.renderer.CopyFile("site.crontab", crontabPath, m.vars(rec)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, fmt.Sprintf("crontab -u %s %s", rec.Shortname, crontabPath)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "rm "+crontabPath); err != nil {
		return err
	}

	// Security-relevant config is never silently overwritten.
	sudoersDest := filepath.Join(m.layout.SudoersDir, rec.Shortname)
	if shell.Exists(sudoersDest) {
		return &shell.ActionError{Command: "install sudoers",
			Err: fmt.Errorf("%s exists, aborting", sudoersDest)}
	}
	if err := m.renderer.CopyFile("site.sudoers", sudoersDest, m.vars(rec)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "chmod u=r,g=r,o= "+sudoersDest); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "chown root:root "+sudoersDest); err != nil {
		return err
	}

	nginxDest := filepath.Join(m.layout.NginxConfRoot, rec.Shortname+".conf")
	if shell.Exists(nginxDest) {
		return &shell.ActionError{Command: "install nginx config",
			Err: fmt.Errorf("%s exists, aborting", nginxDest)}
	}
	if err := m.renderer.CopyFile("site.nginx.conf", nginxDest, m.vars(rec)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "chmod u=rw,g=rw,o=r "+nginxDest); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "chown root:admin "+nginxDest); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "mkdir "+m.domainConfDir(rec.Shortname)); err != nil {
		return err
	}

	if err := m.createDBAccounts(ctx, rec); err != nil {
		return err
	}

	for _, svc := range siteServices {
		if err := m.runner.Run(ctx, fmt.Sprintf("sudo -u %s %s start",
			rec.Shortname, filepath.Join(home, "bin", svc))); err != nil {
			return err
		}
	}
	return nil
}

// Delete decommissions one site: services, databases, credentials, config,
// OS identity, then the store records.
func (m *Manager) Delete(ctx context.Context, shortname string) error {
	rec, err := m.store.GetSite(ctx, shortname)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: cannot delete %s", ErrDoesNotExist, shortname)
	}

	home := m.HomeOf(shortname)
	for _, svc := range siteServices {
		if err := m.runner.Run(ctx, fmt.Sprintf("sudo -u %s %s stop",
			shortname, filepath.Join(home, "bin", svc))); err != nil {
			return err
		}
	}
	m.runner.RunIgnoreErrors(ctx, "pkill -u "+shortname)
	m.runner.WaitSettle("waiting for services to be removed from process list")

	if err := m.dropDBAccounts(ctx, rec); err != nil {
		return err
	}

	if err := m.runner.Run(ctx, "rm "+filepath.Join(m.layout.SudoersDir, shortname)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "rm "+filepath.Join(m.layout.NginxConfRoot, shortname+".conf")); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "rm -rf "+m.domainConfDir(shortname)); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "userdel -r "+shortname); err != nil {
		return err
	}
	m.runner.RunIgnoreErrors(ctx, "groupdel "+shortname)

	if err := m.store.DeleteSite(ctx, shortname); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "service nginx reload"); err != nil {
		return err
	}
	m.log.Infow("deleted site", "site", shortname)
	return nil
}

func (m *Manager) createDBAccounts(ctx context.Context, rec *store.Site) error {
	m.log.Infow("creating PostgreSQL login role", "role", rec.DBUsername)
	if err := m.engineCall(func() error {
		return m.postgres.CreateLoginRole(ctx, rec.DBUsername, rec.DBPassword)
	}); err != nil {
		return err
	}
	m.log.Infow("creating MySQL login role", "role", rec.DBUsernameMySQL)
	return m.engineCall(func() error {
		return m.mysql.CreateLoginRole(ctx, rec.DBUsernameMySQL, rec.DBPassword)
	})
}

func (m *Manager) dropDBAccounts(ctx context.Context, rec *store.Site) error {
	m.log.Infow("dropping databases owned by site", "site", rec.Shortname)
	owned, err := m.store.DatabasesBySite(ctx, rec.Shortname)
	if err != nil {
		return err
	}
	for _, d := range owned {
		m.log.Infow("dropping database", "db", d.DBName, "dbms", d.DBMS.String())
		if err := m.engineCall(func() error {
			return m.backendFor(d.DBMS).DropSchema(ctx, d.DBName)
		}); err != nil {
			return err
		}
	}

	m.log.Infow("dropping PostgreSQL login role", "role", rec.DBUsername)
	if err := m.engineCall(func() error {
		if err := m.postgres.DropOwned(ctx, rec.DBUsername); err != nil {
			return err
		}
		return m.postgres.DropLoginRole(ctx, rec.DBUsername)
	}); err != nil {
		return err
	}

	m.log.Infow("dropping MySQL login role", "role", rec.DBUsernameMySQL)
	return m.engineCall(func() error {
		return m.mysql.DropLoginRole(ctx, rec.DBUsernameMySQL)
	})
}

// engineCall applies the execution policy to a database-engine action the
// way the Runner applies it to shell commands: pretend skips, force logs
// and swallows.
func (m *Manager) engineCall(fn func() error) error {
	policy := m.runner.Policy()
	if policy.Pretend {
		return nil
	}
	if err := fn(); err != nil {
		m.log.Errorw("database engine action failed", "err", err)
		if policy.Force {
			return nil
		}
		return err
	}
	return nil
}

func (m *Manager) backendFor(kind dbms.Kind) dbms.Backend {
	if kind == dbms.MySQL {
		return m.mysql
	}
	return m.postgres
}

// rewriteTree substitutes vars in every regular file under root.  A
// missing root is fine under pretend (nothing was materialized).
func (m *Manager) rewriteTree(root string, vars map[string]string) error {
	if !shell.Exists(root) {
		if m.runner.Policy().Pretend {
			return nil
		}
		return fmt.Errorf("site tree %s missing after materialization", root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return m.renderer.RewriteInPlace(path, vars)
	})
}

// chmodTree applies one symbolic mode to every regular file under root.
func (m *Manager) chmodTree(ctx context.Context, root, mode string) error {
	if !shell.Exists(root) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return m.runner.Run(ctx, fmt.Sprintf("chmod %s %s", mode, path))
	})
}

func (m *Manager) domainConfDir(shortname string) string {
	return filepath.Join(m.layout.NginxConfRoot, shortname+"_domains")
}

func (m *Manager) vars(rec *store.Site) map[string]string {
	return map[string]string{
		"$SHORTNAME":         rec.Shortname,
		"$FULL_NAME":         rec.FullName,
		"$SITE_ROOT":         m.HomeOf(rec.Shortname),
		"$DB_USERNAME":       rec.DBUsername,
		"$DB_USERNAME_MYSQL": rec.DBUsernameMySQL,
		"$DB_PASSWORD":       rec.DBPassword,
		"$NGINX_CONF_ROOT":   m.layout.NginxConfRoot,
	}
}

// Report is the status view of one site.
type Report struct {
	Site      store.Site
	Home      string
	Users     []store.User
	Domains   []store.Domain
	Databases []store.Database
}

// Status assembles the full relationship view of one site.
func (m *Manager) Status(ctx context.Context, shortname string) (*Report, error) {
	rec, err := m.store.GetSite(ctx, shortname)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrDoesNotExist, shortname)
	}
	users, err := m.store.MembersOfSite(ctx, shortname)
	if err != nil {
		return nil, err
	}
	domains, err := m.store.DomainsBySite(ctx, shortname)
	if err != nil {
		return nil, err
	}
	databases, err := m.store.DatabasesBySite(ctx, shortname)
	if err != nil {
		return nil, err
	}
	return &Report{
		Site:      *rec,
		Home:      m.HomeOf(shortname),
		Users:     users,
		Domains:   domains,
		Databases: databases,
	}, nil
}
