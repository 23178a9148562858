// internal/store/sql.go
//
// sqlx-backed Store over the MySQL control-plane database.
//
// Context
// -------
// Reads always hit the database.  Writes check the execution policy first:
// under pretend they log and return without touching anything, which is
// what lets every pre-check run against real state while the dry run stays
// side-effect free.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/shell"
)

// SQL implements Store.
type SQL struct {
	db     *sqlx.DB
	policy shell.Policy
	log    *zap.SugaredLogger
}

func NewSQL(db *sqlx.DB, policy shell.Policy, log *zap.SugaredLogger) *SQL {
	return &SQL{db: db, policy: policy, log: log}
}

// skipWrite reports (and logs) whether a mutation should be suppressed.
func (s *SQL) skipWrite(what string, key string) bool {
	if s.policy.Pretend {
		s.log.Infow("pretend: store write skipped", "op", what, "key", key)
		return true
	}
	return false
}

func absentAsNil(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

/*──────────────────────────────── users ───────────────────────────────────*/

func (s *SQL) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT username, full_name, email FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQL) AddUser(ctx context.Context, u *User) error {
	if s.skipWrite("add user", u.Username) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, full_name, email) VALUES (?, ?, ?)`,
		u.Username, u.FullName, u.Email)
	return err
}

func (s *SQL) DeleteUser(ctx context.Context, username string) error {
	if s.skipWrite("delete user", username) {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM site_users WHERE user_username = ?`, username); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM users WHERE username = ?`, username); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQL) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.db.SelectContext(ctx, &out,
		`SELECT username, full_name, email FROM users ORDER BY username`)
	return out, err
}

/*──────────────────────────────── sites ───────────────────────────────────*/

func (s *SQL) GetSite(ctx context.Context, shortname string) (*Site, error) {
	var rec Site
	err := s.db.GetContext(ctx, &rec,
		`SELECT shortname, full_name, db_username, db_username_mysql, db_password
		 FROM sites WHERE shortname = ?`, shortname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQL) AddSite(ctx context.Context, rec *Site) error {
	if s.skipWrite("add site", rec.Shortname) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (shortname, full_name, db_username, db_username_mysql, db_password)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Shortname, rec.FullName, rec.DBUsername, rec.DBUsernameMySQL, rec.DBPassword)
	return err
}

func (s *SQL) DeleteSite(ctx context.Context, shortname string) error {
	if s.skipWrite("delete site", shortname) {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	// Owned rows first, then the site itself; one transaction so a crash
	// cannot orphan domain or database rows.
	for _, q := range []string{
		`DELETE FROM site_users WHERE site_shortname = ?`,
		`DELETE FROM domains WHERE site_shortname = ?`,
		`DELETE FROM databases WHERE site_shortname = ?`,
		`DELETE FROM sites WHERE shortname = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, shortname); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQL) ListSites(ctx context.Context) ([]Site, error) {
	var out []Site
	err := s.db.SelectContext(ctx, &out,
		`SELECT shortname, full_name, db_username, db_username_mysql, db_password
		 FROM sites ORDER BY shortname`)
	return out, err
}

/*─────────────────────────────── domains ──────────────────────────────────*/

func (s *SQL) GetDomain(ctx context.Context, domainName string) (*Domain, error) {
	var d Domain
	err := s.db.GetContext(ctx, &d,
		`SELECT domain_name, site_shortname FROM domains WHERE domain_name = ?`, domainName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQL) AddDomain(ctx context.Context, d *Domain) error {
	if s.skipWrite("add domain", d.DomainName) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domains (domain_name, site_shortname) VALUES (?, ?)`,
		d.DomainName, d.SiteShortname)
	return err
}

func (s *SQL) DeleteDomain(ctx context.Context, domainName string) error {
	if s.skipWrite("delete domain", domainName) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM domains WHERE domain_name = ?`, domainName)
	return err
}

func (s *SQL) DomainsBySite(ctx context.Context, shortname string) ([]Domain, error) {
	var out []Domain
	err := s.db.SelectContext(ctx, &out,
		`SELECT domain_name, site_shortname FROM domains
		 WHERE site_shortname = ? ORDER BY domain_name`, shortname)
	return out, err
}

/*────────────────────────────── databases ─────────────────────────────────*/

func (s *SQL) GetDatabase(ctx context.Context, dbname string) (*Database, error) {
	var d Database
	err := s.db.GetContext(ctx, &d,
		`SELECT dbname, dbms, site_shortname FROM databases WHERE dbname = ?`, dbname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQL) AddDatabase(ctx context.Context, d *Database) error {
	if s.skipWrite("add database", d.DBName) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO databases (dbname, dbms, site_shortname) VALUES (?, ?, ?)`,
		d.DBName, int(d.DBMS), d.SiteShortname)
	return err
}

func (s *SQL) DeleteDatabase(ctx context.Context, dbname string) error {
	if s.skipWrite("delete database", dbname) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM databases WHERE dbname = ?`, dbname)
	return err
}

func (s *SQL) DatabasesBySite(ctx context.Context, shortname string) ([]Database, error) {
	var out []Database
	err := s.db.SelectContext(ctx, &out,
		`SELECT dbname, dbms, site_shortname FROM databases
		 WHERE site_shortname = ? ORDER BY dbname`, shortname)
	return out, err
}

/*───────────────────────────── membership ─────────────────────────────────*/

func (s *SQL) HasMember(ctx context.Context, shortname, username string) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one,
		`SELECT 1 FROM site_users WHERE site_shortname = ? AND user_username = ? LIMIT 1`,
		shortname, username)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQL) AddMember(ctx context.Context, shortname, username string) error {
	if s.skipWrite("add member", shortname+"/"+username) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO site_users (site_shortname, user_username) VALUES (?, ?)`,
		shortname, username)
	return err
}

func (s *SQL) RemoveMember(ctx context.Context, shortname, username string) error {
	if s.skipWrite("remove member", shortname+"/"+username) {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM site_users WHERE site_shortname = ? AND user_username = ?`,
		shortname, username)
	return err
}

func (s *SQL) MembersOfSite(ctx context.Context, shortname string) ([]User, error) {
	var out []User
	err := s.db.SelectContext(ctx, &out,
		`SELECT u.username, u.full_name, u.email
		 FROM users u JOIN site_users su ON su.user_username = u.username
		 WHERE su.site_shortname = ? ORDER BY u.username`, shortname)
	return out, err
}

func (s *SQL) SitesOfUser(ctx context.Context, username string) ([]Site, error) {
	var out []Site
	err := s.db.SelectContext(ctx, &out,
		`SELECT st.shortname, st.full_name, st.db_username, st.db_username_mysql, st.db_password
		 FROM sites st JOIN site_users su ON su.site_shortname = st.shortname
		 WHERE su.user_username = ? ORDER BY st.shortname`, username)
	return out, err
}
