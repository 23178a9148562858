// internal/store/model.go
//
// Record types mirroring the metadata tables.  The store is the single
// source of truth consulted before any external action runs; every entity
// keyed by a short name shares the rule in internal/names.
package store

import "github.com/aspc/piccolo/internal/dbms"

// User is one hosting account holder.  The home directory is derived from
// Username, never stored.
type User struct {
	Username string `db:"username"`
	FullName string `db:"full_name"`
	Email    string `db:"email"`
}

// Site is one hosted tenant.  DBPassword is generated at create time and is
// opaque: it cannot be re-derived, only read back from this record.
type Site struct {
	Shortname       string `db:"shortname"`
	FullName        string `db:"full_name"`
	DBUsername      string `db:"db_username"`
	DBUsernameMySQL string `db:"db_username_mysql"` // MySQL caps account names at 16
	DBPassword      string `db:"db_password"`
}

// Domain routes one fully qualified hostname to its owning site's virtual
// host.  Domain names are globally unique across all sites.
type Domain struct {
	DomainName    string `db:"domain_name"`
	SiteShortname string `db:"site_shortname"`
}

// Database is one schema-level resource on one engine, owned by exactly one
// site.  Names are unique across both engines inside the store, a deliberate
// operator-confusion guard rather than an engine limitation.
type Database struct {
	DBName        string    `db:"dbname"`
	DBMS          dbms.Kind `db:"dbms"`
	SiteShortname string    `db:"site_shortname"`
}
