// internal/store/store.go
//
// Store capability consumed by the lifecycle orchestrators.
//
// Contract
// --------
//   - Lookups return (nil, nil) on absence; callers check explicitly.
//   - Writes are immediately visible to subsequent reads in-process.
//   - Under pretend mode no mutation persists; reads always see the real
//     store, so every pre-check runs against current state.
package store

import "context"

// Store is keyed CRUD for each entity type plus the site↔user membership
// relation.  Implementations: SQL (MySQL control-plane DB) and Memory
// (tests).
type Store interface {
	GetUser(ctx context.Context, username string) (*User, error)
	AddUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]User, error)

	GetSite(ctx context.Context, shortname string) (*Site, error)
	AddSite(ctx context.Context, s *Site) error
	// DeleteSite removes the site record together with its membership,
	// domain, and database rows.  Record-level cascade only: external
	// teardown is the orchestrator's job, in its explicit order.
	DeleteSite(ctx context.Context, shortname string) error
	ListSites(ctx context.Context) ([]Site, error)

	GetDomain(ctx context.Context, domainName string) (*Domain, error)
	AddDomain(ctx context.Context, d *Domain) error
	DeleteDomain(ctx context.Context, domainName string) error
	DomainsBySite(ctx context.Context, shortname string) ([]Domain, error)

	GetDatabase(ctx context.Context, dbname string) (*Database, error)
	AddDatabase(ctx context.Context, d *Database) error
	DeleteDatabase(ctx context.Context, dbname string) error
	DatabasesBySite(ctx context.Context, shortname string) ([]Database, error)

	HasMember(ctx context.Context, shortname, username string) (bool, error)
	AddMember(ctx context.Context, shortname, username string) error
	RemoveMember(ctx context.Context, shortname, username string) error
	MembersOfSite(ctx context.Context, shortname string) ([]User, error)
	SitesOfUser(ctx context.Context, username string) ([]Site, error)
}
