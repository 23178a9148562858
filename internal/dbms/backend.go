// internal/dbms/backend.go
//
// Database-engine capability consumed by the site and database
// orchestrators.
//
// Context
// -------
// Piccolo administers schemas and login roles on two engines.  Each engine
// exposes the same small admin surface; the orchestrators never see SQL.
// Identifier positions cannot be parameterized, so every name that reaches
// a backend has already passed the shared name rule or the engine length
// check.
package dbms

import (
	"context"
	"fmt"
	"strings"
)

// Kind selects an engine.  The numeric values are what the metadata store
// persists.
type Kind int

const (
	MySQL      Kind = 1
	PostgreSQL Kind = 2
)

func (k Kind) String() string {
	switch k {
	case MySQL:
		return "MySQL"
	case PostgreSQL:
		return "PostgreSQL"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MaxNameLen is the engine's maximum identifier length for a schema name.
func (k Kind) MaxNameLen() int {
	switch k {
	case MySQL:
		return 64
	case PostgreSQL:
		return 63
	}
	return 0
}

// ParseKind maps the CLI's --dbms argument to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "mysql":
		return MySQL, nil
	case "postgresql":
		return PostgreSQL, nil
	}
	return 0, fmt.Errorf("invalid dbms %q (want mysql or postgresql)", s)
}

// Backend is one engine's admin surface.
type Backend interface {
	SchemaExists(ctx context.Context, name string) (bool, error)
	CreateSchema(ctx context.Context, name, owner string) error
	DropSchema(ctx context.Context, name string) error
	CreateLoginRole(ctx context.Context, name, password string) error
	DropLoginRole(ctx context.Context, name string) error
	GrantAll(ctx context.Context, schema, role string) error
	// ReassignOwner adopts a pre-existing schema: ownership (or, on MySQL,
	// full privileges) moves to role without creating anything.
	ReassignOwner(ctx context.Context, schema, role string) error
	// DropOwned removes every object a role owns, where the engine requires
	// that before the role itself can be dropped.  No-op on MySQL.
	DropOwned(ctx context.Context, role string) error
}
