// internal/dbms/postgres.go
//
// PostgreSQL engine backend over an admin connection to the `postgres`
// maintenance database (lib/pq).  Role changes trigger pg_reload_conf so
// host-based auth picks them up immediately.
package dbms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresBackend implements Backend against a PostgreSQL admin connection.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresBackend { return &PostgresBackend{db: db} }

func (p *PostgresBackend) SchemaExists(ctx context.Context, name string) (bool, error) {
	var datname string
	err := p.db.QueryRowContext(ctx,
		`SELECT datname FROM pg_database WHERE datname = $1`, name).Scan(&datname)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresBackend) CreateSchema(ctx context.Context, name, owner string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s WITH OWNER = %s",
		pq.QuoteIdentifier(name), pq.QuoteIdentifier(owner)))
	return err
}

func (p *PostgresBackend) DropSchema(ctx context.Context, name string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE %s", pq.QuoteIdentifier(name)))
	return err
}

func (p *PostgresBackend) CreateLoginRole(ctx context.Context, name, password string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("CREATE ROLE %s PASSWORD %s LOGIN",
		pq.QuoteIdentifier(name), pq.QuoteLiteral(password)))
	if err != nil {
		return err
	}
	return p.reloadConf(ctx)
}

func (p *PostgresBackend) DropLoginRole(ctx context.Context, name string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP ROLE %s", pq.QuoteIdentifier(name)))
	if err != nil {
		return err
	}
	return p.reloadConf(ctx)
}

func (p *PostgresBackend) GrantAll(ctx context.Context, schema, role string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s",
		pq.QuoteIdentifier(schema), pq.QuoteIdentifier(role)))
	return err
}

func (p *PostgresBackend) ReassignOwner(ctx context.Context, schema, role string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("ALTER DATABASE %s OWNER TO %s",
		pq.QuoteIdentifier(schema), pq.QuoteIdentifier(role)))
	return err
}

func (p *PostgresBackend) DropOwned(ctx context.Context, role string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP OWNED BY %s", pq.QuoteIdentifier(role)))
	return err
}

func (p *PostgresBackend) reloadConf(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "SELECT pg_reload_conf()")
	return err
}
