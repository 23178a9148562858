// internal/dbms/mysql.go
//
// MySQL engine backend over an admin connection to the `mysql` system
// database.  Uses the same go-sql-driver pool helper as the metadata store.
package dbms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MySQLBackend implements Backend against a MySQL admin connection.
type MySQLBackend struct {
	db *sqlx.DB
}

func NewMySQL(db *sqlx.DB) *MySQLBackend { return &MySQLBackend{db: db} }

func (m *MySQLBackend) SchemaExists(ctx context.Context, name string) (bool, error) {
	var schema string
	err := m.db.GetContext(ctx, &schema,
		`SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *MySQLBackend) CreateSchema(ctx context.Context, name, owner string) error {
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE `%s`", name)); err != nil {
		return err
	}
	return m.GrantAll(ctx, name, owner)
}

func (m *MySQLBackend) DropSchema(ctx context.Context, name string) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE `%s`", name))
	return err
}

func (m *MySQLBackend) CreateLoginRole(ctx context.Context, name, password string) error {
	_, err := m.db.ExecContext(ctx,
		fmt.Sprintf("CREATE USER '%s'@'localhost' IDENTIFIED BY ?", name), password)
	return err
}

func (m *MySQLBackend) DropLoginRole(ctx context.Context, name string) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf("DROP USER '%s'@'localhost'", name))
	return err
}

func (m *MySQLBackend) GrantAll(ctx context.Context, schema, role string) error {
	_, err := m.db.ExecContext(ctx,
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'localhost'", schema, role))
	return err
}

// ReassignOwner on MySQL is a privilege grant; there is no schema-level
// owner to transfer.
func (m *MySQLBackend) ReassignOwner(ctx context.Context, schema, role string) error {
	return m.GrantAll(ctx, schema, role)
}

func (m *MySQLBackend) DropOwned(ctx context.Context, role string) error { return nil }
