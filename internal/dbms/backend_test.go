package dbms

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"mysql": MySQL, "MySQL": MySQL, "postgresql": PostgreSQL} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("oracle"); err == nil {
		t.Error("ParseKind(oracle) should fail")
	}
}

func TestKindMaxNameLen(t *testing.T) {
	if MySQL.MaxNameLen() != 64 || PostgreSQL.MaxNameLen() != 63 {
		t.Errorf("MaxNameLen: mysql=%d postgres=%d", MySQL.MaxNameLen(), PostgreSQL.MaxNameLen())
	}
}

func TestMySQLSchemaExists(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()
	backend := NewMySQL(sqlx.NewDb(raw, "mysql"))

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?`)).
		WithArgs("clubx_db").
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("clubx_db"))

	ok, err := backend.SchemaExists(context.Background(), "clubx_db")
	if err != nil {
		t.Fatalf("SchemaExists: %v", err)
	}
	if !ok {
		t.Fatal("expected schema to exist")
	}

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?`)).
		WithArgs("absent_db").
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}))

	ok, err = backend.SchemaExists(context.Background(), "absent_db")
	if err != nil {
		t.Fatalf("SchemaExists(absent): %v", err)
	}
	if ok {
		t.Fatal("absent schema reported as existing")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestMySQLCreateSchemaGrants(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()
	backend := NewMySQL(sqlx.NewDb(raw, "mysql"))

	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE `clubx_db`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("GRANT ALL PRIVILEGES ON `clubx_db`.* TO 'club_x'@'localhost'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := backend.CreateSchema(context.Background(), "clubx_db", "club_x"); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
