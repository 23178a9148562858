package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema statements are idempotent; EnsureSchema runs at every bootstrap,
// mirroring the way the tool originally created its store on first use.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username  VARCHAR(32)  NOT NULL PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL,
		email     VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		shortname         VARCHAR(32)  NOT NULL PRIMARY KEY,
		full_name         VARCHAR(255) NOT NULL,
		db_username       VARCHAR(32)  NOT NULL UNIQUE,
		db_username_mysql VARCHAR(16)  NOT NULL UNIQUE,
		db_password       VARCHAR(20)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS domains (
		domain_name    VARCHAR(255) NOT NULL PRIMARY KEY,
		site_shortname VARCHAR(32)  NOT NULL,
		CONSTRAINT fk_domain_site FOREIGN KEY (site_shortname) REFERENCES sites (shortname)
	)`,
	`CREATE TABLE IF NOT EXISTS databases (
		dbname         VARCHAR(64) NOT NULL PRIMARY KEY,
		dbms           INT         NOT NULL,
		site_shortname VARCHAR(32) NOT NULL,
		CONSTRAINT fk_database_site FOREIGN KEY (site_shortname) REFERENCES sites (shortname)
	)`,
	`CREATE TABLE IF NOT EXISTS site_users (
		site_shortname VARCHAR(32) NOT NULL,
		user_username  VARCHAR(32) NOT NULL,
		PRIMARY KEY (site_shortname, user_username),
		CONSTRAINT fk_member_site FOREIGN KEY (site_shortname) REFERENCES sites (shortname),
		CONSTRAINT fk_member_user FOREIGN KEY (user_username) REFERENCES users (username)
	)`,
}

// EnsureSchema creates the metadata tables when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
