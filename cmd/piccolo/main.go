// cmd/piccolo/main.go
//
// Piccolo – shared-hosting provisioning CLI entry point.
//
// Invocation life-cycle
// ---------------------
//
//  1. Load env vars (host-wide file → .env fallback).
//
//  2. Parse the verb tree; the persistent -p/-f flags fix the execution
//     policy for the whole invocation.
//
//  3. Build the App (logger, config, stores, engine connections,
//     managers) through the Builder once the policy is known.
//
//  4. Audit the permissions of the security-sensitive paths and warn on
//     any drift before the first action runs.
//
//  5. Dispatch the selected verb; any error exits 1.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/aspc/piccolo/internal/cli"
	"github.com/aspc/piccolo/internal/config"
	"github.com/aspc/piccolo/internal/database"
	"github.com/aspc/piccolo/internal/dbms"
	"github.com/aspc/piccolo/internal/logger"
	"github.com/aspc/piccolo/internal/mail"
	"github.com/aspc/piccolo/internal/shell"
	"github.com/aspc/piccolo/internal/site"
	"github.com/aspc/piccolo/internal/store"
	"github.com/aspc/piccolo/internal/template"
	"github.com/aspc/piccolo/internal/user"
)

const (
	hostEnvPath       = "/usr/local/etc/piccolo/global.env"
	defaultSudoersDir = "/etc/sudoers.d"
	defaultSettle     = 3 * time.Second
)

// loadEnv prefers the host-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(hostEnvPath); err == nil {
		_ = godotenv.Load(hostEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

// auditPermissions compares security-sensitive paths against their
// expected user/group/other modes.  A missing path is fatal, drift is a
// loud warning: running with loose modes hands site owners the keys.
func auditPermissions(cfg *config.Config, log *zap.SugaredLogger) error {
	checks := []struct {
		path string
		want string
	}{
		{cfg.Paths.Data, "u=rwx,g=rx"},
		{cfg.Paths.Logs, "u=rwx,g=rx"},
		{config.Path(), "u=rw"},
		{cfg.Paths.NginxConfRoot, "u=rwx,g=rx,o=rx"},
	}
	for _, c := range checks {
		want, err := shell.ParseSymbolic(c.want)
		if err != nil {
			return err
		}
		got, err := shell.UGOMode(c.path)
		if err != nil {
			return fmt.Errorf("%s is missing, cannot start: %w", c.path, err)
		}
		if got != want {
			log.Warnw("incorrect permissions, running like this is a security risk",
				"path", c.path, "mode", fmt.Sprintf("%04o", got), "want", fmt.Sprintf("%04o", want))
		}
	}
	return nil
}

func build(ctx context.Context, policy shell.Policy) (*cli.App, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Paths.Logs, runningInTTY())
	if err != nil {
		return nil, err
	}
	if err := auditPermissions(cfg, log); err != nil {
		return nil, err
	}

	storeDB, err := sqlx.ConnectContext(ctx, "mysql", cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}
	if err := store.EnsureSchema(ctx, storeDB); err != nil {
		return nil, err
	}
	mysqlAdmin, err := sqlx.ConnectContext(ctx, "mysql", cfg.Engines.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("mysql engine: %w", err)
	}
	pgAdmin, err := sql.Open("postgres", cfg.Engines.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgresql engine: %w", err)
	}
	if err := pgAdmin.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgresql engine: %w", err)
	}

	settle := defaultSettle
	if cfg.Provision.SettleSeconds > 0 {
		settle = time.Duration(cfg.Provision.SettleSeconds) * time.Second
	}
	sudoersDir := cfg.Paths.SudoersDir
	if sudoersDir == "" {
		sudoersDir = defaultSudoersDir
	}

	runner := shell.NewRunner(policy, settle, log)
	renderer := template.New(cfg.Paths.TemplateRoot, policy, log)
	mailer := mail.NewRelay(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
		cfg.SMTP.Password, cfg.SMTP.FriendlyName)
	st := store.NewSQL(storeDB, policy, log)
	mysqlBackend := dbms.NewMySQL(mysqlAdmin)
	pgBackend := dbms.NewPostgres(pgAdmin)

	layout := site.Layout{
		SitesRoot:     cfg.Paths.SitesRoot,
		UsersRoot:     cfg.Paths.UsersRoot,
		NginxConfRoot: cfg.Paths.NginxConfRoot,
		SudoersDir:    sudoersDir,
		TemplateRoot:  cfg.Paths.TemplateRoot,
		DefaultDomain: cfg.Provision.DefaultDomain,
	}

	return &cli.App{
		Store: st,
		Users: user.NewManager(st, runner, renderer, mailer, cfg.Paths.UsersRoot, log),
		Sites: site.NewManager(st, runner, renderer, mailer, mysqlBackend, pgBackend,
			layout, log),
		Databases: database.NewManager(st, policy, mysqlBackend, pgBackend,
			cfg.Paths.SitesRoot, log),
		Log: log,
	}, nil
}

func main() {
	root := cli.NewRoot(build)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "piccolo:", err)
		os.Exit(1)
	}
}
