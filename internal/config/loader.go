// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one validated `Config` from three layers (highest
precedence last):

  1. Optional `.env` in the working directory.
  2. The YAML config file — `PICCOLO_CONFIG` when set, otherwise
     `/etc/piccolo/piccolo.yaml`.
  3. Environment variables prefixed `PICCOLO_`, where `__` maps to “.”
     (e.g., `PICCOLO_SMTP__HOST → smtp.host`).

After merging, the tree is unmarshalled into strongly-typed structs and
validated.  Credential fields carrying a `vault:` reference are resolved
through `internal/vault` before the Config is handed out, so the rest of
the tool only ever sees plain strings.

There is no hot reload: piccolo runs one command and exits.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/vault"
)

// DefaultPath is where the config file lives on a provisioned host.
const DefaultPath = "/etc/piccolo/piccolo.yaml"

// Path resolves the config file location, honoring PICCOLO_CONFIG.
func Path() string {
	if p := os.Getenv("PICCOLO_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads .env, YAML, and env overrides, validates, and resolves vault
// references.  The returned Config is ready for use.
func Load(ctx context.Context) (*Config, error) {
	// .env (optional, no error if missing)
	_ = godotenv.Load()

	k := koanf.New(".")

	yamlPath := Path()
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, fmt.Errorf("load %s: %w", yamlPath, err)
	}

	// Env overrides: PICCOLO_SMTP__HOST → smtp.host.  PICCOLO_CONFIG is
	// the file locator above, not a config key.
	if err := k.Load(env.Provider("PICCOLO_", ".", func(s string) string {
		if s == "PICCOLO_CONFIG" {
			return ""
		}
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, "PICCOLO_"), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, &cfg); err != nil {
		return nil, err
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	zap.S().Infow("config loaded",
		"file", yamlPath,
		"sites_root", cfg.Paths.SitesRoot,
		"default_domain", cfg.Provision.DefaultDomain,
	)
	return &cfg, nil
}

// resolveSecrets rewrites every credential field carrying a `vault:`
// reference.  The Vault client is only constructed when at least one
// reference is present, so hosts without Vault never need VAULT_ADDR.
func resolveSecrets(ctx context.Context, cfg *Config) error {
	fields := []*string{
		&cfg.Store.DSN,
		&cfg.Engines.MySQLDSN,
		&cfg.Engines.PostgresDSN,
		&cfg.SMTP.Password,
	}

	var cli *vault.Client
	for _, f := range fields {
		if !vault.IsRef(*f) {
			continue
		}
		if cli == nil {
			var err error
			if cli, err = vault.New(ctx); err != nil {
				return fmt.Errorf("vault client: %w", err)
			}
		}
		resolved, err := cli.Resolve(ctx, *f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}
