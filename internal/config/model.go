// internal/config/model.go
//
// Typed configuration model for piccolo.
//
// Context
// -------
// These structs define the shape of the tree `internal/config/loader.go`
// builds from three overlay layers:
//
//   • optional `.env`                           – dotenv values,
//   • `/etc/piccolo/piccolo.yaml`               – primary static file,
//   • `PICCOLO_`-prefixed environment overrides – highest precedence.
//
// Any credential value of the form `vault:<path>#<key>` is resolved through
// the Vault client after unmarshalling, so the rest of the program only
// ever sees plain strings.
//
// Validation happens immediately after unmarshal; the tool fails fast if
// required fields are missing.  Struct tags use `koanf:"…"`.
package config

// Paths locates everything piccolo reads and writes on the host.
type Paths struct {
	Data          string `koanf:"data"            validate:"required"`
	Logs          string `koanf:"logs"            validate:"required"`
	UsersRoot     string `koanf:"users_root"      validate:"required"`
	SitesRoot     string `koanf:"sites_root"      validate:"required"`
	NginxConfRoot string `koanf:"nginx_conf_root" validate:"required"`
	// SudoersDir defaults to /etc/sudoers.d when left empty.
	SudoersDir   string `koanf:"sudoers_dir"`
	TemplateRoot string `koanf:"template_root"   validate:"required"`
}

// Store holds the metadata-store connection string.
type Store struct {
	DSN string `koanf:"dsn" validate:"required"`
}

// Engines holds admin connections for the two managed database engines.
// The MySQL DSN targets the `mysql` system database; the PostgreSQL DSN
// targets the `postgres` maintenance database.
type Engines struct {
	MySQLDSN    string `koanf:"mysql_dsn"    validate:"required"`
	PostgresDSN string `koanf:"postgres_dsn" validate:"required"`
}

// SMTP configures the authenticated mail relay.
type SMTP struct {
	Host         string `koanf:"host"          validate:"required"`
	Port         int    `koanf:"port"          validate:"required"`
	Username     string `koanf:"username"      validate:"required"`
	Password     string `koanf:"password"      validate:"required"`
	FriendlyName string `koanf:"friendly_name" validate:"required"`
}

// Provision holds tenant-provisioning tunables.
type Provision struct {
	// DefaultDomain is the zone each new site gets its implied default
	// domain under (shortname.DefaultDomain).
	DefaultDomain string `koanf:"default_domain" validate:"required,hostname"`
	// SettleSeconds is the fixed delay after kill signals before teardown
	// continues.
	SettleSeconds int `koanf:"settle_seconds"`
}

// Config is the validated aggregate returned by Load.
type Config struct {
	Paths     Paths     `koanf:"paths"`
	Store     Store     `koanf:"store"`
	Engines   Engines   `koanf:"engines"`
	SMTP      SMTP      `koanf:"smtp"`
	Provision Provision `koanf:"provision"`
}
