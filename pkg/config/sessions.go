package config

import (
	"fmt"
)

// SessionsConfig configures session checkpointing and the optional
// durable chat history archive.
type SessionsConfig struct {
	// Archive persists chat history to SQL. Left empty, history lives
	// only in the in-memory checkpoint store.
	Archive ArchiveConfig `yaml:"archive,omitempty" json:"archive,omitempty" jsonschema:"title=Archive,description=Durable chat history (optional)"`
}

// SetDefaults applies default values.
func (c *SessionsConfig) SetDefaults() {
	c.Archive.SetDefaults()
}

// Validate checks the sessions configuration.
func (c *SessionsConfig) Validate() error {
	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// ArchiveConfig configures the SQL chat history archive. An empty
// driver disables the archive.
type ArchiveConfig struct {
	// Driver specifies the database driver: "postgres", "mysql", or "sqlite".
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty" jsonschema:"title=Driver,description=Database driver,enum=postgres,enum=mysql,enum=sqlite"`

	// Host of the database server.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Database host"`

	// Port of the database server.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Database port"`

	// Database name.
	Database string `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=Database name"`

	// Username for authentication.
	Username string `yaml:"username,omitempty" json:"username,omitempty" jsonschema:"title=Username,description=Database user"`

	// Password for authentication. Supports ${VAR} expansion.
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password,description=Database password (use ${ENV_VAR})"`

	// SSLMode for PostgreSQL connections.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" jsonschema:"title=SSL Mode,description=SSL mode for PostgreSQL connections"`

	// Path to the SQLite database file.
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=SQLite file path"`
}

// Enabled reports whether an archive driver is configured.
func (c *ArchiveConfig) Enabled() bool {
	return c.Driver != ""
}

// SetDefaults applies default values.
func (c *ArchiveConfig) SetDefaults() {
	if !c.Enabled() {
		return
	}

	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}

	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// Validate checks the archive configuration.
func (c *ArchiveConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}

	validDrivers := map[string]bool{
		"postgres": true,
		"mysql":    true,
		"sqlite":   true,
	}
	if !validDrivers[c.Driver] {
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}

	if c.Driver == "sqlite" {
		if c.Path == "" {
			return fmt.Errorf("path is required for sqlite")
		}
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required for %s", c.Driver)
	}
	return nil
}

// DSN returns the data source name for the configured driver.
func (c *ArchiveConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		if c.SSLMode != "" {
			dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
		}
		return dsn
	case "mysql":
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
				c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
	case "sqlite":
		return c.Path
	default:
		return ""
	}
}

// DriverName returns the driver name for sql.Open. The go-sqlite3
// driver registers itself as "sqlite3".
func (c *ArchiveConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}
