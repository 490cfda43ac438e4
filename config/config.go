package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Setup modes for the schema manager
const (
	SetupNone     = "none"
	SetupCreate   = "create"
	SetupRecreate = "recreate"
)

// Field mapping policies
const (
	PolicyAuto     = "auto"
	PolicyRaw      = "raw"
	PolicyAdjusted = "adjusted"
)

// Conflict policies applied when a float is already known
const (
	ConflictIgnore = "ignore"
	ConflictUpdate = "update"
)

// DatabaseConfig holds all database configuration
type DatabaseConfig struct {
	Driver         string         `yaml:"driver"`
	URL            string         `yaml:"url"`
	SetupMode      string         `yaml:"setup_mode"`
	MySQL          MySQLConfig    `yaml:"mysql"`
	PostgreSQL     PostgresConfig `yaml:"postgres"`
	SQLite         SQLiteConfig   `yaml:"sqlite"`
	ConnectionPool PoolConfig     `yaml:"connection_pool"`
}

// MySQLConfig holds MySQL specific configuration
type MySQLConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"dbname"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"dbname"`
	AdminDBName string `yaml:"admin_dbname"`
	SSLMode     string `yaml:"sslmode"`
	TimeZone    string `yaml:"timezone"`
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxIdleConns    int `yaml:"max_idle_conns"`
	MaxOpenConns    int `yaml:"max_open_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// MigrationConfig holds migration specific configuration
type MigrationConfig struct {
	AutoMigrate    bool   `yaml:"auto_migrate"`
	MigrationTable string `yaml:"migration_table"`
	Directory      string `yaml:"directory"`
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	LogFile      string `yaml:"log_file"`
	LogToConsole bool   `yaml:"log_to_console"`
	LogLevel     string `yaml:"log_level"`
}

// IngestConfig controls how float files are scanned and loaded
type IngestConfig struct {
	InputDir   string `yaml:"input_dir"`
	Extension  string `yaml:"extension"`
	Policy     string `yaml:"policy"`
	OnConflict string `yaml:"on_conflict"`
	BatchSize  int    `yaml:"batch_size"`
	Workers    int    `yaml:"workers"`
}

// MetricsConfig holds the optional Prometheus textfile output
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Config holds the complete application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Migration MigrationConfig `yaml:"migration"`
	Logging   LoggingConfig   `yaml:"logging"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load loads configuration from the specified YAML file.
// A .env file in the working directory is read first; DATABASE_URL and
// CONFIG_PATH from the environment take precedence over the file.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env") // optional

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML bytes, applying defaults, environment
// overrides and validation.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		config.Database.URL = url
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" && c.Database.URL != "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SetupMode == "" {
		c.Database.SetupMode = SetupNone
	}
	if c.Database.PostgreSQL.AdminDBName == "" {
		c.Database.PostgreSQL.AdminDBName = "postgres"
	}

	if c.Migration.MigrationTable == "" {
		c.Migration.MigrationTable = "schema_migrations"
	}
	if c.Migration.Directory == "" {
		c.Migration.Directory = "migrations"
	}

	if c.Logging.LogFile == "" {
		c.Logging.LogFile = "result.log"
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = "info"
	}

	if c.Ingest.InputDir == "" {
		c.Ingest.InputDir = "data/raw"
	}
	if c.Ingest.Extension == "" {
		c.Ingest.Extension = ".nc"
	}
	if !strings.HasPrefix(c.Ingest.Extension, ".") {
		c.Ingest.Extension = "." + c.Ingest.Extension
	}
	if c.Ingest.Policy == "" {
		c.Ingest.Policy = PolicyAuto
	}
	if c.Ingest.OnConflict == "" {
		c.Ingest.OnConflict = ConflictIgnore
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 1000
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 1
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.MySQL.Host == "" {
			return fmt.Errorf("mysql host is required")
		}
		if c.Database.MySQL.User == "" {
			return fmt.Errorf("mysql user is required")
		}
		if c.Database.MySQL.DBName == "" {
			return fmt.Errorf("mysql database name is required")
		}
	case "postgres":
		if c.Database.URL != "" {
			break
		}
		if c.Database.PostgreSQL.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Database.PostgreSQL.User == "" {
			return fmt.Errorf("postgres user is required")
		}
		if c.Database.PostgreSQL.DBName == "" {
			return fmt.Errorf("postgres database name is required")
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "":
		return fmt.Errorf("database driver is required (set database.driver or DATABASE_URL)")
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Database.SetupMode {
	case SetupNone, SetupCreate, SetupRecreate:
	default:
		return fmt.Errorf("unsupported setup mode: %s", c.Database.SetupMode)
	}

	switch c.Ingest.Policy {
	case PolicyAuto, PolicyRaw, PolicyAdjusted:
	default:
		return fmt.Errorf("unsupported ingest policy: %s", c.Ingest.Policy)
	}

	switch c.Ingest.OnConflict {
	case ConflictIgnore, ConflictUpdate:
	default:
		return fmt.Errorf("unsupported on_conflict policy: %s", c.Ingest.OnConflict)
	}

	return nil
}

// GetDSN returns the database connection string based on the configured driver
func (c *Config) GetDSN() string {
	switch c.Database.Driver {
	case "mysql":
		return c.mysqlDSN(c.Database.MySQL.DBName)
	case "postgres":
		if c.Database.URL != "" {
			return c.Database.URL
		}
		return c.postgresDSN(c.Database.PostgreSQL.DBName)
	case "sqlite":
		path := c.Database.SQLite.Path
		if strings.Contains(path, "_foreign_keys") {
			return path
		}
		if strings.Contains(path, "?") {
			return path + "&_foreign_keys=on"
		}
		return path + "?_foreign_keys=on"
	default:
		return ""
	}
}

// GetAdminDSN returns a connection string for the administrative connection
// used to create the target database. SQLite has none.
func (c *Config) GetAdminDSN() string {
	switch c.Database.Driver {
	case "mysql":
		return c.mysqlDSN("")
	case "postgres":
		if c.Database.URL != "" {
			// the database package swaps the database name on the parsed URL
			return c.Database.URL
		}
		return c.postgresDSN(c.Database.PostgreSQL.AdminDBName)
	default:
		return ""
	}
}

func (c *Config) mysqlDSN(dbName string) string {
	mysql := c.Database.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		mysql.User, mysql.Password, mysql.Host, mysql.Port, dbName,
		mysql.Charset, mysql.ParseTime, mysql.Loc)
}

func (c *Config) postgresDSN(dbName string) string {
	pg := c.Database.PostgreSQL
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		pg.Host, pg.Port, pg.User, pg.Password, dbName, pg.SSLMode, pg.TimeZone)
}
