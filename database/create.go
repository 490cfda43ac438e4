package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"argo_data_import/config"
	"argo_data_import/logger"

	"github.com/jackc/pgx/v5"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// EnsureDatabase creates the target database when it does not exist, using
// a control connection to the administrative database. It reports whether
// the database was created. Failing to open the control connection is fatal
// for the caller; there is no retry.
func EnsureDatabase(ctx context.Context, cfg *config.Config) (bool, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return ensurePostgresDatabase(ctx, cfg)
	case "mysql":
		return ensureMySQLDatabase(cfg)
	case "sqlite":
		return ensureSQLiteFile(cfg)
	default:
		return false, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// postgresAdminConfig returns the control connection settings and the
// name of the database to create
func postgresAdminConfig(cfg *config.Config) (*pgx.ConnConfig, string, error) {
	admin := cfg.Database.PostgreSQL.AdminDBName

	if cfg.Database.URL != "" {
		connCfg, err := pgx.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		target := connCfg.Database
		connCfg.Database = admin
		return connCfg, target, nil
	}

	connCfg, err := pgx.ParseConfig(cfg.GetAdminDSN())
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse postgres settings: %w", err)
	}
	return connCfg, cfg.Database.PostgreSQL.DBName, nil
}

func ensurePostgresDatabase(ctx context.Context, cfg *config.Config) (bool, error) {
	connCfg, target, err := postgresAdminConfig(cfg)
	if err != nil {
		return false, err
	}
	if target == "" {
		return false, fmt.Errorf("no target database name in configuration")
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return false, fmt.Errorf("failed to connect to administrative database %q: %w", connCfg.Database, err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", target).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for database %q: %w", target, err)
	}
	if exists {
		logger.Printf("Database '%s' already exists\n", target)
		return false, nil
	}

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{target}.Sanitize()); err != nil {
		return false, fmt.Errorf("failed to create database %q: %w", target, err)
	}
	logger.Printf("✓ Database '%s' created\n", target)
	return true, nil
}

func ensureMySQLDatabase(cfg *config.Config) (bool, error) {
	db, err := gorm.Open(mysql.Open(cfg.GetAdminDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logger.GormLevel()),
	})
	if err != nil {
		return false, fmt.Errorf("failed to connect to mysql server: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	defer sqlDB.Close()

	name := cfg.Database.MySQL.DBName
	quoted := "`" + strings.ReplaceAll(name, "`", "``") + "`"
	result := db.Exec("CREATE DATABASE IF NOT EXISTS " + quoted)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create database %q: %w", name, result.Error)
	}
	created := result.RowsAffected > 0
	if created {
		logger.Printf("✓ Database '%s' created\n", name)
	} else {
		logger.Printf("Database '%s' already exists\n", name)
	}
	return created, nil
}

// ensureSQLiteFile makes sure the database file's directory exists; the
// driver creates the file on first open
func ensureSQLiteFile(cfg *config.Config) (bool, error) {
	path := cfg.Database.SQLite.Path
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.Contains(path, ":memory:") {
		return false, nil
	}

	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return true, nil
}
