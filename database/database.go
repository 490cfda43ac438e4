package database

import (
	"errors"
	"fmt"
	"time"

	"argo_data_import/config"
	"argo_data_import/logger"
	"argo_data_import/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Open opens a database from configuration without touching the global
// instance
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	dsn := cfg.GetDSN()
	switch cfg.Database.Driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logger.GormLevel()),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	pool := cfg.Database.ConnectionPool
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	} else if cfg.Database.Driver == "sqlite" {
		// one writer at a time
		sqlDB.SetMaxOpenConns(1)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Connect opens the configured database and stores it as the global instance
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	DB = db
	return db, nil
}

// Close closes the global database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	DB = nil
	return sqlDB.Close()
}

// GetDB returns the global database instance
func GetDB() *gorm.DB {
	return DB
}

// IsConnected checks if database is connected
func IsConnected() bool {
	if DB == nil {
		return false
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return false
	}

	return sqlDB.Ping() == nil
}

// GetDatabaseInfo returns information about the connected database
func GetDatabaseInfo(cfg *config.Config) map[string]interface{} {
	info := make(map[string]interface{})
	info["driver"] = cfg.Database.Driver
	info["connected"] = IsConnected()

	if DB != nil {
		sqlDB, err := DB.DB()
		if err == nil {
			stats := sqlDB.Stats()
			info["max_open_connections"] = stats.MaxOpenConnections
			info["open_connections"] = stats.OpenConnections
			info["in_use"] = stats.InUse
			info["idle"] = stats.Idle
		}
	}

	switch cfg.Database.Driver {
	case "mysql":
		info["host"] = cfg.Database.MySQL.Host
		info["port"] = cfg.Database.MySQL.Port
		info["database"] = cfg.Database.MySQL.DBName
	case "postgres":
		if cfg.Database.URL != "" {
			info["url"] = "DATABASE_URL"
		}
		info["host"] = cfg.Database.PostgreSQL.Host
		info["port"] = cfg.Database.PostgreSQL.Port
		info["database"] = cfg.Database.PostgreSQL.DBName
	case "sqlite":
		info["path"] = cfg.Database.SQLite.Path
	}

	return info
}

// DataStats summarises the float and measurement tables
type DataStats struct {
	Floats       int64
	Measurements int64
	Earliest     *time.Time
	Latest       *time.Time
}

// GetDataStats counts floats and measurements and finds the observation
// time range
func GetDataStats(db *gorm.DB) (DataStats, error) {
	var stats DataStats

	if err := db.Model(&models.ArgoFloat{}).Count(&stats.Floats).Error; err != nil {
		return stats, fmt.Errorf("failed to count floats: %w", err)
	}
	if err := db.Model(&models.Measurement{}).Count(&stats.Measurements).Error; err != nil {
		return stats, fmt.Errorf("failed to count measurements: %w", err)
	}
	if stats.Measurements == 0 {
		return stats, nil
	}

	var first, last models.Measurement
	if err := db.Select("id", "timestamp").Order("timestamp ASC").Take(&first).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, fmt.Errorf("failed to read earliest measurement: %w", err)
	}
	if err := db.Select("id", "timestamp").Order("timestamp DESC").Take(&last).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, fmt.Errorf("failed to read latest measurement: %w", err)
	}
	stats.Earliest = &first.Timestamp
	stats.Latest = &last.Timestamp

	return stats, nil
}
