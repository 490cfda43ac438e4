package database

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"argo_data_import/config"
	"argo_data_import/logger"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Migration is a row of the migration tracking table
type Migration struct {
	ID          uint   `gorm:"primaryKey"`
	Version     string `gorm:"unique;not null"`
	Name        string `gorm:"not null"`
	Applied     bool   `gorm:"default:false"`
	AppliedAt   *time.Time
	Description string
}

// MigrationFile is a SQL file under the migration directory
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	FilePath    string
	Applied     bool
}

// MigrationRunner applies SQL migrations on top of the base schema
type MigrationRunner struct {
	db             *gorm.DB
	migrationTable string
	migrationDir   string
	clock          clockwork.Clock
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *gorm.DB, cfg *config.Config) *MigrationRunner {
	return NewMigrationRunnerWithClock(db, cfg, clockwork.NewRealClock())
}

// NewMigrationRunnerWithClock creates a runner that stamps versions with clock
func NewMigrationRunnerWithClock(db *gorm.DB, cfg *config.Config, clock clockwork.Clock) *MigrationRunner {
	return &MigrationRunner{
		db:             db,
		migrationTable: cfg.Migration.MigrationTable,
		migrationDir:   cfg.Migration.Directory,
		clock:          clock,
	}
}

func (mr *MigrationRunner) table(db *gorm.DB) *gorm.DB {
	return db.Table(mr.migrationTable)
}

// InitializeMigrationTable creates the tracking table if it doesn't exist
func (mr *MigrationRunner) InitializeMigrationTable() error {
	return mr.table(mr.db).AutoMigrate(&Migration{})
}

// GetMigrationFiles returns all migration files sorted by version
func (mr *MigrationRunner) GetMigrationFiles() ([]MigrationFile, error) {
	var migrationFiles []MigrationFile

	if _, err := os.Stat(mr.migrationDir); os.IsNotExist(err) {
		return migrationFiles, nil
	}

	err := filepath.WalkDir(mr.migrationDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		// YYYYMMDD_HHMMSS_description.sql
		filename := d.Name()
		parts := strings.SplitN(filename, "_", 3)
		if len(parts) < 3 {
			return fmt.Errorf("invalid migration filename format: %s (expected: YYYYMMDD_HHMMSS_description.sql)", filename)
		}

		description := strings.TrimSuffix(parts[2], ".sql")
		migrationFiles = append(migrationFiles, MigrationFile{
			Version:     parts[0] + "_" + parts[1],
			Name:        strings.ReplaceAll(description, "_", " "),
			Description: description,
			FilePath:    path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	sort.Slice(migrationFiles, func(i, j int) bool {
		return migrationFiles[i].Version < migrationFiles[j].Version
	})

	return migrationFiles, nil
}

// GetAppliedMigrations returns all applied migrations from the database
func (mr *MigrationRunner) GetAppliedMigrations() ([]Migration, error) {
	var migrations []Migration

	if err := mr.InitializeMigrationTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize migration table: %w", err)
	}

	result := mr.table(mr.db).Where("applied = ?", true).Order("version ASC").Find(&migrations)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", result.Error)
	}

	return migrations, nil
}

func (mr *MigrationRunner) appliedVersions() (map[string]bool, error) {
	applied, err := mr.GetAppliedMigrations()
	if err != nil {
		return nil, err
	}
	versions := make(map[string]bool, len(applied))
	for _, m := range applied {
		versions[m.Version] = true
	}
	return versions, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (mr *MigrationRunner) GetPendingMigrations() ([]MigrationFile, error) {
	all, err := mr.GetMigrationFiles()
	if err != nil {
		return nil, err
	}
	applied, err := mr.appliedVersions()
	if err != nil {
		return nil, err
	}

	var pending []MigrationFile
	for _, m := range all {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// RunMigrations executes all pending migrations in version order
func (mr *MigrationRunner) RunMigrations() error {
	pending, err := mr.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		logger.Println("No pending migrations to run")
		return nil
	}

	logger.Printf("Running %d pending migration(s)...\n", len(pending))

	for _, m := range pending {
		if err := mr.runSingleMigration(m); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.Version, err)
		}
	}

	logger.Println("All migrations completed successfully")
	return nil
}

func (mr *MigrationRunner) runSingleMigration(file MigrationFile) error {
	logger.Printf("Running migration: %s - %s\n", file.Version, file.Name)

	content, err := os.ReadFile(file.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	return mr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(content)).Error; err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}

		now := mr.clock.Now()
		record := Migration{
			Version:     file.Version,
			Name:        file.Name,
			Applied:     true,
			AppliedAt:   &now,
			Description: file.Description,
		}
		if err := mr.table(tx).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// GetMigrationStatus returns every migration file with its applied flag set
func (mr *MigrationRunner) GetMigrationStatus() ([]MigrationFile, error) {
	all, err := mr.GetMigrationFiles()
	if err != nil {
		return nil, err
	}
	applied, err := mr.appliedVersions()
	if err != nil {
		return nil, err
	}

	for i := range all {
		all[i].Applied = applied[all[i].Version]
	}
	return all, nil
}

// CreateMigration writes an empty, timestamped migration file
func (mr *MigrationRunner) CreateMigration(name string) (string, error) {
	if err := os.MkdirAll(mr.migrationDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := mr.clock.Now()
	version := now.Format("20060102_150405")

	cleanName := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	filePath := filepath.Join(mr.migrationDir, fmt.Sprintf("%s_%s.sql", version, cleanName))

	template := fmt.Sprintf(`-- Migration: %s
-- Created: %s
-- Description: %s

-- Add your migration SQL here
-- Example:
-- CREATE INDEX idx_measurements_pressure ON measurements (pressure);
`, name, now.Format("2006-01-02 15:04:05"), name)

	if err := os.WriteFile(filePath, []byte(template), 0644); err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}

	return filePath, nil
}
