package database

import (
	"fmt"

	"argo_data_import/config"
	"argo_data_import/logger"
	"argo_data_import/models"

	"gorm.io/gorm"
)

// SchemaManager creates the float and measurement tables
type SchemaManager struct {
	db *gorm.DB
}

// NewSchemaManager creates a schema manager for db
func NewSchemaManager(db *gorm.DB) *SchemaManager {
	return &SchemaManager{db: db}
}

// Ensure applies a setup mode. SetupCreate creates missing tables and
// leaves existing ones alone. SetupRecreate drops both tables, discarding
// their data, and creates them again. SetupNone does nothing.
func (sm *SchemaManager) Ensure(mode string) error {
	switch mode {
	case config.SetupNone, "":
		return nil
	case config.SetupCreate:
		return sm.Create()
	case config.SetupRecreate:
		if err := sm.Drop(); err != nil {
			return err
		}
		return sm.Create()
	default:
		return fmt.Errorf("unknown setup mode: %s", mode)
	}
}

// Create creates each table that does not exist yet, parents first
func (sm *SchemaManager) Create() error {
	migrator := sm.db.Migrator()
	for _, model := range models.GetAllModels() {
		if migrator.HasTable(model) {
			continue
		}
		if err := migrator.CreateTable(model); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
		logger.Debugf("created table for %T\n", model)
	}
	return nil
}

// Drop removes the measurement table and then the float table
func (sm *SchemaManager) Drop() error {
	all := models.GetAllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := sm.db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", all[i], err)
		}
	}
	logger.Warnf("dropped existing float and measurement tables\n")
	return nil
}

// Ready reports whether both tables exist
func (sm *SchemaManager) Ready() bool {
	migrator := sm.db.Migrator()
	for _, model := range models.GetAllModels() {
		if !migrator.HasTable(model) {
			return false
		}
	}
	return true
}
