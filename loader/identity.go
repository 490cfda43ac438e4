package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"argo_data_import/config"
	"argo_data_import/mapper"
	"argo_data_import/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidWMOID is returned when the platform number is not an integer
	ErrInvalidWMOID = errors.New("platform number is not a valid WMO id")
	// ErrIdentityIntegrity is returned when no float row exists after an upsert
	ErrIdentityIntegrity = errors.New("float row not found after upsert")
)

// ParseWMOID canonicalises a platform number to its integer WMO id
func ParseWMOID(platform string) (int64, error) {
	s := strings.TrimSpace(platform)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidWMOID)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWMOID, platform)
	}
	return id, nil
}

// Resolver upserts floats by WMO id and returns their surrogate key
type Resolver struct {
	onConflict string
}

// NewResolver creates a resolver. With config.ConflictUpdate an existing
// float's project and PI names are refreshed; launch date is never
// overwritten. With config.ConflictIgnore existing rows are left as they are.
func NewResolver(onConflict string) *Resolver {
	if onConflict != config.ConflictUpdate {
		onConflict = config.ConflictIgnore
	}
	return &Resolver{onConflict: onConflict}
}

// Resolve inserts the float if its WMO id is new, then reads back its id.
// It must run inside the file's transaction.
func (r *Resolver) Resolve(tx *gorm.DB, wmoID int64, meta mapper.FloatMetadata) (uint, error) {
	float := models.ArgoFloat{
		WMOID:       wmoID,
		LaunchDate:  meta.LaunchDate,
		ProjectName: meta.ProjectName,
		PIName:      meta.PIName,
	}

	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "wmo_id"}},
		DoNothing: true,
	}
	if r.onConflict == config.ConflictUpdate {
		if columns := providedColumns(meta); len(columns) > 0 {
			conflict = clause.OnConflict{
				Columns:   []clause.Column{{Name: "wmo_id"}},
				DoUpdates: clause.AssignmentColumns(columns),
			}
		}
	}

	if err := tx.Clauses(conflict).Create(&float).Error; err != nil {
		return 0, fmt.Errorf("failed to upsert float %d: %w", wmoID, err)
	}

	var stored models.ArgoFloat
	err := tx.Select("id").Where("wmo_id = ?", wmoID).Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: wmo_id %d", ErrIdentityIntegrity, wmoID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up float %d: %w", wmoID, err)
	}
	return stored.ID, nil
}

// providedColumns lists the descriptive columns the file actually carries.
// A missing PI name or the placeholder project never replaces a stored value.
func providedColumns(meta mapper.FloatMetadata) []string {
	var columns []string
	if meta.ProjectName != nil && *meta.ProjectName != mapper.DefaultProjectName {
		columns = append(columns, "project_name")
	}
	if meta.PIName != nil {
		columns = append(columns, "pi_name")
	}
	return columns
}
