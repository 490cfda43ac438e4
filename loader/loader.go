// Package loader writes mapped float files to the database. Each file is
// one unit of work: the float upsert and its measurement append commit or
// roll back together.
package loader

import (
	"context"
	"errors"
	"fmt"

	"argo_data_import/decoder"
	"argo_data_import/logger"
	"argo_data_import/mapper"
	"argo_data_import/models"

	"gorm.io/gorm"
)

// Status is the outcome class of one file
type Status string

// File outcomes
const (
	StatusLoaded     Status = "loaded"
	StatusZeroLoaded Status = "zero-loaded"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

// Outcome describes what happened to one file
type Outcome struct {
	Status  Status
	Policy  mapper.Policy
	WMOID   int64
	FloatID uint
	Rows    int
	Loaded  int
	Dropped int
}

// Options configures a Loader
type Options struct {
	Mode       mapper.Mode
	OnConflict string
	BatchSize  int
}

// Loader maps datasets and writes them in per-file transactions
type Loader struct {
	db        *gorm.DB
	resolver  *Resolver
	mode      mapper.Mode
	batchSize int
}

// New creates a loader
func New(db *gorm.DB, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Mode == "" {
		opts.Mode = mapper.ModeAuto
	}
	return &Loader{
		db:        db,
		resolver:  NewResolver(opts.OnConflict),
		mode:      opts.Mode,
		batchSize: opts.BatchSize,
	}
}

// Clean stamps rows with the float's id, converts time offsets and drops
// rows missing a required field. Time and pressure are always required;
// temperature and salinity are required when the profile says so.
func Clean(profile *mapper.Profile, floatID uint) ([]models.Measurement, int) {
	rows := make([]models.Measurement, 0, len(profile.Rows))
	dropped := 0

	for _, row := range profile.Rows {
		ts := profile.Time.Coerce(row.Time)
		if ts == nil || row.Pressure == nil {
			dropped++
			continue
		}
		if profile.RequiresReadings() && (row.Temperature == nil || row.Salinity == nil) {
			dropped++
			continue
		}
		rows = append(rows, models.Measurement{
			FloatID:     floatID,
			Timestamp:   *ts,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
			Pressure:    *row.Pressure,
			Temperature: row.Temperature,
			Salinity:    row.Salinity,
		})
	}

	return rows, dropped
}

// Append bulk inserts measurements. An empty slice is a no-op.
func (l *Loader) Append(tx *gorm.DB, rows []models.Measurement) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Select(models.MeasurementColumns).CreateInBatches(rows, l.batchSize).Error; err != nil {
		return fmt.Errorf("failed to append %d measurements: %w", len(rows), err)
	}
	return nil
}

// ProcessDataset maps a decoded file and writes it. A file rejected by the
// mapper still has its float upserted; the returned error then wraps the
// mapper's reason and the status is StatusRejected. Any database error
// rolls the whole file back and yields StatusFailed.
func (l *Loader) ProcessDataset(ctx context.Context, ds *decoder.Dataset) (Outcome, error) {
	out := Outcome{Status: StatusFailed}

	meta := mapper.ExtractMetadata(ds)
	wmoID, err := ParseWMOID(meta.PlatformNumber)
	if err != nil {
		out.Status = StatusRejected
		return out, err
	}
	out.WMOID = wmoID

	profile, mapErr := mapper.Map(ds, l.mode)
	if profile != nil {
		out.Policy = profile.Policy
		out.Rows = len(profile.Rows)
	} else {
		out.Policy = mapper.SelectPolicy(ds, l.mode)
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		floatID, err := l.resolver.Resolve(tx, wmoID, meta)
		if err != nil {
			return err
		}
		out.FloatID = floatID

		if mapErr != nil {
			return nil
		}

		rows, dropped := Clean(profile, floatID)
		if err := l.Append(tx, rows); err != nil {
			return err
		}
		out.Loaded = len(rows)
		out.Dropped = dropped
		return nil
	})
	if err != nil {
		out.Loaded, out.Dropped = 0, 0
		return out, err
	}

	switch {
	case mapErr != nil:
		out.Status = StatusRejected
		return out, mapErr
	case out.Loaded == 0:
		out.Status = StatusZeroLoaded
		logger.Warnf("%s: float %d has no valid measurements (%d rows dropped)\n", ds.Path, wmoID, out.Dropped)
	default:
		out.Status = StatusLoaded
	}
	if out.Dropped > 0 {
		logger.Debugf("%s: dropped %d of %d rows\n", ds.Path, out.Dropped, out.Rows)
	}
	return out, nil
}

// IsRejection reports whether err means the file was skipped for a
// content reason rather than a failure
func IsRejection(err error) bool {
	return errors.Is(err, mapper.ErrIncompleteAdjusted) ||
		errors.Is(err, mapper.ErrMissingVariable) ||
		errors.Is(err, ErrInvalidWMOID)
}
