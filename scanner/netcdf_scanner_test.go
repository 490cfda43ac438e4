package scanner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"argo_data_import/config"
	"argo_data_import/database"
	"argo_data_import/decoder"
	"argo_data_import/loader"
	"argo_data_import/logger"
	"argo_data_import/mapper"
	"argo_data_import/metrics"
	"argo_data_import/models"
	"argo_data_import/samples"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeDecoder serves prepared datasets by file name and falls back to the
// real reader for anything else
type fakeDecoder struct {
	datasets map[string]*decoder.Dataset
	fallback Decoder
}

func (f fakeDecoder) Decode(path string) (*decoder.Dataset, error) {
	if ds, ok := f.datasets[filepath.Base(path)]; ok {
		return ds, nil
	}
	return f.fallback.Decode(path)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg, err := config.Parse([]byte("database:\n  driver: sqlite\n  sqlite:\n    path: " + filepath.Join(t.TempDir(), "argo.db") + "\n"))
	require.NoError(t, err)

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, database.NewSchemaManager(db).Ensure(config.SetupCreate))
	return db
}

func profile(t *testing.T, platform string, pres ...float64) *decoder.Dataset {
	t.Helper()
	ds, err := decoder.Build(platform+".nc", []decoder.Variable{
		{Name: "PLATFORM_NUMBER", Dimensions: []string{"N_PROF", "STRING8"}, Values: []string{platform}},
		{Name: "JULD", Dimensions: []string{"N_PROF"}, Values: []float64{20000},
			Attributes: map[string]interface{}{"units": "days since 1950-01-01 00:00:00 UTC"}},
		{Name: "PRES", Dimensions: []string{"N_PROF", "N_LEVELS"}, Values: [][]float64{pres},
			Attributes: map[string]interface{}{"_FillValue": 99999.0}},
	}, nil)
	require.NoError(t, err)
	return ds
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func quietLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf, &buf, logger.INFO)
	t.Cleanup(func() { logger.SetOutput(os.Stdout, os.Stderr, logger.INFO) })
	return &buf
}

func TestScanDirectory_ContinuesPastBadFiles(t *testing.T) {
	logs := quietLogs(t)
	db := openDB(t)

	dir := t.TempDir()
	writeFile(t, dir, "R13858_001.nc", "profile one")
	writeFile(t, dir, "R13859_001.nc", "profile two")
	writeFile(t, dir, "corrupt.nc", "not a netcdf file")
	writeFile(t, dir, "bad_platform.nc", "platform")
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.nc"), 0755))

	dec := fakeDecoder{
		datasets: map[string]*decoder.Dataset{
			"R13858_001.nc":   profile(t, "13858", 5, 99999, 15),
			"R13859_001.nc":   profile(t, "13859", 1, 2),
			"bad_platform.nc": profile(t, "XX12", 1),
		},
		fallback: decoder.NetCDF{},
	}

	m := metrics.New()
	s := NewNetCDFScanner(loader.New(db, loader.Options{}), dec)
	s.SetWorkerCount(2)
	s.SetMetrics(m)

	summary, err := s.ScanDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.ByStatus[loader.StatusLoaded])
	assert.Equal(t, 1, summary.ByStatus[loader.StatusRejected])
	assert.Equal(t, 1, summary.ByStatus[loader.StatusFailed])
	assert.Equal(t, 4, summary.TotalRecords)
	assert.Equal(t, 1, summary.TotalDropped)

	byName := make(map[string]ProcessResult)
	for _, r := range summary.Results {
		byName[filepath.Base(r.FilePath)] = r
	}
	corrupt := byName["corrupt.nc"]
	var decodeErr *decoder.DecodeError
	assert.ErrorAs(t, corrupt.Error, &decodeErr)
	assert.NotZero(t, corrupt.Fingerprint)
	assert.Equal(t, int64(13858), byName["R13858_001.nc"].WMOID)
	assert.Equal(t, "raw", byName["R13858_001.nc"].Policy)

	var floats, rows int64
	require.NoError(t, db.Model(&models.ArgoFloat{}).Count(&floats).Error)
	require.NoError(t, db.Model(&models.Measurement{}).Count(&rows).Error)
	assert.Equal(t, int64(2), floats)
	assert.Equal(t, int64(4), rows)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MeasurementsLoaded))

	assert.Contains(t, logs.String(), "PROCESSING SUMMARY")
	assert.Contains(t, logs.String(), "UNREADABLE")
}

func TestScanDirectory_ReportsDuplicateContents(t *testing.T) {
	quietLogs(t)
	db := openDB(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.nc", "same bytes")
	writeFile(t, dir, "b.nc", "same bytes")

	dec := fakeDecoder{datasets: map[string]*decoder.Dataset{
		"a.nc": profile(t, "13858", 1),
		"b.nc": profile(t, "13858", 1),
	}}

	summary, err := NewNetCDFScanner(loader.New(db, loader.Options{}), dec).ScanDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, summary.Duplicates, 1)
	for _, paths := range summary.Duplicates {
		assert.Len(t, paths, 2)
	}
}

func TestScanDirectory_EmptyAndMissing(t *testing.T) {
	quietLogs(t)
	db := openDB(t)
	s := NewNetCDFScanner(loader.New(db, loader.Options{}), decoder.NetCDF{})

	summary, err := s.ScanDirectory(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)

	_, err = s.ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestScanDirectory_CancelledContext(t *testing.T) {
	quietLogs(t)
	db := openDB(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.nc", "a")
	dec := fakeDecoder{datasets: map[string]*decoder.Dataset{"a.nc": profile(t, "13858", 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := NewNetCDFScanner(loader.New(db, loader.Options{}), dec).ScanDirectory(ctx, dir)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, loader.StatusFailed, summary.Results[0].Status)
	assert.ErrorIs(t, summary.Results[0].Error, context.Canceled)
}

func TestSetExtension(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.NC4", "x")
	writeFile(t, dir, "b.nc", "x")

	s := NewNetCDFScanner(nil, nil)
	s.SetExtension("nc4")
	files, err := s.findFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.NC4", files[0].FileName)
}

func TestProcessFile_UsesClock(t *testing.T) {
	quietLogs(t)
	db := openDB(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.nc", "a")

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewNetCDFScanner(loader.New(db, loader.Options{}), fakeDecoder{
		datasets: map[string]*decoder.Dataset{"a.nc": profile(t, "13858", 1)},
	})
	s.SetClock(clock)

	result := s.ProcessFile(context.Background(), FileJob{FilePath: filepath.Join(dir, "a.nc"), FileName: "a.nc"})
	require.NoError(t, result.Error)
	assert.Equal(t, loader.StatusLoaded, result.Status)
	assert.Zero(t, result.Duration, "fake clock does not advance")
}

func TestScanDirectory_WrittenSamples(t *testing.T) {
	for _, format := range []samples.Format{samples.FormatCDF, samples.FormatHDF5} {
		t.Run(string(format), func(t *testing.T) {
			quietLogs(t)
			db := openDB(t)

			dir := t.TempDir()
			_, err := samples.WriteDir(dir, format, samples.All()...)
			require.NoError(t, err)

			s := NewNetCDFScanner(loader.New(db, loader.Options{}), decoder.NetCDF{})
			s.SetWorkerCount(2)
			summary, err := s.ScanDirectory(context.Background(), dir)
			require.NoError(t, err)
			require.Len(t, summary.Results, 4)

			byName := make(map[string]ProcessResult)
			for _, r := range summary.Results {
				byName[filepath.Base(r.FilePath)] = r
			}

			raw := byName[samples.RawProfile().FileName]
			require.NoError(t, raw.Error)
			assert.Equal(t, loader.StatusLoaded, raw.Status)
			assert.Equal(t, "raw", raw.Policy)
			assert.Equal(t, int64(13858), raw.WMOID)
			assert.Equal(t, 8, raw.RecordCount, "two of ten levels have no pressure")
			assert.Equal(t, 2, raw.ErrorCount)

			adjusted := byName[samples.AdjustedProfile().FileName]
			require.NoError(t, adjusted.Error)
			assert.Equal(t, loader.StatusLoaded, adjusted.Status)
			assert.Equal(t, "adjusted", adjusted.Policy)
			assert.Equal(t, 4, adjusted.RecordCount)
			assert.Equal(t, 1, adjusted.ErrorCount)

			incomplete := byName[samples.IncompleteAdjustedProfile().FileName]
			assert.Equal(t, loader.StatusRejected, incomplete.Status)
			assert.ErrorIs(t, incomplete.Error, mapper.ErrIncompleteAdjusted)
			assert.NotZero(t, incomplete.FloatID, "float is upserted even though the file is rejected")

			fill := byName[samples.FillPressureProfile().FileName]
			require.NoError(t, fill.Error)
			assert.Equal(t, loader.StatusZeroLoaded, fill.Status)
			assert.Equal(t, 3, fill.ErrorCount)

			var float models.ArgoFloat
			require.NoError(t, db.Where("wmo_id = ?", 13858).Take(&float).Error)
			require.NotNil(t, float.LaunchDate)
			assert.True(t, float.LaunchDate.Equal(time.Date(2004, 10, 4, 12, 0, 0, 0, time.UTC)), float.LaunchDate.String())
			require.NotNil(t, float.ProjectName)
			assert.Equal(t, "ARGO-FR", *float.ProjectName)

			var stored int64
			require.NoError(t, db.Model(&models.Measurement{}).Where("float_id = ?", float.ID).Count(&stored).Error)
			assert.Equal(t, int64(8), stored)

			var floats, rows int64
			require.NoError(t, db.Model(&models.ArgoFloat{}).Count(&floats).Error)
			require.NoError(t, db.Model(&models.Measurement{}).Count(&rows).Error)
			assert.Equal(t, int64(4), floats)
			assert.Equal(t, int64(12), rows)
		})
	}
}
