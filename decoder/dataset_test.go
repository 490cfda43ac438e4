package decoder

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argoVariables() []Variable {
	return []Variable{
		{Name: "PLATFORM_NUMBER", Dimensions: []string{"N_PROF", "STRING8"}, Values: []string{"13858   ", "13858   "}},
		{Name: "PROJECT_NAME", Dimensions: []string{"N_PROF", "STRING64"}, Values: []string{"ARGO-FR  ", "ARGO-FR  "}},
		{Name: "JULD", Dimensions: []string{"N_PROF"}, Values: []float64{18628.5, 999999},
			Attributes: map[string]interface{}{"units": "days since 1950-01-01 00:00:00 UTC", "_FillValue": 999999.0}},
		{Name: "LATITUDE", Dimensions: []string{"N_PROF"}, Values: []float64{-12.5, -12.7}},
		{Name: "PRES", Dimensions: []string{"N_PROF", "N_LEVELS"},
			Values:     [][]float32{{5, 10, 99999}, {5.5, 11, 20}},
			Attributes: map[string]interface{}{"_FillValue": float32(99999)}},
		{Name: "PRES_QC", Dimensions: []string{"N_PROF", "N_LEVELS"}, Values: []string{"11 ", "114"}},
		{Name: "HISTORY_START_PRES", Dimensions: []string{"N_HISTORY", "N_PROF"}, Values: [][]float32{{1, 2}}},
		{Name: "DATA_TYPE", Dimensions: []string{"STRING16"}, Values: "Argo profile    "},
	}
}

func TestBuild_ExpandsProfilesAndLevels(t *testing.T) {
	ds, err := Build("R13858_001.nc", argoVariables(), map[string]interface{}{"Project_Name": "ARGO"})
	require.NoError(t, err)

	assert.Equal(t, 6, ds.Rows)
	assert.Equal(t, []string{"n_prof", "n_levels"}, ds.Dimensions)

	pres, ok := ds.Column("pres")
	require.True(t, ok)
	assert.Equal(t, []float64{5, 10}, pres.Floats[:2])
	assert.True(t, math.IsNaN(pres.Floats[2]), "fill value becomes NaN")
	assert.Equal(t, []float64{5.5, 11, 20}, pres.Floats[3:])

	juld, ok := ds.Column("JULD")
	require.True(t, ok, "lookups are case-insensitive")
	assert.Equal(t, 18628.5, juld.Floats[0])
	assert.Equal(t, 18628.5, juld.Floats[2])
	assert.True(t, math.IsNaN(juld.Floats[3]))
	assert.Equal(t, "days since 1950-01-01 00:00:00 UTC", juld.Units())

	platform, ok := ds.Column("platform_number")
	require.True(t, ok)
	assert.True(t, platform.IsText())
	assert.Len(t, platform.Texts, 6)
	assert.Equal(t, "13858   ", platform.Texts[5])

	// scalar text broadcast to all rows
	dataType, ok := ds.Column("data_type")
	require.True(t, ok)
	assert.Equal(t, "Argo profile    ", dataType.Texts[4])

	qc, ok := ds.Column("pres_qc")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "1", " ", "1", "1", "4"}, qc.Texts)

	assert.Equal(t, []string{"history_start_pres"}, ds.Skipped)
	assert.Contains(t, ds.ColumnNames(), "latitude")
}

func TestBuild_MetadataLookups(t *testing.T) {
	ds, err := Build("R13858_001.nc", argoVariables(), map[string]interface{}{"PI_NAME": []byte(" Jane Doe ")})
	require.NoError(t, err)

	text, ok := ds.Text("project_name")
	require.True(t, ok)
	assert.Equal(t, "ARGO-FR  ", text)

	_, ok = ds.Text("pres")
	assert.False(t, ok, "numeric variables have no text value")

	juld, ok := ds.FirstValid("juld")
	require.True(t, ok)
	assert.Equal(t, 18628.5, juld)

	attr, ok := ds.Attribute("pi_name")
	require.True(t, ok)
	assert.Equal(t, []byte(" Jane Doe "), attr)
}

func TestBuild_ZeroLevelsKeepsMetadata(t *testing.T) {
	vars := []Variable{
		{Name: "PLATFORM_NUMBER", Dimensions: []string{"N_PROF", "STRING8"}, Values: []string{"6901234 "}},
		{Name: "JULD", Dimensions: []string{"N_PROF"}, Values: []float64{20000}},
		{Name: "PRES", Dimensions: []string{"N_PROF", "N_LEVELS"}, Values: [][]float32{{}}},
	}

	ds, err := Build("empty.nc", vars, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Rows)

	wmo, ok := ds.Text("platform_number")
	require.True(t, ok)
	assert.Equal(t, "6901234 ", wmo)

	juld, ok := ds.FirstValid("juld")
	require.True(t, ok)
	assert.Equal(t, 20000.0, juld)
}

func TestBuild_NoNumericVariables(t *testing.T) {
	vars := []Variable{
		{Name: "PLATFORM_NUMBER", Dimensions: []string{"N_PROF", "STRING8"}, Values: []string{"13858"}},
	}

	ds, err := Build("meta.nc", vars, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Rows)
	assert.Empty(t, ds.ColumnNames())

	wmo, ok := ds.Text("platform_number")
	require.True(t, ok)
	assert.Equal(t, "13858", wmo)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("ragged", func(t *testing.T) {
		_, err := Build("bad.nc", []Variable{
			{Name: "PRES", Dimensions: []string{"a", "b"}, Values: [][]float64{{1, 2}, {3}}},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ragged")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Build("bad.nc", []Variable{
			{Name: "PRES", Dimensions: []string{"a", "b", "c"}, Values: [][]float64{{1, 2}}},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "do not match shape")
	})

	t.Run("unsupported values are skipped", func(t *testing.T) {
		ds, err := Build("odd.nc", []Variable{
			{Name: "FLAGS", Dimensions: []string{"n"}, Values: []bool{true}},
			{Name: "EMPTY", Values: nil},
			{Name: "PRES", Dimensions: []string{"n"}, Values: []int32{1}},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"empty", "flags"}, ds.Skipped)
		assert.Equal(t, 1, ds.Rows)
	})
}

func TestNetCDFDecode_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.nc")
	require.NoError(t, os.WriteFile(path, []byte("this is not a netcdf file"), 0644))

	_, err := NetCDF{}.Decode(path)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, path, decodeErr.Path)
	assert.Contains(t, err.Error(), "decode "+path)
}

func TestNetCDFDecode_MissingFile(t *testing.T) {
	_, err := NetCDF{}.Decode(filepath.Join(t.TempDir(), "missing.nc"))

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
}
