// Package samples writes small Argo-shaped profile files. They feed the
// scan command during development and the decoder and scanner tests.
package samples

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

const (
	// PressureFill marks a missing level value
	PressureFill float32 = 99999
	// JULDFill marks a missing profile time
	JULDFill float64 = 999999

	JULDUnits = "days since 1950-01-01 00:00:00 UTC"
)

// Profile is one float profile to be written as a file
type Profile struct {
	FileName  string
	Platform  string
	Project   string
	PIName    string
	JULD      float64
	Latitude  float64
	Longitude float64
	// Channels are per-level variables such as PRES or PSAL_ADJUSTED.
	// Use PressureFill for missing levels.
	Channels map[string][]float32
}

// Levels returns the number of depth levels of the profile
func (p Profile) Levels() int {
	n := 0
	for _, values := range p.Channels {
		if len(values) > n {
			n = len(values)
		}
	}
	return n
}

// Format names the on-disk layout of a sample file
type Format string

const (
	FormatCDF  Format = "cdf"
	FormatHDF5 Format = "hdf5"
)

// ParseFormat accepts cdf (classic) or hdf5 (NetCDF-4)
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCDF, "classic", "":
		return FormatCDF, nil
	case FormatHDF5, "netcdf4", "nc4":
		return FormatHDF5, nil
	default:
		return "", fmt.Errorf("unknown sample format %q (expected cdf or hdf5)", s)
	}
}

func (f Format) kind() netcdf.FileKind {
	if f == FormatHDF5 {
		return netcdf.KindHDF5
	}
	return netcdf.KindCDF
}

// RawProfile is float 13858 with ten levels, two of them missing pressure
func RawProfile() Profile {
	return Profile{
		FileName:  "R13858_001.nc",
		Platform:  "13858",
		Project:   "ARGO-FR",
		PIName:    "Jane Doe",
		JULD:      20000.5,
		Latitude:  43.2,
		Longitude: 7.9,
		Channels: map[string][]float32{
			"PRES": {5, 10, PressureFill, 20, 30, 40, PressureFill, 60, 70, 80},
			"TEMP": {20.1, 19.8, 19.5, 18.2, 17.0, 15.5, 14.1, 13.0, 12.2, 11.9},
			"PSAL": {38.1, 38.1, 38.2, 38.3, 38.4, 38.5, 38.5, 38.6, 38.6, 38.7},
		},
	}
}

// AdjustedProfile carries a full set of adjusted channels. One level has
// no adjusted temperature.
func AdjustedProfile() Profile {
	return Profile{
		FileName:  "D5904321_010.nc",
		Platform:  "5904321",
		Project:   "SOCCOM",
		PIName:    "Stephen Riser",
		JULD:      24000.25,
		Latitude:  -55.4,
		Longitude: 140.1,
		Channels: map[string][]float32{
			"PRES":          {4.8, 10.1, 50.3, 100.2, 200.4},
			"TEMP":          {3.1, 3.0, 2.7, 2.2, 1.9},
			"PSAL":          {34.1, 34.1, 34.2, 34.3, 34.5},
			"PRES_ADJUSTED": {4.9, 10.2, 50.4, 100.3, 200.5},
			"TEMP_ADJUSTED": {3.1, PressureFill, 2.7, 2.2, 1.9},
			"PSAL_ADJUSTED": {34.12, 34.13, 34.21, 34.33, 34.52},
		},
	}
}

// IncompleteAdjustedProfile has adjusted pressure and temperature but no
// adjusted salinity, so it cannot be loaded under the adjusted policy
func IncompleteAdjustedProfile() Profile {
	return Profile{
		FileName:  "D5904322_003.nc",
		Platform:  "5904322",
		Project:   "SOCCOM",
		JULD:      24010,
		Latitude:  -56.0,
		Longitude: 141.3,
		Channels: map[string][]float32{
			"PRES":          {5, 25, 75},
			"TEMP":          {3.3, 3.0, 2.6},
			"PSAL":          {34.0, 34.1, 34.2},
			"PRES_ADJUSTED": {5.1, 25.1, 75.1},
			"TEMP_ADJUSTED": {3.3, 3.0, 2.6},
		},
	}
}

// FillPressureProfile has no usable pressure at any level
func FillPressureProfile() Profile {
	return Profile{
		FileName:  "R6901234_002.nc",
		Platform:  "6901234",
		JULD:      23500,
		Latitude:  12.5,
		Longitude: -30.2,
		Channels: map[string][]float32{
			"PRES": {PressureFill, PressureFill, PressureFill},
			"TEMP": {25.1, 24.0, 22.8},
		},
	}
}

// All returns one profile of each kind the importer distinguishes
func All() []Profile {
	return []Profile{
		RawProfile(),
		AdjustedProfile(),
		IncompleteAdjustedProfile(),
		FillPressureProfile(),
	}
}

// WriteDir writes profiles into dir, creating it when needed, and returns
// the written paths
func WriteDir(dir string, format Format, profiles ...Profile) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	paths := make([]string, 0, len(profiles))
	for _, p := range profiles {
		path := filepath.Join(dir, p.FileName)
		if err := Write(path, format, p); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Write writes a single profile file. Text variables are given only their
// profile dimension; the writer adds the string length dimension.
func Write(path string, format Format, p Profile) (err error) {
	w, err := netcdf.OpenWriter(path, format.kind())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", path, cerr)
		}
	}()

	globals, err := util.NewOrderedMap(
		[]string{"title", "Conventions", "institution"},
		map[string]any{
			"title":       "Argo float vertical profile",
			"Conventions": "Argo-3.1 CF-1.6",
			"institution": "argo_data_import samples",
		})
	if err != nil {
		return err
	}
	if err := w.AddAttributes(globals); err != nil {
		return fmt.Errorf("failed to add global attributes: %w", err)
	}

	profileDims := []string{"N_PROF"}
	levelDims := []string{"N_PROF", "N_LEVELS"}

	texts := []struct{ name, value string }{
		{"PLATFORM_NUMBER", p.Platform},
		{"PROJECT_NAME", p.Project},
		{"PI_NAME", p.PIName},
	}
	for _, t := range texts {
		if t.value == "" {
			continue
		}
		if err := addVar(w, t.name, []string{t.value}, profileDims, nil, nil); err != nil {
			return err
		}
	}

	if err := addVar(w, "JULD", []float64{p.JULD}, profileDims,
		[]string{"long_name", "units", "missing_value"},
		map[string]any{"long_name": "Julian day (UTC) of the station", "units": JULDUnits, "missing_value": JULDFill}); err != nil {
		return err
	}
	if err := addVar(w, "LATITUDE", []float64{p.Latitude}, profileDims,
		[]string{"units"}, map[string]any{"units": "degree_north"}); err != nil {
		return err
	}
	if err := addVar(w, "LONGITUDE", []float64{p.Longitude}, profileDims,
		[]string{"units"}, map[string]any{"units": "degree_east"}); err != nil {
		return err
	}

	names := make([]string, 0, len(p.Channels))
	for name := range p.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := p.Channels[name]
		if err := addVar(w, name, [][]float32{values}, levelDims,
			[]string{"missing_value"}, map[string]any{"missing_value": PressureFill}); err != nil {
			return err
		}
		if name == "PRES" {
			if err := addVar(w, "PRES_QC", []string{qcFlags(values)}, profileDims, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func addVar(w api.Writer, name string, values any, dims []string, keys []string, attrs map[string]any) error {
	am, err := util.NewOrderedMap(keys, attrs)
	if err != nil {
		return fmt.Errorf("attributes of %s: %w", name, err)
	}
	if err := w.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: am}); err != nil {
		return fmt.Errorf("failed to add variable %s: %w", name, err)
	}
	return nil
}

// qcFlags marks good levels 1 and missing levels 9
func qcFlags(values []float32) string {
	var b strings.Builder
	for _, v := range values {
		if v == PressureFill {
			b.WriteByte('9')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}
