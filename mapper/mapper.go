// Package mapper turns a decoded float file into canonical measurement rows.
//
// Two naming policies exist in the wild. Raw files carry the sensor
// channels as pres/temp/psal; quality-controlled files add *_adjusted
// channels holding post-processed values. A policy is chosen once per file.
package mapper

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"argo_data_import/decoder"
)

var (
	// ErrIncompleteAdjusted rejects an adjusted file missing any adjusted channel
	ErrIncompleteAdjusted = errors.New("adjusted policy requires pres_adjusted, temp_adjusted and psal_adjusted")
	// ErrMissingVariable rejects a file without time or pressure
	ErrMissingVariable = errors.New("required variable missing")
	// ErrUnknownMode is returned for an unrecognised policy mode
	ErrUnknownMode = errors.New("unknown policy mode")
)

// Mode is the configured policy selection
type Mode string

// Policy selection modes
const (
	ModeAuto     Mode = "auto"
	ModeRaw      Mode = "raw"
	ModeAdjusted Mode = "adjusted"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeRaw, ModeAdjusted:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Policy is the variable naming convention applied to one file
type Policy int

// Policies
const (
	Raw Policy = iota + 1
	Adjusted
)

func (p Policy) String() string {
	switch p {
	case Raw:
		return "raw"
	case Adjusted:
		return "adjusted"
	default:
		return "unknown"
	}
}

// Source variable names
const (
	varTime      = "juld"
	varLatitude  = "latitude"
	varLongitude = "longitude"
)

type channels struct {
	pressure    string
	temperature string
	salinity    string
}

var policyChannels = map[Policy]channels{
	Raw:      {pressure: "pres", temperature: "temp", salinity: "psal"},
	Adjusted: {pressure: "pres_adjusted", temperature: "temp_adjusted", salinity: "psal_adjusted"},
}

// CanonicalColumns are the measurement fields produced for every file
var CanonicalColumns = []string{"timestamp", "latitude", "longitude", "pressure", "temperature", "salinity"}

// Row is one observation with canonical fields. Time is the raw offset
// from the profile's TimeBase; nil means missing.
type Row struct {
	Time        *float64
	Latitude    *float64
	Longitude   *float64
	Pressure    *float64
	Temperature *float64
	Salinity    *float64
}

// Profile is a mapped file ready for loading
type Profile struct {
	Path   string
	Policy Policy
	Float  FloatMetadata
	Time   TimeBase
	Rows   []Row
}

// RequiresReadings reports whether temperature and salinity are required
// per row as well as time and pressure
func (p *Profile) RequiresReadings() bool {
	return p.Policy == Adjusted
}

// SelectPolicy picks the naming policy for a dataset
func SelectPolicy(ds *decoder.Dataset, mode Mode) Policy {
	switch mode {
	case ModeRaw:
		return Raw
	case ModeAdjusted:
		return Adjusted
	}
	adj := policyChannels[Adjusted]
	for _, name := range []string{adj.pressure, adj.temperature, adj.salinity} {
		if ds.HasColumn(name) {
			return Adjusted
		}
	}
	return Raw
}

// Map selects a policy and maps the dataset's columns to canonical rows.
// Optional raw channels that are absent stay nil. Under the adjusted policy
// every adjusted channel must exist or the file is rejected as a whole.
func Map(ds *decoder.Dataset, mode Mode) (*Profile, error) {
	policy := SelectPolicy(ds, mode)
	ch := policyChannels[policy]

	if !ds.HasColumn(varTime) {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, varTime)
	}

	if policy == Adjusted {
		var missing []string
		for _, name := range []string{ch.pressure, ch.temperature, ch.salinity} {
			if !ds.HasColumn(name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: missing %s", ErrIncompleteAdjusted, strings.Join(missing, ", "))
		}
	} else if !ds.HasColumn(ch.pressure) {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, ch.pressure)
	}

	timeCol, _ := ds.Column(varTime)
	profile := &Profile{
		Path:   ds.Path,
		Policy: policy,
		Float:  ExtractMetadata(ds),
		Time:   ParseTimeBase(timeCol.Units()),
		Rows:   make([]Row, ds.Rows),
	}

	times := numeric(ds, varTime)
	lat := numeric(ds, varLatitude)
	lon := numeric(ds, varLongitude)
	pres := numeric(ds, ch.pressure)
	temp := numeric(ds, ch.temperature)
	psal := numeric(ds, ch.salinity)

	for i := range profile.Rows {
		profile.Rows[i] = Row{
			Time:        at(times, i),
			Latitude:    at(lat, i),
			Longitude:   at(lon, i),
			Pressure:    at(pres, i),
			Temperature: at(temp, i),
			Salinity:    at(psal, i),
		}
	}

	return profile, nil
}

// numeric returns the values of a numeric column, or nil if absent
func numeric(ds *decoder.Dataset, name string) []float64 {
	col, ok := ds.Column(name)
	if !ok || col.IsText() {
		return nil
	}
	return col.Floats
}

func at(values []float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	v := values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
