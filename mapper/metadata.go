package mapper

import (
	"regexp"
	"strings"
	"time"

	"argo_data_import/decoder"
)

// DefaultProjectName stands in for a file that names no project
const DefaultProjectName = "N/A"

// FloatMetadata is the float-level information of a file
type FloatMetadata struct {
	PlatformNumber string
	LaunchDate     *time.Time
	ProjectName    *string
	PIName         *string
}

// ExtractMetadata reads the platform identifier and descriptive fields.
// Per-profile text variables win over global attributes of the same name.
// It never fails: identity is validated by the resolver.
func ExtractMetadata(ds *decoder.Dataset) FloatMetadata {
	meta := FloatMetadata{
		PlatformNumber: lookupText(ds, "platform_number"),
	}

	project := lookupText(ds, "project_name")
	if project == "" {
		project = DefaultProjectName
	}
	meta.ProjectName = &project

	if pi := lookupText(ds, "pi_name"); pi != "" {
		meta.PIName = &pi
	}

	if offset, ok := ds.FirstValid(varTime); ok {
		base := TimeBase{Epoch: argoEpoch, Unit: 24 * time.Hour}
		if col, ok := ds.Column(varTime); ok {
			base = ParseTimeBase(col.Units())
		}
		meta.LaunchDate = base.Coerce(&offset)
	}

	return meta
}

func lookupText(ds *decoder.Dataset, name string) string {
	if s, ok := ds.Text(name); ok {
		if clean, ok := CleanText(s); ok {
			return clean
		}
	}
	if v, ok := ds.Attribute(name); ok {
		if clean, ok := CleanText(v); ok {
			return clean
		}
	}
	return ""
}

// CleanText decodes text that may arrive as bytes and trims surrounding
// whitespace and NUL padding. It reports false for empty results.
func CleanText(v interface{}) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case []string:
		for _, item := range t {
			if clean, ok := CleanText(item); ok {
				return clean, true
			}
		}
		return "", false
	case []interface{}:
		for _, item := range t {
			if clean, ok := CleanText(item); ok {
				return clean, true
			}
		}
		return "", false
	default:
		return "", false
	}
	s = strings.Trim(s, " \t\r\n\x00")
	return s, s != ""
}

var argoEpoch = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// TimeBase converts numeric time offsets to timestamps
type TimeBase struct {
	Epoch time.Time
	Unit  time.Duration
}

var unitsPattern = regexp.MustCompile(`(?i)^\s*(days?|hours?|minutes?|seconds?)\s+since\s+(.+?)\s*$`)

var unitDurations = map[string]time.Duration{
	"day":    24 * time.Hour,
	"hour":   time.Hour,
	"minute": time.Minute,
	"second": time.Second,
}

var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimeBase parses CF-style units such as
// "days since 1950-01-01 00:00:00 UTC". Anything unparseable falls back to
// days since 1950-01-01 UTC, the Argo reference date.
func ParseTimeBase(units string) TimeBase {
	base := TimeBase{Epoch: argoEpoch, Unit: 24 * time.Hour}

	m := unitsPattern.FindStringSubmatch(units)
	if m == nil {
		return base
	}

	unit := strings.TrimSuffix(strings.ToLower(m[1]), "s")
	ref := strings.TrimSpace(m[2])
	ref = strings.TrimSuffix(ref, "UTC")
	ref = strings.TrimSuffix(ref, "Z")
	ref = strings.TrimSpace(ref)

	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return TimeBase{Epoch: t, Unit: unitDurations[unit]}
		}
	}
	return base
}

// Coerce converts an offset to a UTC timestamp. Missing, non-finite and
// out-of-range offsets yield nil.
func (b TimeBase) Coerce(offset *float64) *time.Time {
	if offset == nil || b.Unit == 0 {
		return nil
	}
	secs := *offset * b.Unit.Seconds()
	if secs != secs || secs > maxOffsetSeconds || secs < -maxOffsetSeconds {
		return nil
	}

	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * 1e9)
	t := time.Unix(b.Epoch.Unix()+whole, nanos).UTC().Round(time.Microsecond)
	if t.Year() < minYear || t.Year() > maxYear {
		return nil
	}
	return &t
}

// representable range of a nanosecond timestamp
const (
	minYear          = 1678
	maxYear          = 2261
	maxOffsetSeconds = 1e11
)
