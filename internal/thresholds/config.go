package thresholds

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ThresholdSpec is the YAML shape for a threshold override.
type ThresholdSpec struct {
	MaxTempF          *float64 `yaml:"max_temp_f"`
	MinTempF          *float64 `yaml:"min_temp_f"`
	WarningBufferDeg  float64  `yaml:"warning_buffer_deg"`
	MaxHumidityPct    *float64 `yaml:"max_humidity_pct"`
	CriticalMarginDeg float64  `yaml:"critical_margin_deg"`
}

// OverridesFile is the YAML document for operator threshold overrides.
type OverridesFile struct {
	Zones   map[string]ThresholdSpec `yaml:"zones"`
	Sensors map[string]struct {
		ZoneKind       string        `yaml:"zone_kind"`
		Threshold      ThresholdSpec `yaml:"threshold"`
		CadenceSeconds int           `yaml:"cadence_seconds"`
	} `yaml:"sensors"`
}

// Overrides holds the merged threshold table plus per-sensor overrides.
type Overrides struct {
	Table   map[ZoneKind]ZoneThreshold
	Sensors map[string]ZoneThreshold
	// Cadences is the expected reporting interval per sensor, for stale
	// detection. Sensors absent here use the watcher default.
	Cadences map[string]time.Duration
}

// LoadOverrides reads a YAML overrides file and merges it over the built-in
// defaults. A missing path returns defaults only.
func LoadOverrides(path string) (Overrides, error) {
	result := Overrides{
		Table:    Defaults(),
		Sensors:  make(map[string]ZoneThreshold),
		Cadences: make(map[string]time.Duration),
	}
	if path == "" {
		return result, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, err
	}
	var file OverridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return result, fmt.Errorf("thresholds: parse overrides: %w", err)
	}

	for name, spec := range file.Zones {
		kind := ZoneKind(name)
		if !kind.Valid() {
			return result, fmt.Errorf("thresholds: override for unknown zone kind %q", name)
		}
		threshold := spec.toThreshold(kind)
		if err := threshold.Validate(); err != nil {
			return result, fmt.Errorf("thresholds: zone %q: %w", name, err)
		}
		result.Table[kind] = threshold
	}

	for sensorID, entry := range file.Sensors {
		kind := ZoneKind(entry.ZoneKind)
		if !kind.Valid() {
			return result, fmt.Errorf("thresholds: sensor %q: unknown zone kind %q", sensorID, entry.ZoneKind)
		}
		// A sensor entry may carry only a cadence; a threshold override
		// needs at least one temperature bound.
		if entry.Threshold.MaxTempF != nil || entry.Threshold.MinTempF != nil {
			threshold := entry.Threshold.toThreshold(kind)
			if err := threshold.Validate(); err != nil {
				return result, fmt.Errorf("thresholds: sensor %q: %w", sensorID, err)
			}
			result.Sensors[sensorID] = threshold
		}
		if entry.CadenceSeconds > 0 {
			result.Cadences[sensorID] = time.Duration(entry.CadenceSeconds) * time.Second
		}
	}
	return result, nil
}

func (s ThresholdSpec) toThreshold(kind ZoneKind) ZoneThreshold {
	return ZoneThreshold{
		ZoneKind:          kind,
		MaxTempF:          s.MaxTempF,
		MinTempF:          s.MinTempF,
		WarningBufferDeg:  s.WarningBufferDeg,
		MaxHumidityPct:    s.MaxHumidityPct,
		CriticalMarginDeg: s.CriticalMarginDeg,
	}
}
