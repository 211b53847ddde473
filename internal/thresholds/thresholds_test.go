package thresholds

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	for kind, threshold := range Defaults() {
		if err := threshold.Validate(); err != nil {
			t.Fatalf("default threshold for %s invalid: %v", kind, err)
		}
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name      string
		threshold ZoneThreshold
	}{
		{"unknown kind", ZoneThreshold{ZoneKind: "garage", MaxTempF: float64Ptr(41)}},
		{"no bound", ZoneThreshold{ZoneKind: ZoneWalkInCooler}},
		{"both bounds", ZoneThreshold{ZoneKind: ZoneWalkInCooler, MaxTempF: float64Ptr(41), MinTempF: float64Ptr(33)}},
		{"negative buffer", ZoneThreshold{ZoneKind: ZoneWalkInCooler, MaxTempF: float64Ptr(41), WarningBufferDeg: -1}},
		{"humidity out of range", ZoneThreshold{ZoneKind: ZoneDryStorage, MaxTempF: float64Ptr(75), MaxHumidityPct: float64Ptr(140)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.threshold.Validate(); err == nil {
				t.Fatal("Validate accepted an invalid threshold")
			}
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()

	threshold, err := registry.Resolve(ZoneWalkInCooler, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if threshold.MaxTempF == nil || *threshold.MaxTempF != 41 {
		t.Fatalf("walk-in cooler max = %v, want 41", threshold.MaxTempF)
	}

	if _, err := registry.Resolve(ZoneCustom, nil); !errors.Is(err, ErrUnknownZoneKind) {
		t.Fatalf("custom zone without override: err = %v, want ErrUnknownZoneKind", err)
	}

	override := ZoneThreshold{ZoneKind: ZoneCustom, MaxTempF: float64Ptr(50), WarningBufferDeg: 3}
	resolved, err := registry.Resolve(ZoneCustom, &override)
	if err != nil {
		t.Fatalf("Resolve with override: %v", err)
	}
	if *resolved.MaxTempF != 50 {
		t.Fatalf("override max = %v, want 50", *resolved.MaxTempF)
	}
}

func TestRegistryReplace(t *testing.T) {
	registry := NewRegistry()
	table := Defaults()
	entry := table[ZoneWalkInCooler]
	entry.MaxTempF = float64Ptr(39)
	table[ZoneWalkInCooler] = entry

	if err := registry.Replace(table); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	resolved, err := registry.Resolve(ZoneWalkInCooler, nil)
	if err != nil {
		t.Fatalf("Resolve after replace: %v", err)
	}
	if *resolved.MaxTempF != 39 {
		t.Fatalf("max after replace = %v, want 39", *resolved.MaxTempF)
	}

	bad := map[ZoneKind]ZoneThreshold{ZoneWalkInCooler: {ZoneKind: ZoneWalkInCooler}}
	if err := registry.Replace(bad); err == nil {
		t.Fatal("Replace accepted an invalid table")
	}
	// A failed replace must leave the previous table intact.
	resolved, err = registry.Resolve(ZoneWalkInCooler, nil)
	if err != nil || *resolved.MaxTempF != 39 {
		t.Fatalf("table changed after failed replace: %v %v", resolved.MaxTempF, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	doc := `
zones:
  walk_in_cooler:
    max_temp_f: 40
    warning_buffer_deg: 3
    critical_margin_deg: 10
sensors:
  sensor-bar-fridge:
    zone_kind: reach_in_cooler
    threshold:
      max_temp_f: 38
      warning_buffer_deg: 1
    cadence_seconds: 120
  sensor-quiet:
    zone_kind: dry_storage
    cadence_seconds: 900
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}

	cooler := overrides.Table[ZoneWalkInCooler]
	if *cooler.MaxTempF != 40 || cooler.WarningBufferDeg != 3 {
		t.Fatalf("cooler override not applied: %+v", cooler)
	}
	// Untouched zones keep their defaults.
	if *overrides.Table[ZoneHotHolding].MinTempF != 135 {
		t.Fatalf("hot holding default lost: %+v", overrides.Table[ZoneHotHolding])
	}

	sensor, ok := overrides.Sensors["sensor-bar-fridge"]
	if !ok {
		t.Fatal("sensor override missing")
	}
	if *sensor.MaxTempF != 38 || sensor.ZoneKind != ZoneReachInCooler {
		t.Fatalf("sensor override = %+v", sensor)
	}

	if overrides.Cadences["sensor-bar-fridge"] != 2*time.Minute {
		t.Fatalf("cadence = %v, want 2m", overrides.Cadences["sensor-bar-fridge"])
	}
	// Cadence-only entries carry no threshold override.
	if _, ok := overrides.Sensors["sensor-quiet"]; ok {
		t.Fatal("cadence-only sensor should not get a threshold override")
	}
	if overrides.Cadences["sensor-quiet"] != 15*time.Minute {
		t.Fatalf("cadence = %v, want 15m", overrides.Cadences["sensor-quiet"])
	}
}

func TestLoadOverridesMissingFile(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOverrides on missing file: %v", err)
	}
	if len(overrides.Table) != len(Defaults()) {
		t.Fatalf("missing file should yield defaults, got %d zones", len(overrides.Table))
	}
}

func TestLoadOverridesRejectsUnknownZone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	doc := "zones:\n  garage:\n    max_temp_f: 55\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOverrides(path); err == nil {
		t.Fatal("LoadOverrides accepted an unknown zone kind")
	}
}
