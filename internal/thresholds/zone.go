package thresholds

import "errors"

// ZoneKind identifies a temperature-controlled zone category. Kinds are a
// closed enumeration resolved at sensor registration, never inferred from
// zone labels at classification time.
type ZoneKind string

const (
	ZoneWalkInCooler  ZoneKind = "walk_in_cooler"
	ZoneWalkInFreezer ZoneKind = "walk_in_freezer"
	ZoneReachInCooler ZoneKind = "reach_in_cooler"
	ZoneHotHolding    ZoneKind = "hot_holding"
	ZoneDryStorage    ZoneKind = "dry_storage"
	ZoneCustom        ZoneKind = "custom"
)

// Valid returns true when the zone kind is a registered enumeration value.
func (z ZoneKind) Valid() bool {
	switch z {
	case ZoneWalkInCooler, ZoneWalkInFreezer, ZoneReachInCooler, ZoneHotHolding, ZoneDryStorage, ZoneCustom:
		return true
	default:
		return false
	}
}

// ZoneKinds returns every registered zone kind in a stable order.
func ZoneKinds() []ZoneKind {
	return []ZoneKind{ZoneWalkInCooler, ZoneWalkInFreezer, ZoneReachInCooler, ZoneHotHolding, ZoneDryStorage, ZoneCustom}
}

// ErrUnknownZoneKind indicates a zone kind with no registered threshold and
// no override. Callers must surface this to an operator; defaulting to a
// permissive threshold would mask a food-safety violation.
var ErrUnknownZoneKind = errors.New("thresholds: unknown zone kind")

// ZoneThreshold defines the regulatory band for a zone kind. Exactly one of
// MaxTempF/MinTempF is authoritative: cooler-like zones bound above,
// hot-holding bounds below. Dry storage additionally carries a humidity
// ceiling.
type ZoneThreshold struct {
	ZoneKind         ZoneKind
	MaxTempF         *float64
	MinTempF         *float64
	WarningBufferDeg float64
	MaxHumidityPct   *float64
	// CriticalMarginDeg is how far past the bound a reading must land to be
	// treated as a hard danger-zone violation rather than a plain violation.
	CriticalMarginDeg float64
}

// Validate checks threshold invariants.
func (t ZoneThreshold) Validate() error {
	if !t.ZoneKind.Valid() {
		return ErrUnknownZoneKind
	}
	if t.MaxTempF == nil && t.MinTempF == nil {
		return errors.New("thresholds: no authoritative bound")
	}
	if t.MaxTempF != nil && t.MinTempF != nil {
		return errors.New("thresholds: both bounds set")
	}
	if t.WarningBufferDeg < 0 {
		return errors.New("thresholds: negative warning buffer")
	}
	if t.CriticalMarginDeg < 0 {
		return errors.New("thresholds: negative critical margin")
	}
	if t.MaxHumidityPct != nil && (*t.MaxHumidityPct < 0 || *t.MaxHumidityPct > 100) {
		return errors.New("thresholds: humidity ceiling out of range")
	}
	return nil
}

// UpperBounded reports whether the zone treats exceeding the max as bad.
func (t ZoneThreshold) UpperBounded() bool { return t.MaxTempF != nil }

func float64Ptr(v float64) *float64 { return &v }

// Defaults returns the built-in regulatory thresholds per zone kind.
// Values follow the FDA Food Code bands used across the product.
func Defaults() map[ZoneKind]ZoneThreshold {
	return map[ZoneKind]ZoneThreshold{
		ZoneWalkInCooler: {
			ZoneKind:          ZoneWalkInCooler,
			MaxTempF:          float64Ptr(41),
			WarningBufferDeg:  2,
			CriticalMarginDeg: 9,
		},
		ZoneReachInCooler: {
			ZoneKind:          ZoneReachInCooler,
			MaxTempF:          float64Ptr(41),
			WarningBufferDeg:  2,
			CriticalMarginDeg: 9,
		},
		ZoneWalkInFreezer: {
			ZoneKind:          ZoneWalkInFreezer,
			MaxTempF:          float64Ptr(0),
			WarningBufferDeg:  5,
			CriticalMarginDeg: 20,
		},
		ZoneHotHolding: {
			ZoneKind:          ZoneHotHolding,
			MinTempF:          float64Ptr(135),
			WarningBufferDeg:  5,
			CriticalMarginDeg: 15,
		},
		ZoneDryStorage: {
			ZoneKind:          ZoneDryStorage,
			MaxTempF:          float64Ptr(75),
			WarningBufferDeg:  5,
			MaxHumidityPct:    float64Ptr(60),
			CriticalMarginDeg: 15,
		},
	}
}
