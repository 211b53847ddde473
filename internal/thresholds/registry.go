package thresholds

import "sync/atomic"

// Registry resolves zone thresholds. The table is read-mostly; operator
// updates replace the whole table atomically so a classification in flight
// never observes a half-applied threshold.
type Registry struct {
	table atomic.Pointer[map[ZoneKind]ZoneThreshold]
}

// NewRegistry constructs a registry seeded with the built-in defaults.
func NewRegistry() *Registry {
	r := &Registry{}
	defaults := Defaults()
	r.table.Store(&defaults)
	return r
}

// Resolve returns the threshold for a zone kind. A sensor-level override
// wins over the registered table. Returns ErrUnknownZoneKind when the kind
// is not registered and no override is supplied.
func (r *Registry) Resolve(kind ZoneKind, override *ZoneThreshold) (ZoneThreshold, error) {
	if override != nil {
		if err := override.Validate(); err != nil {
			return ZoneThreshold{}, err
		}
		return *override, nil
	}
	table := r.table.Load()
	if table != nil {
		if threshold, ok := (*table)[kind]; ok {
			return threshold, nil
		}
	}
	return ZoneThreshold{}, ErrUnknownZoneKind
}

// Replace swaps in a new threshold table. The caller provides the complete
// table, typically defaults merged with operator overrides.
func (r *Registry) Replace(table map[ZoneKind]ZoneThreshold) error {
	copied := make(map[ZoneKind]ZoneThreshold, len(table))
	for kind, threshold := range table {
		if err := threshold.Validate(); err != nil {
			return err
		}
		copied[kind] = threshold
	}
	r.table.Store(&copied)
	return nil
}

// Snapshot returns a copy of the current table.
func (r *Registry) Snapshot() map[ZoneKind]ZoneThreshold {
	table := r.table.Load()
	if table == nil {
		return nil
	}
	copied := make(map[ZoneKind]ZoneThreshold, len(*table))
	for kind, threshold := range *table {
		copied[kind] = threshold
	}
	return copied
}
