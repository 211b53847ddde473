package incidents

import (
	"context"
	"errors"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/escalation"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
)

// ErrNotRecorded signals a missing incident record.
var ErrNotRecorded = errors.New("incidents: not recorded")

// Remote opens an incident in the external incident system and returns
// its id there.
type Remote interface {
	Open(ctx context.Context, alert alerts.Alert, stage escalation.Stage) (string, error)
}

// Store remembers which (alert, stage) pairs already produced an
// incident, so a replayed escalation never opens a duplicate.
type Store interface {
	Get(ctx context.Context, alertID, stage string) (string, error)
	Record(ctx context.Context, alertID, stage, incidentID string, at time.Time) error
}

// Creator is the escalation scheduler's incident port. It consults the
// store before calling the remote system and records the result after,
// making incident creation exactly-once per alert and stage.
type Creator struct {
	remote Remote
	store  Store
}

// NewCreator constructs a Creator.
func NewCreator(remote Remote, store Store) (*Creator, error) {
	if remote == nil {
		return nil, errors.New("incidents: nil remote")
	}
	if store == nil {
		return nil, errors.New("incidents: nil store")
	}
	return &Creator{remote: remote, store: store}, nil
}

// CreateIncident opens an incident for the alert, or returns the one
// already opened for this alert and stage.
func (c *Creator) CreateIncident(ctx context.Context, alert alerts.Alert, stage escalation.Stage) (string, error) {
	if c == nil || c.remote == nil {
		return "", errors.New("incidents: not initialized")
	}
	existing, err := c.store.Get(ctx, alert.ID, string(stage))
	if err != nil && !errors.Is(err, ErrNotRecorded) {
		return "", err
	}
	if existing != "" {
		metrics.IncIncidentCreate("duplicate")
		return existing, nil
	}

	incidentID, err := c.remote.Open(ctx, alert, stage)
	if err != nil {
		metrics.IncIncidentCreate("error")
		return "", err
	}
	if err := c.store.Record(ctx, alert.ID, string(stage), incidentID, time.Now().UTC()); err != nil {
		// The incident exists remotely; surfacing the store error would
		// make the scheduler retry and open a duplicate.
		metrics.IncIncidentCreate("record_error")
		return incidentID, nil
	}
	metrics.IncIncidentCreate("ok")
	return incidentID, nil
}
