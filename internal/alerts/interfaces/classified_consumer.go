package interfaces

import (
	"context"
	"errors"

	alertapp "github.com/getevidly/evidly-app-sub001/internal/alerts/application"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/eventing/eventbus"
)

// ClassifiedConsumer adapts classification events into the alert lifecycle
// service.
type ClassifiedConsumer struct {
	app *alertapp.Service
}

// NewClassifiedConsumer constructs a consumer.
func NewClassifiedConsumer(app *alertapp.Service) (*ClassifiedConsumer, error) {
	if app == nil {
		return nil, errors.New("alerts consumer: nil service")
	}
	return &ClassifiedConsumer{app: app}, nil
}

// Consume handles a ReadingClassified event from the bus.
func (c *ClassifiedConsumer) Consume(ctx context.Context, event any) error {
	evt, ok := event.(classify.ReadingClassified)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	return c.app.HandleReadingClassified(ctx, evt)
}
