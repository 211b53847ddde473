package interfaces

import (
	"context"
	"errors"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/eventing/eventbus"
	scoreapp "github.com/getevidly/evidly-app-sub001/internal/scoring/application"
)

// ClassifiedConsumer feeds classification events into the pillar
// observation store.
type ClassifiedConsumer struct {
	recorder *scoreapp.Recorder
}

// NewClassifiedConsumer constructs a consumer.
func NewClassifiedConsumer(recorder *scoreapp.Recorder) (*ClassifiedConsumer, error) {
	if recorder == nil {
		return nil, errors.New("scoring consumer: nil recorder")
	}
	return &ClassifiedConsumer{recorder: recorder}, nil
}

// Consume handles a ReadingClassified event from the bus.
func (c *ClassifiedConsumer) Consume(ctx context.Context, event any) error {
	evt, ok := event.(classify.ReadingClassified)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	return c.recorder.HandleReadingClassified(ctx, evt)
}
