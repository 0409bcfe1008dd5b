package telemetry

import (
	"context"
	"strconv"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/event"
)

// CountEvents keeps the domain counters that are driven by the event bus.
func CountEvents(eb *event.Bus) {
	eb.Subscribe(domain.EventNameLessonRead, func(_ context.Context, e event.Event) error {
		LessonsRead.WithLabelValues(strconv.FormatBool(e.(domain.EventLessonRead).Known)).Inc()
		return nil
	})
}
