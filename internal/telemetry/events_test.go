package telemetry_test

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/telemetry"
)

func lessonsRead(t *testing.T, known string) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, telemetry.LessonsRead.WithLabelValues(known).Write(&m))
	return m.GetCounter().GetValue()
}

func TestCountEvents_LessonsRead(t *testing.T) {
	knownBefore, unknownBefore := lessonsRead(t, "true"), lessonsRead(t, "false")

	eb := event.NewBus()
	telemetry.CountEvents(eb)

	ctx := context.Background()
	eb.Publish(ctx, domain.EventLessonRead{SessionID: "s1", Title: "Sharding", Known: true})
	eb.Publish(ctx, domain.EventLessonRead{SessionID: "s1", Title: "Cache-aside", Known: true})
	eb.Publish(ctx, domain.EventLessonRead{SessionID: "s1", Title: "Removed lesson", Known: false})
	eb.Publish(ctx, domain.EventQuizFinished{SessionID: "s1", Total: 2})
	eb.Stop()

	assert.Equal(t, 2.0, lessonsRead(t, "true")-knownBefore)
	assert.Equal(t, 1.0, lessonsRead(t, "false")-unknownBefore)
}
