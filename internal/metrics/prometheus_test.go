package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/metrics"
)

func TestRecorderExposesRegisteredMetrics(t *testing.T) {
	r := metrics.New()
	r.IncMessagesAdded("sq-a")
	r.SetQueueDepth("sq-a", 3)
	r.IncAssignmentConflicts("sq-a")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "queuehub_messages_added_total")
	require.Contains(t, body, "queuehub_queue_depth")
	require.Contains(t, body, "queuehub_assignment_conflicts_total")
}
