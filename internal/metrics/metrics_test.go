package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesMetrics(t *testing.T) {
	before := testutil.ToFloat64(SessionsTotal.WithLabelValues("completed"))
	SessionsTotal.WithLabelValues("completed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SessionsTotal.WithLabelValues("completed")))

	RecordsTotal.WithLabelValues("sent", "applied").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "peersync_sessions_total")
	assert.Contains(t, body, `peersync_records_total{direction="sent",result="applied"}`)
}
