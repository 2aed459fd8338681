package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.Requests.WithLabelValues("fnlttSinglAcntAll", "000").Inc()
	m.Requests.WithLabelValues("fnlttSinglAcntAll", "000").Inc()
	m.Fallbacks.Inc()
	m.Periods.WithLabelValues("computed").Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("fnlttSinglAcntAll", "000")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Periods.WithLabelValues("computed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Fallbacks.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dartfin_statement_fallbacks_total 1")
}
