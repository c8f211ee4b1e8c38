package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPlay(t *testing.T) {
	before := testutil.ToFloat64(plays.WithLabelValues(ResultSaint))
	RecordPlay(ResultSaint, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(plays.WithLabelValues(ResultSaint)))
}

func TestRecordRejection(t *testing.T) {
	before := testutil.ToFloat64(rejections.WithLabelValues(ReasonAlreadyPlayed))
	RecordRejection(ReasonAlreadyPlayed)
	RecordRejection(ReasonAlreadyPlayed)
	assert.Equal(t, before+2, testutil.ToFloat64(rejections.WithLabelValues(ReasonAlreadyPlayed)))
}

func TestHandlerExposesLotteryMetrics(t *testing.T) {
	RecordAdminOperation("reset_all")
	RecordHTTPRequest(http.MethodPost, "/api/v1/play", http.StatusOK)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `lottery_admin_operations_total{operation="reset_all"}`)
	assert.Contains(t, body, `lottery_http_requests_total{method="POST",path="/api/v1/play",status="200"}`)
}
