package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRequest("/auth/login", http.MethodPost, 200, 20*time.Millisecond)
	m.RecordRequest("/auth/login", http.MethodPost, 200, 10*time.Millisecond)
	m.RecordError("/auth/login", http.MethodPost, "UNAUTHORIZED")
	m.RecordTokenVerification(domain.TokenKindAccess, "expired")
	m.RecordRefresh("ok")
	m.SocketOpened()
	m.SocketOpened()
	m.SocketClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/auth/login", http.MethodPost, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/auth/login", http.MethodPost, "UNAUTHORIZED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("ACCESS", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sockets))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", http.MethodGet, 200, time.Millisecond)
		m.RecordError("/", http.MethodGet, "X")
		m.RecordTokenVerification(domain.TokenKindRefresh, "ok")
		m.RecordRefresh("failed")
		m.SocketOpened()
		m.SocketClosed()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordRefresh("ok")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "clinic_token_refreshes_total")
}

func TestNewLogger_FallsBackOnUnknownLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}
