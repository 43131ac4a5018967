package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m, err := New(DefaultNamespace, "")
	require.NoError(t, err)

	m.ObserveRequest("publish", "ok", 3*time.Millisecond)
	m.ObserveRequest("publish", "TokenTooSoon", time.Millisecond)
	m.ObserveRequest("publish", "ok", time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("publish", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("publish", "TokenTooSoon")))
	require.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestRegisterHub(t *testing.T) {
	m, err := New(DefaultNamespace, "")
	require.NoError(t, err)
	require.NoError(t, m.RegisterHub(DefaultNamespace, func() (int64, uint64, uint64) { return 3, 10, 2 }))
	require.Error(t, m.RegisterHub(DefaultNamespace, func() (int64, uint64, uint64) { return 0, 0, 0 }),
		"registering the same collectors twice fails")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	for _, line := range []string{
		"hchat_hub_subscribers 3",
		"hchat_hub_delivered_total 10",
		"hchat_hub_dropped_total 2",
	} {
		require.True(t, strings.Contains(string(body), line), line)
	}
}

func TestNewRequiresNamespace(t *testing.T) {
	_, err := New("", ":0")
	require.Error(t, err)
}
