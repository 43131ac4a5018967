package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestBaseServerRoutes(t *testing.T) {
	srv, err := New(&HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, pingRoutes{})
	require.NoError(t, err)
	require.NotNil(t, srv.Metrics())
	h := srv.Handler()

	code, body := get(t, h, "/ping")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "pong", body)

	code, body = get(t, h, "/livez")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"alive"}`, body)

	code, _ = get(t, h, "/readyz")
	require.Equal(t, http.StatusOK, code)

	code, _ = get(t, h, "/debug/pprof/")
	require.Equal(t, http.StatusNotFound, code)
}

func TestBaseServerDrain(t *testing.T) {
	srv, err := New(&HTTPServerConfig{Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	h := srv.Handler()

	_, body := get(t, h, "/drain")
	require.JSONEq(t, `{"status":"draining"}`, body)
	require.False(t, srv.IsReady())

	_, body = get(t, h, "/drain")
	require.JSONEq(t, `{"status":"already draining"}`, body)

	code, _ := get(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)

	_, body = get(t, h, "/undrain")
	require.JSONEq(t, `{"status":"ready"}`, body)
	require.True(t, srv.IsReady())

	_, body = get(t, h, "/undrain")
	require.JSONEq(t, `{"status":"already ready"}`, body)
}

func TestBaseServerPprof(t *testing.T) {
	srv, err := New(&HTTPServerConfig{EnablePprof: true, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	code, _ := get(t, srv.Handler(), "/debug/pprof/")
	require.Equal(t, http.StatusOK, code)
}

func TestBaseServerLifecycle(t *testing.T) {
	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		DrainDuration:            time.Hour,
		GracefulShutdownDuration: time.Second,
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	errs := srv.RunInBackground()

	// A canceled context cuts the drain wait short.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.False(t, srv.IsReady())

	select {
	case err, ok := <-errs:
		require.False(t, ok, "unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("servers did not stop")
	}
}

func TestBaseServerReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv, err := New(&HTTPServerConfig{
		ListenAddr: ln.Addr().String(),
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	select {
	case err := <-srv.RunInBackground():
		require.ErrorContains(t, err, "HTTP server")
	case <-time.After(5 * time.Second):
		t.Fatal("expected a listen error")
	}
}
