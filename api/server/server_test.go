package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/api/server"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
	tptesting "github.com/malbeclabs/trustplay/utils/pkg/testing"
)

func newHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	log := tptesting.NewLogger()
	l, err := ledger.NewMemory(ledger.MemoryConfig{Logger: log})
	require.NoError(t, err)
	proc, err := processor.New(processor.Config{Logger: log, Ledger: l, Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)
	rt, err := runtime.New(runtime.Config{Logger: log, Processor: proc})
	require.NoError(t, err)
	h, err := handlers.New(handlers.Config{Logger: log, Runtime: rt})
	require.NoError(t, err)
	return h
}

func newServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()
	cfg.Logger = tptesting.NewLogger()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	cfg.Handlers = newHandlers(t)
	srv, err := server.New(cfg)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestTrustPlay_Server_Config(t *testing.T) {
	t.Parallel()

	cfg := server.Config{}
	require.EqualError(t, cfg.Validate(), "logger is required")
	cfg.Logger = tptesting.NewLogger()
	require.EqualError(t, cfg.Validate(), "listen addr is required")
	cfg.ListenAddr = ":8080"
	require.EqualError(t, cfg.Validate(), "handlers are required")
	cfg.Handlers = newHandlers(t)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "dev", cfg.VersionInfo.Version)
	require.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestTrustPlay_Server_Endpoints(t *testing.T) {
	t.Parallel()

	t.Run("healthz and version", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, server.Config{VersionInfo: server.VersionInfo{Version: "1.2.3", Commit: "abc"}})

		rec := get(t, srv.Handler(), "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok\n", rec.Body.String())

		rec = get(t, srv.Handler(), "/version")
		require.Equal(t, http.StatusOK, rec.Code)
		var v server.VersionInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		require.Equal(t, "1.2.3", v.Version)
		require.Equal(t, "abc", v.Commit)
	})

	t.Run("readyz follows the ledger check", func(t *testing.T) {
		t.Parallel()
		var ready error
		srv := newServer(t, server.Config{Ready: func(ctx context.Context) error { return ready }})

		require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/readyz").Code)
		ready = errors.New("pool closed")
		require.Equal(t, http.StatusServiceUnavailable, get(t, srv.Handler(), "/readyz").Code)
	})

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, server.Config{})
		_ = get(t, srv.Handler(), "/healthz")

		rec := get(t, srv.Handler(), "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, strings.Contains(rec.Body.String(), "trustplay_api_http_requests_total"))
	})

	t.Run("api routes are mounted with a request ID", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, server.Config{})
		rec := get(t, srv.Handler(), "/api/pda/whitelist")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Header().Get(handlers.RequestIDHeader))
	})

	t.Run("cors preflight", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, server.Config{CORSOrigins: []string{"https://app.trustplay.gg"}})
		req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
		req.Header.Set("Origin", "https://app.trustplay.gg")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, "https://app.trustplay.gg", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestTrustPlay_Server_Run(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := newServer(t, server.Config{ListenAddr: addr, ShutdownTimeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
