package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockhub/internal/metrics"
	"stockhub/internal/microservices/tcp"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeCluster struct {
	ids []string
	err error
}

func (f fakeCluster) Identities(ctx context.Context) ([]string, error) {
	return f.ids, f.err
}

func setupRouter(t *testing.T, cluster Cluster, health func(context.Context) error) (*gin.Engine, *TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	manager := tcp.NewConnectionManager(logger, nil, m)
	require.NoError(t, manager.Register(context.Background(), &tcp.ClientConnection{ID: "c1"}, &tcp.Session{
		Identity:   "alice",
		ClientID:   "c1",
		LoggedInAt: time.Now(),
	}))

	tokens := NewTokenService(testSecret, time.Hour)
	router := NewRouter(Deps{
		Sessions: manager,
		Cluster:  cluster,
		Tokens:   tokens,
		Gatherer: reg,
		Health:   health,
		Logger:   logger,
	})
	return router, tokens
}

func get(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	router, _ := setupRouter(t, nil, nil)

	w := get(router, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestHealthz_DatabaseDown(t *testing.T) {
	router, _ := setupRouter(t, nil, func(context.Context) error { return errors.New("connection refused") })

	w := get(router, "/healthz", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestMetrics(t *testing.T) {
	router, _ := setupRouter(t, nil, nil)

	w := get(router, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stockhub_tcp_sessions_active 1")
}

func TestSessions_Auth(t *testing.T) {
	router, tokens := setupRouter(t, nil, nil)

	employeeToken, err := tokens.Issue("alice", false)
	require.NoError(t, err)
	foreign, err := NewTokenService(strings.Repeat("x", 32), time.Hour).Issue("root", true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/sessions", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/sessions", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/sessions", foreign).Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/sessions", employeeToken).Code)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessions_ListsRegistryAndCluster(t *testing.T) {
	router, tokens := setupRouter(t, fakeCluster{ids: []string{"alice", "bob"}}, nil)
	token, err := tokens.Issue("root", true)
	require.NoError(t, err)

	w := get(router, "/sessions", token)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count    int           `json:"count"`
		Sessions []tcp.Session `json:"sessions"`
		Cluster  []string      `json:"cluster"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "alice", body.Sessions[0].Identity)
	assert.Equal(t, []string{"alice", "bob"}, body.Cluster)
}

func TestSessions_ClusterUnavailable(t *testing.T) {
	router, tokens := setupRouter(t, fakeCluster{err: errors.New("redis down")}, nil)
	token, err := tokens.Issue("root", true)
	require.NoError(t, err)

	w := get(router, "/sessions", token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "presence store unavailable")
}

func TestTokenService_Expired(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Millisecond)
	token, err := tokens.Issue("root", true)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = tokens.ValidateToken(token)
	assert.Error(t, err)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(l.Addr().String(), Deps{
		Sessions: tcp.NewConnectionManager(logger, nil, nil),
		Tokens:   NewTokenService(testSecret, time.Hour),
		Gatherer: prometheus.NewRegistry(),
		Logger:   logger,
	})
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
