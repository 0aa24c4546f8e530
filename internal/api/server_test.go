package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/models"
	"github.com/minki/fundscan/internal/store"
)

type fakeOpsStore struct {
	requeued int
}

func (f *fakeOpsStore) QueueStats(ctx context.Context) (map[models.ProcessingStatus]int, error) {
	return map[models.ProcessingStatus]int{
		models.ProcessingPending:   5,
		models.ProcessingCompleted: 12,
	}, nil
}

func (f *fakeOpsStore) SkipReasons(ctx context.Context) (map[string]int, error) {
	return map[string]int{"non-funding-title": 3}, nil
}

func (f *fakeOpsStore) RecentRuns(ctx context.Context, limit int) ([]store.ScrapeRun, error) {
	return nil, nil
}

func (f *fakeOpsStore) RequeueJob(ctx context.Context, jobID uuid.UUID, maxAttempts int) error {
	return nil
}

func (f *fakeOpsStore) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	f.requeued++
	return 4, nil
}

func (f *fakeOpsStore) FieldPopulationRates(ctx context.Context) ([]store.FieldPopulation, error) {
	return []store.FieldPopulation{{Field: "budget", Populated: 6, Total: 10}}, nil
}

type fakeDiscoverer struct{}

func (fakeDiscoverer) DiscoverAll(ctx context.Context) error { return nil }

type fakeProcessor struct{}

func (fakeProcessor) Run(ctx context.Context, filter store.JobFilter) error { return nil }

func testServer(t *testing.T) (*Server, *fakeOpsStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	st := &fakeOpsStore{}
	srv := NewServer(st, fakeDiscoverer{}, fakeProcessor{}, config.ServerConfig{
		Port:            0,
		AdminSecretHash: string(hash),
		JWTSecret:       "test-signing-secret",
	}, 3)
	return srv, st
}

func login(t *testing.T, srv *Server, secret string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"secret":"`+secret+`"}`))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec.Code, ""
	}
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body["token"]
}

const echoHeaderContentType = "Content-Type"

func TestLogin(t *testing.T) {
	srv, _ := testServer(t)

	code, token := login(t, srv, "letmein")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, token)

	code, _ = login(t, srv, "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueueStats(t *testing.T) {
	srv, _ := testServer(t)
	_, token := login(t, srv, "letmein")

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats["PENDING"])
	assert.Equal(t, 12, stats["COMPLETED"])
}

func TestRequeueFailed(t *testing.T) {
	srv, st := testServer(t)
	_, token := login(t, srv, "letmein")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/requeue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, st.requeued)
	assert.Contains(t, rec.Body.String(), `"requeued":4`)
}

type blockingDiscoverer struct {
	started  chan struct{}
	released chan struct{}
}

func (d *blockingDiscoverer) DiscoverAll(ctx context.Context) error {
	close(d.started)
	<-ctx.Done()
	close(d.released)
	return ctx.Err()
}

// A discovery run triggered over the API must stop when the server's
// lifetime context is cancelled.
func TestTriggeredDiscoveryStopsWithServer(t *testing.T) {
	srv, _ := testServer(t)
	d := &blockingDiscoverer{started: make(chan struct{}), released: make(chan struct{})}
	srv.discoverer = d

	ctx, cancel := context.WithCancel(context.Background())
	srv.base = ctx

	_, token := login(t, srv, "letmein")
	req := httptest.NewRequest(http.MethodPost, "/api/discover", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-d.started:
	case <-time.After(time.Second):
		t.Fatal("triggered discovery never started")
	}

	cancel()
	select {
	case <-d.released:
	case <-time.After(time.Second):
		t.Fatal("triggered discovery outlived the server context")
	}
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
