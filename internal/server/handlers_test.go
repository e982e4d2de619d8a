package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/database"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/domain"
)

func newTestServer(t *testing.T, trigger func() error) (*Server, *repositories.Gateway) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	gateway := repositories.NewGateway(db.Conn(), time.Second, zerolog.Nop())
	srv := New(Config{
		Port:       0,
		Log:        zerolog.Nop(),
		Gateway:    gateway,
		TriggerRun: trigger,
	})
	return srv, gateway
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func seedScore(t *testing.T, g *repositories.Gateway, ticker string, composite float64) {
	t.Helper()
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{Ticker: ticker, Name: ticker, Active: true}))
	require.NoError(t, g.Scores.Upsert(domain.ScoreRow{
		Ticker:    ticker,
		AsOfDate:  time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Composite: composite,
		Grade:     domain.GradeFor(composite),
		Version:   "v1",
	}))
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := get(srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestLatestRunReturnsStoredSummaryVerbatim(t *testing.T) {
	srv, g := newTestServer(t, nil)

	rec := get(srv, "/api/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	require.NoError(t, g.Runs.Insert(day, day, day.Add(time.Hour), `{"run_date":"2026-08-21"}`))

	rec = get(srv, "/api/runs/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"run_date":"2026-08-21"}`, rec.Body.String())
}

func TestScoresEndpoints(t *testing.T) {
	srv, g := newTestServer(t, nil)
	seedScore(t, g, "AAPL", 72.5)
	seedScore(t, g, "MSFT", 65.0)

	rec := get(srv, "/api/scores")
	assert.Equal(t, http.StatusOK, rec.Code)
	var scores []domain.ScoreRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	assert.Len(t, scores, 2)

	rec = get(srv, "/api/scores/aapl")
	assert.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Score *domain.ScoreRow `json:"score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.Score)
	assert.Equal(t, 72.5, detail.Score.Composite)

	rec = get(srv, "/api/scores/ZZZZ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerRunConflictsWhileRunning(t *testing.T) {
	srv, _ := newTestServer(t, func() error {
		return errors.New("pipeline run already in progress")
	})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerRunAccepted(t *testing.T) {
	triggered := false
	srv, _ := newTestServer(t, func() error {
		triggered = true
		return nil
	})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, triggered)
}
