package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"calwidget/internal/config"
	"calwidget/internal/engine"
	"calwidget/internal/model"
	"calwidget/internal/timeutil"
)

type stubSource struct {
	id     string
	events []model.RawEvent
}

func (s *stubSource) ID() string   { return s.id }
func (s *stubSource) Name() string { return s.id }
func (s *stubSource) Fetch(context.Context, time.Time, time.Time) ([]model.RawEvent, error) {
	return s.events, nil
}

func testServer(t *testing.T, cfg *config.Config) (*Server, *engine.Engine) {
	t.Helper()

	cal, err := timeutil.NewCalendar("UTC")
	assert.NoError(t, err)

	now := time.Now()
	src := &stubSource{id: "family", events: []model.RawEvent{{
		SourceID: "family",
		UID:      "e1",
		Title:    "Dentist",
		Start:    now.Add(time.Hour),
		End:      now.Add(2 * time.Hour),
	}}}

	eng, err := engine.New(cfg, cal, timeutil.SystemClock{}, []engine.Source{src}, nil)
	assert.NoError(t, err)

	return NewServer(cfg, eng, cal, ""), eng
}

func widgetConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources = []config.SourceConfig{
		{ID: "family", Name: "Family", URL: "https://cal.example/family.ics"},
	}
	cfg.Normalize()
	return cfg
}

func TestHealth(t *testing.T) {
	assert := assert.New(t)

	s, _ := testServer(t, widgetConfig())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("OK", rec.Body.String())
}

func TestWidgetAPI(t *testing.T) {
	assert := assert.New(t)

	s, eng := testServer(t, widgetConfig())

	// Before any cycle: idle, no buckets.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widget", nil))
	assert.Equal(http.StatusOK, rec.Code)

	var view engine.View
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(engine.StateIdle, view.State)
	assert.Empty(view.Buckets)

	// After a cycle: ready with one bucket.
	assert.True(eng.Refresh(context.Background(), true))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widget", nil))
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(engine.StateReady, view.State)
	assert.Len(view.Buckets, 1)
}

func TestRefreshEndpoint(t *testing.T) {
	assert := assert.New(t)

	s, _ := testServer(t, widgetConfig())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`{"refreshed": true}`, rec.Body.String())

	// Immediately again: throttled.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.JSONEq(`{"refreshed": false}`, rec.Body.String())

	// Forced: runs.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh?force=1", nil))
	assert.JSONEq(`{"refreshed": true}`, rec.Body.String())

	// Wrong method.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestWidgetView(t *testing.T) {
	assert := assert.New(t)

	s, eng := testServer(t, widgetConfig())
	assert.True(eng.Refresh(context.Background(), true))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widget", nil))

	assert.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(body, `data-ready="true"`)
	assert.Contains(body, "Dentist")
}

func TestBasicAuth(t *testing.T) {
	assert := assert.New(t)

	cfg := widgetConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "widget", Password: "hunter2"}
	s, _ := testServer(t, cfg)

	// /health stays open.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(http.StatusOK, rec.Code)

	// Everything else requires credentials.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widget", nil))
	assert.Equal(http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/widget", nil)
	req.SetBasicAuth("widget", "hunter2")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(http.StatusOK, rec.Code)
}
