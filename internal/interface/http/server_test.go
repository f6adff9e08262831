package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/backup"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence/memory"
	"github.com/MirasRuslanJR/PyShark/internal/interface/http/handlers"
	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

var testNow = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

type fakeFeed struct{ items []shared.EventEnvelope }

func (f fakeFeed) Recent(limit int) []shared.EventEnvelope {
	if limit < len(f.items) {
		return f.items[:limit]
	}
	return f.items
}

type testResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

type mutationBody struct {
	Record struct {
		XP               int             `json:"xp"`
		Level            int             `json:"level"`
		CompletedLessons []string        `json:"completedLessons"`
		Achievements     []string        `json:"achievements"`
		Stats            json.RawMessage `json:"stats"`
	} `json:"record"`
	Events         []shared.EventEnvelope `json:"events"`
	Persisted      bool                   `json:"persisted"`
	NewlyCompleted *bool                  `json:"newlyCompleted"`
	MascotClicks   *int                   `json:"mascotClicks"`
}

func newTestServer(t *testing.T, cfg Config, extra func(*Dependencies)) *Server {
	t.Helper()
	svc := ledger.NewService(memory.NewStore(), curriculum.Default(),
		ledger.WithClock(timeutil.FixedClock(testNow)),
		ledger.WithLocation(time.UTC),
	)
	deps := Dependencies{
		Ledger: svc,
		Now:    func() time.Time { return testNow },
	}
	if extra != nil {
		extra(&deps)
	}
	cfg.Mode = gin.TestMode
	s := NewServer(cfg, deps)
	t.Cleanup(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func decodeMutation(t *testing.T, resp testResponse) mutationBody {
	t.Helper()
	var body mutationBody
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	return body
}

func TestServer_CompleteLesson(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/lessons/b1/complete", `{"score":80}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, rec.Header().Get(headerRequestID))

	body := decodeMutation(t, resp)
	assert.Equal(t, 40, body.Record.XP)
	assert.Equal(t, []string{"b1"}, body.Record.CompletedLessons)
	assert.Contains(t, body.Record.Achievements, "first_lesson")
	assert.True(t, body.Persisted)
	require.NotNil(t, body.NewlyCompleted)
	assert.True(t, *body.NewlyCompleted)

	var types []shared.EventType
	for _, e := range body.Events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, shared.EventLessonCompleted)
	assert.Contains(t, types, shared.EventAchievementUnlocked)

	rec, resp = do(t, s, http.MethodPost, "/api/v1/lessons/b1/complete", `{"score":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeMutation(t, resp)
	assert.Equal(t, 40, body.Record.XP, "repeat completion awards nothing")
	assert.False(t, *body.NewlyCompleted)
}

func TestServer_ValidationErrors(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing score", http.MethodPost, "/api/v1/lessons/b1/complete", `{}`, http.StatusBadRequest, "invalid_request"},
		{"malformed body", http.MethodPost, "/api/v1/xp", `{"amount":`, http.StatusBadRequest, "invalid_request"},
		{"score out of range", http.MethodPost, "/api/v1/lessons/b1/complete", `{"score":101}`, http.StatusBadRequest, "invalid_argument"},
		{"unknown lesson", http.MethodPost, "/api/v1/lessons/zz/complete", `{"score":50}`, http.StatusBadRequest, "invalid_argument"},
		{"negative xp", http.MethodPost, "/api/v1/xp", `{"amount":-5}`, http.StatusBadRequest, "invalid_argument"},
		{"xp above cap", http.MethodPost, "/api/v1/xp", `{"amount":1000000001}`, http.StatusBadRequest, "invalid_argument"},
		{"zero goal", http.MethodPut, "/api/v1/daily-goal", `{"target":0}`, http.StatusBadRequest, "invalid_argument"},
		{"unconfirmed reset", http.MethodPost, "/api/v1/reset", `{"confirm":false}`, http.StatusBadRequest, "invalid_argument"},
		{"reset without body", http.MethodPost, "/api/v1/reset", "", http.StatusBadRequest, "invalid_argument"},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServer_CountersAndSnapshot(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	for _, call := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/questions/answer", `{"correct":true}`},
		{http.MethodPost, "/api/v1/questions/answer", `{"correct":false}`},
		{http.MethodPost, "/api/v1/code-runs", ""},
		{http.MethodPost, "/api/v1/time-spent", `{"minutes":15}`},
		{http.MethodPut, "/api/v1/daily-goal", `{"target":5}`},
		{http.MethodPost, "/api/v1/xp", `{"amount":120}`},
	} {
		rec, _ := do(t, s, call.method, call.path, call.body)
		require.Equal(t, http.StatusOK, rec.Code, call.path)
	}

	rec, resp := do(t, s, http.MethodGet, "/api/v1/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		Record struct {
			XP        int `json:"xp"`
			Level     int `json:"level"`
			DailyGoal struct {
				Target int `json:"target"`
			} `json:"dailyGoal"`
			Stats struct {
				QuestionsAnswered int `json:"questionsAnswered"`
				CorrectAnswers    int `json:"correctAnswers"`
				CodeRuns          int `json:"codeRuns"`
				TimeSpentMinutes  int `json:"timeSpentMinutes"`
			} `json:"stats"`
		} `json:"record"`
		Accuracy int `json:"accuracy"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.Equal(t, 5, snap.Record.DailyGoal.Target)
	assert.Equal(t, 2, snap.Record.Stats.QuestionsAnswered)
	assert.Equal(t, 1, snap.Record.Stats.CorrectAnswers)
	assert.Equal(t, 1, snap.Record.Stats.CodeRuns)
	assert.Equal(t, 15, snap.Record.Stats.TimeSpentMinutes)
	assert.Equal(t, 50, snap.Accuracy)
	assert.GreaterOrEqual(t, snap.Record.XP, 120)
	assert.Equal(t, 2, snap.Record.Level)
}

func TestServer_NextLessonAndAchievements(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	_, resp := do(t, s, http.MethodGet, "/api/v1/lessons/next", "")
	var next struct {
		LessonID     *string `json:"lessonId"`
		AllCompleted bool    `json:"allCompleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &next))
	require.NotNil(t, next.LessonID)
	assert.Equal(t, "b1", *next.LessonID)

	do(t, s, http.MethodPost, "/api/v1/lessons/b1/complete", `{"score":100}`)

	rec, resp := do(t, s, http.MethodGet, "/api/v1/achievements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []struct {
		ID       string `json:"id"`
		Unlocked bool   `json:"unlocked"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &views))
	require.NotEmpty(t, views)
	assert.Equal(t, "first_lesson", views[0].ID)
	assert.True(t, views[0].Unlocked)
}

func TestServer_MascotClicks(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	_, resp := do(t, s, http.MethodPost, "/api/v1/mascot/clicks", "")
	body := decodeMutation(t, resp)
	require.NotNil(t, body.MascotClicks)
	assert.Equal(t, 1, *body.MascotClicks)
	assert.Nil(t, body.NewlyCompleted)
}

func TestServer_ExportImport(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)
	do(t, s, http.MethodPost, "/api/v1/xp", `{"amount":150}`)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="pyshark-progress-2026-10-14.json"`, rec.Header().Get("Content-Disposition"))
	exported := append([]byte(nil), rec.Body.Bytes()...)

	record, err := backup.Unmarshal(exported)
	require.NoError(t, err)
	assert.Equal(t, 150, record.XP)

	other := newTestServer(t, DefaultConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewReader(exported))
	rec = httptest.NewRecorder()
	other.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := do(t, other, http.MethodGet, "/api/v1/progress", "")
	var snap struct {
		Record struct {
			XP int `json:"xp"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.Equal(t, 150, snap.Record.XP)
}

func TestServer_ImportRejectsCorruptDocument(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)
	do(t, s, http.MethodPost, "/api/v1/xp", `{"amount":30}`)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/import", `{"format":"pyshark-progress","version":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "corrupt_state", resp.Error.Code)

	_, resp = do(t, s, http.MethodGet, "/api/v1/progress", "")
	var snap struct {
		Record struct {
			XP int `json:"xp"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.Equal(t, 30, snap.Record.XP)
}

func TestServer_ImportTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	s := newTestServer(t, cfg, nil)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/import", `{"xp":1,"padding":"0123456789abcdef"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "payload_too_large", resp.Error.Code)
}

func TestServer_ResetConfirmed(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)
	do(t, s, http.MethodPost, "/api/v1/xp", `{"amount":500}`)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/reset", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMutation(t, resp)
	assert.Equal(t, 0, body.Record.XP)
	assert.Equal(t, 1, body.Record.Level)
}

func TestServer_Notifications(t *testing.T) {
	items := []shared.EventEnvelope{
		{ID: "3", Type: shared.EventLevelUp},
		{ID: "2", Type: shared.EventAchievementUnlocked},
		{ID: "1", Type: shared.EventLessonCompleted},
	}
	s := newTestServer(t, DefaultConfig(), func(d *Dependencies) {
		d.Feed = fakeFeed{items: items}
	})

	_, resp := do(t, s, http.MethodGet, "/api/v1/notifications?limit=2", "")
	var got []shared.EventEnvelope
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)

	empty := newTestServer(t, DefaultConfig(), nil)
	_, resp = do(t, empty, http.MethodGet, "/api/v1/notifications", "")
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestServer_Health(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker(Version)
	healthy := true
	checker.AddCheck("store", func(context.Context) error {
		if healthy {
			return nil
		}
		return shared.StorageUnavailable("store", "Ping", assert.AnError)
	})
	s := newTestServer(t, DefaultConfig(), func(d *Dependencies) {
		d.HealthChecker = checker
	})

	rec, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec, _ = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	s := newTestServer(t, cfg, nil)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/progress", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, s, http.MethodGet, "/api/v1/progress", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "rate_limit_exceeded", resp.Error.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://pyshark.example"}
	s := newTestServer(t, cfg, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/xp", nil)
	req.Header.Set("Origin", "https://pyshark.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://pyshark.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)
	s.engine.GET("/boom", func(*gin.Context) { panic("boom") })

	rec, resp := do(t, s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "internal_error", resp.Error.Code)
}

func TestServer_Lessons(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/lessons/b1/complete", `{"score":100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	type lesson struct {
		ID        string `json:"id"`
		Track     string `json:"track"`
		XP        int    `json:"xp"`
		Completed bool   `json:"completed"`
		Unlocked  bool   `json:"unlocked"`
		Previous  string `json:"previous"`
		Next      string `json:"next"`
	}

	rec, resp := do(t, s, http.MethodGet, "/api/v1/lessons?track=beginner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var lessons []lesson
	require.NoError(t, json.Unmarshal(resp.Data, &lessons))
	require.Len(t, lessons, 12)

	assert.Equal(t, lesson{ID: "b1", Track: "beginner", XP: 50, Completed: true, Unlocked: true, Next: "b2"}, lessons[0])
	assert.Equal(t, lesson{ID: "b2", Track: "beginner", XP: 75, Unlocked: true, Previous: "b1", Next: "b3"}, lessons[1])
	assert.False(t, lessons[2].Unlocked)
	assert.Equal(t, "i1", lessons[11].Next, "the last beginner lesson leads into the next track")

	rec, resp = do(t, s, http.MethodGet, "/api/v1/lessons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &lessons))
	assert.Len(t, lessons, curriculum.Default().TotalLessonCount())
	assert.Empty(t, lessons[len(lessons)-1].Next)

	rec, resp = do(t, s, http.MethodGet, "/api/v1/lessons?track=expert", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_argument", resp.Error.Code)
}
