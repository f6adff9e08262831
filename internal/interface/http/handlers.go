package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/backup"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

const (
	defaultNotificationsLimit = 20
	maxNotificationsLimit     = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(c.Request.Context())
		if !status.Healthy {
			writeJSON(c, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(c, http.StatusOK, status)
		return
	}

	writeJSON(c, http.StatusOK, gin.H{
		"healthy": true,
		"uptime":  s.Uptime().String(),
		"version": Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleProgress returns the current progress snapshot.
func (s *Server) handleProgress(c *gin.Context) {
	snap, err := s.deps.Ledger.Snapshot(c.Request.Context())
	if err != nil {
		s.writeLedgerError(c, "Snapshot", err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

// handleAchievements lists every achievement with its unlock flag.
func (s *Server) handleAchievements(c *gin.Context) {
	views, err := s.deps.Ledger.Achievements(c.Request.Context())
	if err != nil {
		s.writeLedgerError(c, "Achievements", err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, views, &ResponseMeta{TotalCount: len(views)})
}

// handleLessons lists the curriculum with completed and unlocked flags.
// An optional ?track= narrows the list to one track.
func (s *Server) handleLessons(c *gin.Context) {
	track := curriculum.Track(c.Query("track"))
	if track != "" && !track.IsValid() {
		writeError(c, http.StatusBadRequest, "invalid_argument", "Unknown track: "+string(track), nil)
		return
	}

	snap, err := s.deps.Ledger.Snapshot(c.Request.Context())
	if err != nil {
		s.writeLedgerError(c, "Lessons", err)
		return
	}
	lessons := s.deps.Lessons.Statuses(track, snap.Record.CompletedLessons)
	writeJSONWithMeta(c, http.StatusOK, lessons, &ResponseMeta{TotalCount: len(lessons)})
}

// handleNotifications returns recent events, newest first.
func (s *Server) handleNotifications(c *gin.Context) {
	if s.deps.Feed == nil {
		writeJSON(c, http.StatusOK, []shared.EventEnvelope{})
		return
	}

	limit := queryInt(c, "limit", defaultNotificationsLimit)
	if limit <= 0 || limit > maxNotificationsLimit {
		limit = defaultNotificationsLimit
	}
	items := s.deps.Feed.Recent(limit)
	if items == nil {
		items = []shared.EventEnvelope{}
	}
	writeJSONWithMeta(c, http.StatusOK, items, &ResponseMeta{TotalCount: len(items)})
}

// handleNextLesson returns the first lesson that is not yet completed.
func (s *Server) handleNextLesson(c *gin.Context) {
	id, ok, err := s.deps.Ledger.NextLesson(c.Request.Context())
	if err != nil {
		s.writeLedgerError(c, "NextLesson", err)
		return
	}
	if !ok {
		writeJSON(c, http.StatusOK, gin.H{"lessonId": nil, "allCompleted": true})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"lessonId": id, "allCompleted": false})
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type completeLessonRequest struct {
	Score *int `json:"score" binding:"required"`
}

type answerRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

type amountRequest struct {
	Amount *int `json:"amount" binding:"required"`
}

type minutesRequest struct {
	Minutes *int `json:"minutes" binding:"required"`
}

type targetRequest struct {
	Target *int `json:"target" binding:"required"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// handleStartLesson records the lesson as in progress.
func (s *Server) handleStartLesson(c *gin.Context) {
	res, err := s.deps.Ledger.StartLesson(c.Request.Context(), c.Param("id"))
	s.writeResult(c, "StartLesson", res, err)
}

// handleCompleteLesson awards lesson XP for {"score": 0..100}.
func (s *Server) handleCompleteLesson(c *gin.Context) {
	var req completeLessonRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.Ledger.CompleteLesson(c.Request.Context(), c.Param("id"), *req.Score)
	s.writeResult(c, "CompleteLesson", res, err)
}

func (s *Server) handleAnswerQuestion(c *gin.Context) {
	var req answerRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.Ledger.AnswerQuestion(c.Request.Context(), *req.Correct)
	s.writeResult(c, "AnswerQuestion", res, err)
}

func (s *Server) handleAddXP(c *gin.Context) {
	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.Ledger.AddXP(c.Request.Context(), *req.Amount)
	s.writeResult(c, "AddXP", res, err)
}

func (s *Server) handleCodeRun(c *gin.Context) {
	res, err := s.deps.Ledger.RecordCodeRun(c.Request.Context())
	s.writeResult(c, "RecordCodeRun", res, err)
}

func (s *Server) handleTimeSpent(c *gin.Context) {
	var req minutesRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.Ledger.AddTimeSpent(c.Request.Context(), *req.Minutes)
	s.writeResult(c, "AddTimeSpent", res, err)
}

func (s *Server) handleDailyGoal(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.Ledger.SetDailyGoalTarget(c.Request.Context(), *req.Target)
	s.writeResult(c, "SetDailyGoalTarget", res, err)
}

func (s *Server) handleMascotClick(c *gin.Context) {
	res, err := s.deps.Ledger.RegisterMascotClick(c.Request.Context())
	s.writeResult(c, "RegisterMascotClick", res, err)
}

// handleReset wipes progress; the body must carry {"confirm": true}.
func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	res, err := s.deps.Ledger.Reset(c.Request.Context(), req.Confirm)
	s.writeResult(c, "Reset", res, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT / IMPORT
// ══════════════════════════════════════════════════════════════════════════════

// handleExport downloads the record as a checksummed backup document.
func (s *Server) handleExport(c *gin.Context) {
	record, err := s.deps.Ledger.Export(c.Request.Context())
	if err != nil {
		s.writeLedgerError(c, "Export", err)
		return
	}

	now := s.deps.Now()
	data, err := backup.Marshal(record, now)
	if err != nil {
		s.writeLedgerError(c, "Export", err)
		return
	}

	filename := "pyshark-progress-" + now.UTC().Format("2006-01-02") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// handleImport replaces the record with an uploaded backup document or bare record.
func (s *Server) handleImport(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Backup document is too large", nil)
			return
		}
		writeError(c, http.StatusBadRequest, "invalid_request", "Could not read request body", err)
		return
	}

	record, err := backup.Unmarshal(body)
	if err != nil {
		s.writeLedgerError(c, "Import", err)
		return
	}

	res, err := s.deps.Ledger.Import(c.Request.Context(), record)
	s.writeResult(c, "Import", res, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// mutationResponse is the payload of every successful mutation.
type mutationResponse struct {
	Record         progress.Record        `json:"record"`
	Events         []shared.EventEnvelope `json:"events"`
	Persisted      bool                   `json:"persisted"`
	NewlyCompleted *bool                  `json:"newlyCompleted,omitempty"`
	MascotClicks   *int                   `json:"mascotClicks,omitempty"`
}

func (s *Server) writeResult(c *gin.Context, op string, res ledger.Result, err error) {
	if err != nil {
		s.writeLedgerError(c, op, err)
		return
	}

	events := make([]shared.EventEnvelope, 0, len(res.Events))
	for _, e := range res.Events {
		env, encErr := shared.Envelope(e)
		if encErr != nil {
			s.logger.Warn("event not encodable", logger.EventType(string(e.EventType())), zap.Error(encErr))
			continue
		}
		events = append(events, env)
	}

	body := mutationResponse{
		Record:    res.Record,
		Events:    events,
		Persisted: res.Persisted,
	}
	switch op {
	case "CompleteLesson":
		body.NewlyCompleted = &res.NewlyCompleted
	case "RegisterMascotClick":
		body.MascotClicks = &res.MascotClicks
	}
	writeJSON(c, http.StatusOK, body)
}

// writeLedgerError maps domain errors onto HTTP statuses.
func (s *Server) writeLedgerError(c *gin.Context, op string, err error) {
	switch {
	case shared.IsInvalidArgument(err):
		writeError(c, http.StatusBadRequest, "invalid_argument", messageOf(err), nil)
	case shared.IsCorruptState(err):
		writeError(c, http.StatusUnprocessableEntity, "corrupt_state", messageOf(err), nil)
	case shared.IsStorageUnavailable(err):
		s.logger.Error("ledger operation failed", logger.Operation(op), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "storage_unavailable", "Progress storage is unavailable", nil)
	default:
		s.logger.Error("ledger operation failed", logger.Operation(op), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

// messageOf returns the human-readable part of a domain error.
func messageOf(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// bindJSON decodes the body or writes a 400 and returns false.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		msg := "Invalid request body"
		if strings.Contains(err.Error(), "required") {
			msg = "Missing required field"
		}
		writeError(c, http.StatusBadRequest, "invalid_request", msg, err)
		return false
	}
	return true
}
