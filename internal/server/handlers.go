package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/metrics"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/repair"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/raphaelgruber/rafeeq/internal/speech"
)

// maxAudioBytes bounds an uploaded voice recap.
const maxAudioBytes = 25 << 20

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.deps.Version})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.deps.Metrics == nil {
		c.JSON(http.StatusOK, metrics.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Metrics.Snapshot())
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.deps.Journal.Analyze(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.deps.Journal.Feedback(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Journal.Providers())
}

func (s *Server) handleInspiration(c *gin.Context) {
	msg, err := s.deps.Journal.Inspiration(c.Request.Context(), c.Param("user"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) handleGetProfile(c *gin.Context) {
	p, err := s.deps.Journal.Profile(c.Request.Context(), c.Param("user"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type settingsRequest struct {
	GradeLevel string                `json:"gradeLevel"`
	Schedule   models.WeeklySchedule `json:"schedule"`
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.deps.Journal.UpdateSettings(c.Request.Context(), c.Param("user"), req.GradeLevel, req.Schedule)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleListMemory(c *gin.Context) {
	entries, err := s.deps.Journal.ListMemory(c.Request.Context(), c.Param("user"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) handleResetMemory(c *gin.Context) {
	if err := s.deps.Journal.ResetMemory(c.Request.Context(), c.Param("user")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSearchMemory(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	minScore := knowledge.StrictThreshold
	if v := c.Query("min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min must be a number between 0 and 1"})
			return
		}
		minScore = f
	}

	hit, ok, err := s.deps.Journal.SearchMemory(c.Request.Context(), c.Param("user"), query, minScore)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stored analysis matches"})
		return
	}
	c.JSON(http.StatusOK, hit)
}

func (s *Server) handleSyncMemory(c *gin.Context) {
	if err := s.deps.Journal.SyncMemory(c.Request.Context(), c.Param("user")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}

// handleTranscribe accepts a multipart "audio" file. With a userId form
// value the recap also earns voice_recap points.
func (s *Server) handleTranscribe(c *gin.Context) {
	if s.deps.Speech == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "speech is not configured"})
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		badRequest(c, err)
		return
	}
	if fh.Size > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(io.LimitReader(f, maxAudioBytes))
	if err != nil {
		badRequest(c, err)
		return
	}

	text, err := s.deps.Speech.Transcribe(c.Request.Context(), audio, fh.Header.Get("Content-Type"))
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{"text": text}
	if user := c.PostForm("userId"); user != "" && text != "" {
		res, err := s.deps.Journal.Feedback(c.Request.Context(), service.FeedbackRequest{
			UserID:  user,
			Type:    models.InteractionVoiceRecap,
			Summary: repair.Truncate(text, 120),
			Tags:    []string{"voice"},
		})
		if err != nil {
			s.logger.Warn("voice recap not recorded", "user", user, "error", err)
		} else {
			resp["engagement"] = res
		}
	}
	c.JSON(http.StatusOK, resp)
}

type synthesizeRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleSynthesize(c *gin.Context) {
	if s.deps.Speech == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "speech is not configured"})
		return
	}
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	audio, err := s.deps.Speech.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUserRequired),
		errors.Is(err, service.ErrEmptyReflection),
		errors.Is(err, engagement.ErrUnknownType),
		errors.Is(err, speech.ErrEmptyAudio),
		errors.Is(err, speech.ErrEmptyText):
		status = http.StatusBadRequest
	case errors.Is(err, knowledge.ErrNoRemote):
		status = http.StatusConflict
	default:
		s.logger.Error("request error", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
