package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/pkg/guard"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// IngestRequest is the body of POST /api/v1/ingest. IP falls back to the
// caller's address and Timestamp to the server clock.
type IngestRequest struct {
	UserID    string                `json:"user_id" binding:"required,max=256"`
	IP        string                `json:"ip" binding:"omitempty,ip"`
	DeviceID  string                `json:"device_id" binding:"max=512"`
	Browser   string                `json:"browser" binding:"max=512"`
	Timestamp *time.Time            `json:"timestamp"`
	Success   *bool                 `json:"success"`
	Features  *models.FeatureVector `json:"features"`
}

type ingestResponse struct {
	Status      string                `json:"status"`
	Event       models.LoginEvent     `json:"event"`
	Evaluation  models.RiskAssessment `json:"evaluation"`
	Explanation string                `json:"explanation"`
}

type lockResponse struct {
	UserID        string     `json:"user_id"`
	Locked        bool       `json:"locked"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
}

const maxListLimit = 10000

func (s *Server) handleIngest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := models.LoginEvent{
		UserID:   req.UserID,
		IP:       req.IP,
		DeviceID: req.DeviceID,
		Browser:  req.Browser,
		Success:  req.Success,
	}
	if event.IP == "" {
		event.IP = c.ClientIP()
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}

	out, err := s.guard.Process(c.Request.Context(), guard.Request{Event: event, Features: req.Features})
	if err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("ingest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, ingestResponse{
		Status:      "success",
		Event:       out.Event,
		Evaluation:  out.Assessment,
		Explanation: out.Explanation,
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	events, err := s.guard.Events(c.Request.Context(), limit)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list events failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleResults(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	results, err := s.guard.Results(c.Request.Context(), limit)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list results failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleLockStatus(c *gin.Context) {
	userID := c.Param("user_id")
	locked, expiry := s.guard.LockStatus(userID)

	resp := lockResponse{UserID: userID, Locked: locked}
	if locked {
		resp.LockExpiresAt = &expiry
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseLimit reads ?limit=; absent means all. It writes the 400 itself.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 0 and 10000"})
		return 0, false
	}
	return n, true
}
