package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/service"
)

type playRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
	Card  *int   `json:"card" binding:"required"`
}

type positionsRequest struct {
	Saint int `json:"saint"`
	Devil int `json:"devil"`
}

type eligibilityResponse struct {
	Allowed           bool  `json:"allowed"`
	RetryAfterSeconds int64 `json:"retryAfterSeconds"`
}

type errorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int64  `json:"retryAfterSeconds,omitempty"`
}

// Handler serves the lottery HTTP API.
type Handler struct {
	lottery *service.LotteryService
	admin   *service.AdminService
	health  func(ctx context.Context) error
}

// NewHandler creates a new Handler. health may be nil.
func NewHandler(ls *service.LotteryService, as *service.AdminService, health func(ctx context.Context) error) *Handler {
	return &Handler{lottery: ls, admin: as, health: health}
}

// Play handles POST /api/v1/play.
func (h *Handler) Play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "name, phone and card are required"})
		return
	}

	outcome, err := h.lottery.Play(c.Request.Context(), service.PlayRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Card:  *req.Card,
		IP:    c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Play-ID", outcome.PlayID)
	c.JSON(http.StatusOK, outcome)
}

// Eligibility handles GET /api/v1/eligibility.
func (h *Handler) Eligibility(c *gin.Context) {
	elig, err := h.lottery.CheckEligibility(c.Request.Context(), c.Query("phone"), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibilityResponse{
		Allowed:           elig.Allowed,
		RetryAfterSeconds: ceilSeconds(elig.RetryAfter),
	})
}

// PublicStats handles GET /api/v1/stats. Winner positions stay hidden.
func (h *Handler) PublicStats(c *gin.Context) {
	stats, err := h.lottery.TodayStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats.Public())
}

// AdminStats handles GET /api/v1/admin/stats.
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SetPositions handles POST /api/v1/admin/positions.
func (h *Handler) SetPositions(c *gin.Context) {
	var req positionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "saint and devil must be integers"})
		return
	}

	stats, err := h.admin.SetPositions(c.Request.Context(), req.Saint, req.Devil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RandomPositions handles POST /api/v1/admin/positions/random.
func (h *Handler) RandomPositions(c *gin.Context) {
	stats, err := h.admin.GenerateRandomPair(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Reset handles POST /api/v1/admin/reset.
func (h *Handler) Reset(c *gin.Context) {
	if err := h.admin.ResetAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var played *lottery.PlayedRecentlyError
	switch {
	case errors.As(err, &played):
		secs := ceilSeconds(played.RetryAfter)
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
		c.JSON(http.StatusConflict, errorResponse{
			Error:             lottery.ErrAlreadyPlayedToday.Error(),
			RetryAfterSeconds: secs,
		})
	case errors.Is(err, lottery.ErrInvalidConfiguration):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, lottery.ErrInvalidPhone),
		errors.Is(err, lottery.ErrInvalidName),
		errors.Is(err, lottery.ErrInvalidCard):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "request timed out"})
	default:
		log.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
