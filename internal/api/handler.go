package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/discovery"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/sse"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/store"
)

// UserHeader carries the authenticated user ID set by the upstream gateway.
const UserHeader = "X-User-ID"

const anonymousUser = "anonymous"

// usageWindow is the rolling period the monthly limit counts runs over.
const usageWindow = 30 * 24 * time.Hour

// Pipeline runs discovery in both modes.
type Pipeline interface {
	Run(ctx context.Context, profile models.Profile, opts discovery.Options) (*discovery.Result, error)
	sse.Streamer
}

// RunStore reads persisted runs.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)
	CountRunsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Config tunes a Handler.
type Config struct {
	MonthlyLimit   int
	RequestTimeout time.Duration
	ToolEvents     bool
	Heartbeat      time.Duration
}

// Handler serves the discovery HTTP API.
type Handler struct {
	pipeline Pipeline
	runs     RunStore
	stream   *sse.Runner
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(p Pipeline, runs RunStore, cfg Config, logger *zap.Logger) *Handler {
	logger = logging.OrNop(logger)
	return &Handler{
		pipeline: p,
		runs:     runs,
		stream:   sse.NewRunner(p, cfg.Heartbeat, logger),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Register mounts the discovery routes.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/discovery")
	g.POST("", h.Generate)
	g.GET("/runs/:id", h.GetRun)
}

// Generate runs discovery for the profile in the request body. With
// stream=true the response is an event stream.
func (h *Handler) Generate(c *gin.Context) {
	stream, err := boolQuery(c, "stream")
	if err != nil {
		h.fail(c, discovery.NewError(discovery.KindInvalidInput, err.Error(), err))
		return
	}
	bypass, err := boolQuery(c, "cache_bypass")
	if err != nil {
		h.fail(c, discovery.NewError(discovery.KindInvalidInput, err.Error(), err))
		return
	}

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.fail(c, discovery.NewError(discovery.KindInvalidInput, "Request body must be a JSON object with the profile fields.", err))
		return
	}
	profile, err := models.ParseProfile(raw)
	if err != nil {
		h.fail(c, discovery.NewError(discovery.KindInvalidInput, err.Error(), err))
		return
	}

	user := userID(c)
	if err := h.checkUsage(c.Request.Context(), user); err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	opts := discovery.Options{
		RunID:       uuid.NewString(),
		UserID:      user,
		CacheBypass: bypass,
		ToolEvents:  h.cfg.ToolEvents,
	}

	if stream {
		sse.SetHeaders(c.Writer.Header())
		c.Status(http.StatusOK)
		if err := h.stream.Run(ctx, sse.NewEmitter(c.Writer), profile, opts); err != nil {
			h.report(c, err)
		}
		return
	}

	res, err := h.pipeline.Run(ctx, profile, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"run_id":              res.RunID,
		"inputs":              res.Inputs,
		"outputs":             res.Outputs,
		"performance_metrics": res.Metrics,
	})
}

// GetRun returns one persisted run. Runs of other users are reported as
// missing.
func (h *Handler) GetRun(c *gin.Context) {
	rec, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && !ownedBy(rec, c)) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Run not found", "error_type": "not-found"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	var inputs map[string]any
	var outputs map[string]string
	_ = json.Unmarshal([]byte(rec.Inputs), &inputs)
	_ = json.Unmarshal([]byte(rec.Outputs), &outputs)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run": gin.H{
			"run_id":     rec.RunID,
			"user_id":    rec.UserID,
			"inputs":     inputs,
			"outputs":    outputs,
			"created_at": rec.CreatedAt,
		},
	})
}

func (h *Handler) checkUsage(ctx context.Context, user string) error {
	if h.cfg.MonthlyLimit <= 0 || h.runs == nil {
		return nil
	}
	n, err := h.runs.CountRunsSince(ctx, user, h.now().Add(-usageWindow))
	if err != nil {
		// Counting is best-effort; an unreadable counter does not block users.
		h.logger.Warn("Usage count failed", zap.String("user_id", user), zap.Error(err))
		return nil
	}
	if n >= h.cfg.MonthlyLimit {
		return discovery.NewError(discovery.KindUsageLimit,
			fmt.Sprintf("You have used all %d discovery runs for this month. Upgrade your plan to continue.", h.cfg.MonthlyLimit), nil)
	}
	return nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind discovery.Kind) int {
	switch kind {
	case discovery.KindInvalidInput:
		return http.StatusBadRequest
	case discovery.KindUsageLimit:
		return http.StatusForbidden
	case discovery.KindNoResults:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	kind := discovery.KindOf(err)
	body := gin.H{
		"success":    false,
		"error":      discovery.UserMessage(err),
		"error_type": string(kind),
	}
	switch kind {
	case discovery.KindTimeout:
		body["retry"] = true
	case discovery.KindUsageLimit:
		body["upgrade_required"] = true
	}
	h.report(c, err)
	c.JSON(StatusFor(kind), body)
}

// report logs a failure and sends internal ones to Sentry. Failures caused
// by the client going away are not internal.
func (h *Handler) report(c *gin.Context, err error) {
	kind := discovery.KindOf(err)
	fields := []zap.Field{zap.Error(err), zap.String("error_type", string(kind)), zap.String("path", c.FullPath())}
	if clientGone(c, err) {
		h.logger.Info("Client disconnected before discovery finished", fields...)
		return
	}
	if kind != discovery.KindInternal {
		h.logger.Info("Discovery request failed", fields...)
		return
	}
	h.logger.Error("Discovery request failed", fields...)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
}

func clientGone(c *gin.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(c.Request.Context().Err(), context.Canceled)
}

func boolQuery(c *gin.Context, name string) (bool, error) {
	v := c.Query(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("query parameter %s must be true or false", name)
	}
	return b, nil
}

func userID(c *gin.Context) string {
	if u := c.GetHeader(UserHeader); u != "" {
		return u
	}
	return anonymousUser
}

// ownedBy reports whether the caller may read rec. Callers without a user
// header only see anonymous runs.
func ownedBy(rec *models.RunRecord, c *gin.Context) bool {
	return userID(c) == rec.UserID
}
