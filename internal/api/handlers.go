package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nutrichat/internal/advice"
	"nutrichat/internal/auth"
	"nutrichat/internal/history"
	"nutrichat/internal/logging"
	"nutrichat/internal/metrics"
	"nutrichat/internal/models"
	"nutrichat/internal/worker"
)

// AdviceRunner queues advice generation for a user.
type AdviceRunner interface {
	Submit(ctx context.Context, userID int64, prompt string) (string, error)
	CancelUser(userID int64)
}

// Options tunes the handler. Zero values fall back to defaults.
type Options struct {
	RateLimit     float64
	RateBurst     int
	AdviceTimeout time.Duration
}

// Handler wires HTTP routes to the auth service, the history store and the
// advice dispatcher.
type Handler struct {
	auth     *auth.Service
	history  history.Store
	advice   AdviceRunner
	metrics  *metrics.Metrics
	limiters *limiterPool
	timeout  time.Duration
	ready    func(ctx context.Context) error
}

// NewHandler constructs a Handler instance.
func NewHandler(authService *auth.Service, store history.Store, runner AdviceRunner, m *metrics.Metrics, opts Options) *Handler {
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		auth:     authService,
		history:  store,
		advice:   runner,
		metrics:  m,
		limiters: newLimiterPool(opts.RateLimit, opts.RateBurst),
		timeout:  opts.AdviceTimeout,
	}
}

// SetReadiness installs the probe behind /healthz.
func (h *Handler) SetReadiness(probe func(ctx context.Context) error) {
	h.ready = probe
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.loginUser)

	authed := api.Group("")
	authed.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	authed.POST("/auth/logout", h.logoutUser)
	authed.GET("/chat/history", h.getHistory)
	authed.POST("/chat/save-message", h.saveMessage)
	authed.POST("/advice", h.generateAdvice)
}

// RequestLogger writes one slog line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), logger))
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) identity(c *gin.Context) (models.Identity, bool) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return models.Identity{}, false
	}
	return identity, true
}

// User create&login interface
func (h *Handler) registerUser(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.RegisterUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) loginUser(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()
	user, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("issue token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.auth.SetSessionCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, auth.LoginResponse{Token: authToken, User: *user})
}

func (h *Handler) logoutUser(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	h.advice.CancelUser(identity.UserID)
	h.limiters.forget(identity.UserID)
	if err := h.auth.RevokeToken(c.Request.Context(), identity.Token); err != nil {
		logging.FromContext(c.Request.Context()).Warn("revoke token", "error", err)
	}
	h.auth.ClearSessionCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) getHistory(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	turns, err := h.history.ListTurns(ctx, identity)
	h.metrics.HistoryLoads.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		logging.FromContext(ctx).Error("list turns", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
		return
	}
	sessions := history.Group(turns)
	if sessions == nil {
		sessions = make([]models.TurnSession, 0)
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) saveMessage(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	var req models.TurnInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	ctx := c.Request.Context()
	err := h.history.SaveTurn(ctx, identity, req)
	h.metrics.HistorySaves.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		logging.FromContext(ctx).Error("save turn", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save message failed"})
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) generateAdvice(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	if !h.limiters.Allow(identity.UserID) {
		h.metrics.RateLimited.Inc()
		c.JSON(http.StatusTooManyRequests, advice.Response{Error: "too many requests, slow down"})
		return
	}
	var req advice.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, advice.Response{Error: "invalid request body"})
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, advice.Response{Error: "prompt is required"})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := h.advice.Submit(ctx, identity.UserID, prompt)
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		h.metrics.AdviceRequests.WithLabelValues(metrics.Busy).Inc()
		c.JSON(http.StatusTooManyRequests, advice.Response{Error: "server is busy, please retry"})
		return
	case err != nil:
		h.metrics.AdviceRequests.WithLabelValues(metrics.Error).Inc()
		logging.FromContext(ctx).Warn("generate advice", "error", err)
		c.JSON(http.StatusBadGateway, advice.Response{Error: err.Error()})
		return
	}
	h.metrics.AdviceLatency.Observe(time.Since(start).Seconds())
	h.metrics.AdviceRequests.WithLabelValues(metrics.OK).Inc()
	c.JSON(http.StatusOK, advice.Response{Text: text})
}
