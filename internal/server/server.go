package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agenthands/contactsync/internal/core/cluster"
	"github.com/agenthands/contactsync/internal/core/lifecycle"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/logging"
	"github.com/agenthands/contactsync/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the review workflow over HTTP.
type Server struct {
	Lifecycle *lifecycle.Manager
	Sessions  store.SessionStore
	Registry  *prometheus.Registry
	Logger    zerolog.Logger
}

func NewServer(lc *lifecycle.Manager, sessions store.SessionStore, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	return &Server{
		Lifecycle: lc,
		Sessions:  sessions,
		Registry:  registry,
		Logger:    logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.Health)
	if s.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/candidates", s.ListCandidates)
	r.GET("/candidates/:id", s.GetCandidate)
	r.GET("/candidates/:id/proposal", s.GetProposal)
	r.POST("/candidates/:id/approve", s.Approve)
	r.POST("/candidates/:id/reject", s.Reject)
	r.POST("/candidates/:id/flag", s.Flag)
	r.GET("/stats", s.Stats)
	r.GET("/clusters", s.Clusters)

	r.GET("/sessions", s.ListSessions)
	r.GET("/sessions/:id", s.GetSession)

	return r
}

// requestLogger puts a request-scoped logger on the request context.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := s.Logger.With().Str("method", c.Request.Method).Str("path", c.FullPath()).Logger()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), logger))

		c.Next()

		logger.Debug().
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrExternalWrite):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error().Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.NewValidationError(name, v, "must be an integer")
	}
	return n, nil
}

func (s *Server) ListCandidates(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.writeError(c, err)
		return
	}

	items, total, err := s.Lifecycle.List(c.Request.Context(), model.CandidateFilter{
		Status:     model.Status(c.Query("status")),
		Confidence: model.Confidence(c.Query("confidence")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": items, "total": total})
}

func (s *Server) GetCandidate(c *gin.Context) {
	item, err := s.Lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) GetProposal(c *gin.Context) {
	updates, err := s.Lifecycle.ProposeUpdates(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}

type ApproveRequest struct {
	// Updates overrides the proposal. Omit it to apply the proposal; send {}
	// to approve without writing to the CRM.
	Updates map[string]any `json:"updates"`
	Notes   string         `json:"notes"`
}

type DecisionRequest struct {
	Reason string `json:"reason"`
}

// bindOptional accepts an empty body as the zero request.
func bindOptional(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil {
		return model.NewValidationError("body", nil, "invalid JSON: "+err.Error())
	}
	return nil
}

func (s *Server) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := bindOptional(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	item, err := s.Lifecycle.Approve(c.Request.Context(), c.Param("id"), req.Updates, req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) Reject(c *gin.Context) {
	var req DecisionRequest
	if err := bindOptional(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	item, err := s.Lifecycle.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) Flag(c *gin.Context) {
	var req DecisionRequest
	if err := bindOptional(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	item, err := s.Lifecycle.Flag(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) Stats(c *gin.Context) {
	stats, err := s.Lifecycle.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) Clusters(c *gin.Context) {
	groups, err := s.Lifecycle.Clusters(c.Request.Context(), model.Status(c.Query("status")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if groups == nil {
		groups = []cluster.Group{}
	}
	c.JSON(http.StatusOK, gin.H{"clusters": groups})
}

func (s *Server) ListSessions(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	sessions, err := s.Sessions.ListSessions(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) GetSession(c *gin.Context) {
	session, err := s.Sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
