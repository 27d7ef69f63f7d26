// Package api is the HTTP surface editors use to work the review queue, decide
// post-publication flags and drive pipeline stages by hand.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"newsdesk/apperr"
	"newsdesk/editorial"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/monitor"
	stypes "newsdesk/shared/types"
	"newsdesk/store"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Reviewer is the editorial state machine.
type Reviewer interface {
	Dispatch(ctx context.Context, cmd editorial.Command) (*types.Article, error)
	Detail(ctx context.Context, id uuid.UUID) (*editorial.Detail, error)
	Queue(ctx context.Context, limit int) ([]store.ReviewItem, error)
	MarkReplyOpened(ctx context.Context, articleID uuid.UUID, entity string) error
}

// FlagDesk decides post-publication flags.
type FlagDesk interface {
	Flags(ctx context.Context, status types.FlagStatus, limit int) ([]types.MonitorFlag, error)
	ApproveFlag(ctx context.Context, flagID uuid.UUID, actor string, in monitor.CorrectionInput) (*types.Correction, error)
	DismissFlag(ctx context.Context, flagID uuid.UUID, actor, reason string) (*types.MonitorFlag, error)
}

// TopicDesk kills topics before they reach drafting.
type TopicDesk interface {
	RejectTopic(ctx context.Context, id uuid.UUID, actor, reason string) error
}

type Credibility interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
}

// Stages runs pipeline stages on demand.
type Stages interface {
	Trigger(name string) error
	Status() stypes.StatusResponse
}

type Submitter interface {
	Submit(c types.RawCandidate)
	Len() int
}

// Counter supplies the queue sizes shown on the status page.
type Counter interface {
	CountOpenReviews(ctx context.Context) (int64, error)
	CountPendingFlags(ctx context.Context) (int64, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Review      Reviewer
	Flags       FlagDesk
	Topics      TopicDesk
	Credibility Credibility
	Stages      Stages
	Manual      Submitter
	Counts      Counter
	Log         *logger.Logger
}

// Server serves the API over HTTP.
type Server struct {
	Deps
	log        *logger.Logger
	httpServer *http.Server
}

// NewServer builds the router and an http.Server listening on port.
func NewServer(d Deps, port string) *Server {
	s := &Server{Deps: d, log: d.Log.With("component", "api")}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router constructs a Gin engine with registered routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	g := r.Group("/api")
	g.GET("/health", handleHealth)
	s.registerPipelineRoutes(g)
	s.registerReviewRoutes(g)
	s.registerFlagRoutes(g)
	return r
}

// Start serves in the background. A listener failure other than shutdown is logged.
func (s *Server) Start() {
	s.log.Info("starting api server", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request", "method", c.Request.Method, "path", c.FullPath(),
			"status", c.Writer.Status(), "elapsed", time.Since(start))
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Invalid("invalid id %q", c.Param("id"))
	}
	return id, nil
}

// limit reads the limit query parameter, capped at 200.
func limit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Invalid("limit must be a positive integer")
	}
	return min(n, 200), nil
}
