package api

import (
	"net/http"
	"time"

	"newsdesk/editorial"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerReviewRoutes(g *gin.RouterGroup) {
	g.GET("/review/queue", s.handleQueue)

	a := g.Group("/articles/:id")
	a.GET("", s.handleArticle)
	a.POST("/approve", s.action(editorial.ActionApprove))
	a.POST("/request-revision", s.action(editorial.ActionRequestRevision))
	a.POST("/reject", s.action(editorial.ActionReject))
	a.POST("/escalate", s.action(editorial.ActionEscalate))
	a.POST("/pull-back", s.action(editorial.ActionPullBack))
	a.POST("/assign", s.action(editorial.ActionAssign))
	a.POST("/replies", s.action(editorial.ActionRequestReply))
	a.POST("/replies/record", s.action(editorial.ActionRecordReply))
	a.POST("/replies/bypass", s.action(editorial.ActionBypassReply))
	a.GET("/replies/opened", s.handleReplyOpened)
}

// ActionRequest is the body of every article action. Fields an action does not use are ignored.
type ActionRequest struct {
	Actor     string                  `json:"actor"`
	Version   int                     `json:"version"`
	Notes     string                  `json:"notes"`
	PublishAt *time.Time              `json:"publish_at"`
	Editor    string                  `json:"editor"`
	Reply     *editorial.ReplyRequest `json:"reply"`
	Entity    string                  `json:"entity"`
	Text      string                  `json:"text"`
}

func (s *Server) action(act editorial.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			s.respondError(c, err)
			return
		}
		var req ActionRequest
		if !s.bind(c, &req) {
			return
		}
		a, err := s.Review.Dispatch(c.Request.Context(), editorial.Command{
			Action:    act,
			ArticleID: id,
			Version:   req.Version,
			Actor:     req.Actor,
			Notes:     req.Notes,
			PublishAt: req.PublishAt,
			Editor:    req.Editor,
			Reply:     req.Reply,
			Entity:    req.Entity,
			Text:      req.Text,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"article": a})
	}
}

// GET /api/review/queue
func (s *Server) handleQueue(c *gin.Context) {
	n, err := limit(c, 50)
	if err != nil {
		s.respondError(c, err)
		return
	}
	items, err := s.Review.Queue(c.Request.Context(), n)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GET /api/articles/:id
func (s *Server) handleArticle(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	d, err := s.Review.Detail(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/articles/:id/replies/opened?entity=... records that a reply request was read.
func (s *Server) handleReplyOpened(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.Review.MarkReplyOpened(c.Request.Context(), id, c.Query("entity")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
