package api

import (
	"net/http"

	"newsdesk/monitor"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerFlagRoutes(g *gin.RouterGroup) {
	g.GET("/flags", s.handleListFlags)
	g.POST("/flags/:id/approve", s.handleApproveFlag)
	g.POST("/flags/:id/dismiss", s.handleDismissFlag)
	g.GET("/sources/credibility", s.handleCredibility)
}

type ApproveFlagRequest struct {
	Actor string `json:"actor"`
	monitor.CorrectionInput
}

type DismissFlagRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// GET /api/flags?status=pending
func (s *Server) handleListFlags(c *gin.Context) {
	status := types.FlagStatus(c.DefaultQuery("status", string(types.FlagPending)))
	if status == "all" {
		status = ""
	}
	n, err := limit(c, 50)
	if err != nil {
		s.respondError(c, err)
		return
	}
	flags, err := s.Flags.Flags(c.Request.Context(), status, n)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags, "count": len(flags)})
}

// POST /api/flags/:id/approve appends a correction to the flagged article.
func (s *Server) handleApproveFlag(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req ApproveFlagRequest
	if !s.bind(c, &req) {
		return
	}
	corr, err := s.Flags.ApproveFlag(c.Request.Context(), id, req.Actor, req.CorrectionInput)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"correction": corr})
}

// POST /api/flags/:id/dismiss
func (s *Server) handleDismissFlag(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req DismissFlagRequest
	if !s.bind(c, &req) {
		return
	}
	f, err := s.Flags.DismissFlag(c.Request.Context(), id, req.Actor, req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flag": f})
}

// GET /api/sources/credibility lists decayed reliability scores, best first.
func (s *Server) handleCredibility(c *gin.Context) {
	snap, err := s.Credibility.Snapshot(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	scores := snap.Scores()
	c.JSON(http.StatusOK, gin.H{"sources": scores, "count": len(scores)})
}
