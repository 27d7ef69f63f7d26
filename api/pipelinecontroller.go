package api

import (
	"net/http"
	"strings"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerPipelineRoutes(g *gin.RouterGroup) {
	g.GET("/status", s.handleStatus)
	g.POST("/stages/:stage/run", s.handleRunStage)
	g.POST("/candidates", s.handleSubmitCandidate)
	g.POST("/topics/:id/reject", s.handleRejectTopic)
}

type CandidateRequest struct {
	Title       string `json:"title" binding:"required"`
	URL         string `json:"url" binding:"required,url"`
	Description string `json:"description"`
	SourceName  string `json:"source_name"`
	Region      string `json:"region"`
	Category    string `json:"category"`
}

type RejectTopicRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// GET /api/status
func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	status := s.Stages.Status()
	reviews, err := s.Counts.CountOpenReviews(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	flags, err := s.Counts.CountPendingFlags(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	status.ReviewQueue = int(reviews)
	status.PendingFlags = int(flags)
	c.JSON(http.StatusOK, status)
}

// POST /api/stages/:stage/run starts a stage in the background.
func (s *Server) handleRunStage(c *gin.Context) {
	stage := c.Param("stage")
	if err := s.Stages.Trigger(stage); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "stage": stage})
}

// POST /api/candidates queues an editor-submitted candidate and kicks intake. A busy
// intake stage picks the candidate up on its next run.
func (s *Server) handleSubmitCandidate(c *gin.Context) {
	var req CandidateRequest
	if !s.bind(c, &req) {
		return
	}
	s.Manual.Submit(types.RawCandidate{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		URL:         req.URL,
		SourceName:  req.SourceName,
		Region:      req.Region,
		Category:    req.Category,
	})

	intake := "started"
	if err := s.Stages.Trigger(config.StageIntake); err != nil {
		if apperr.CodeOf(err) != apperr.CodeStageBusy {
			s.respondError(c, err)
			return
		}
		intake = "busy"
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": s.Manual.Len(), "intake": intake})
}

// POST /api/topics/:id/reject
func (s *Server) handleRejectTopic(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req RejectTopicRequest
	if !s.bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		s.respondError(c, apperr.Invalid("reason is required"))
		return
	}
	if err := s.Topics.RejectTopic(c.Request.Context(), id, req.Actor, req.Reason); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected", "topic_id": id})
}
