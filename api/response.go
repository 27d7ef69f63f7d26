package api

import (
	"net/http"

	"newsdesk/apperr"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// respondError writes err in the error envelope with the status its kind maps to.
// Untyped errors are logged and hidden behind a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: apperr.CodeOf(err)}})
}

// bind decodes the JSON body into v and reports a bad request itself when that fails.
func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.respondError(c, apperr.Invalid("invalid request body: %v", err))
		return false
	}
	return true
}
