package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
)

// Success sends a JSON success response
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error sends a JSON error response carrying the request id
func Error(c *gin.Context, status int, message string) {
	body := gin.H{"error": message}
	if id := c.GetString(requestIDKey); id != "" {
		body["request_id"] = id
	}
	c.JSON(status, body)
}

// Fail sends err with the status and caller-safe message the dispatcher
// assigns to it.
func Fail(c *gin.Context, err error) {
	Error(c, dispatch.HTTPStatus(err), dispatch.PublicMessage(err))
}
