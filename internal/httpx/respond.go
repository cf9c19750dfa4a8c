// Package httpx holds small helpers shared by the gin handlers.
package httpx

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/carecircle/hub/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// Error writes err as JSON. Domain errors keep their message; anything else
// is logged and hidden behind a generic 500.
func Error(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err.Error(),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  apperrors.CodeOf(err),
	})
}

// BadRequest rejects a body or query that failed to bind.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperrors.CodeInvalidArgument})
}

// BoolQuery reads an optional boolean query parameter; anything unparsable
// counts as false.
func BoolQuery(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
