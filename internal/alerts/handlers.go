package alerts

import (
	"net/http"
	"time"

	"github.com/carecircle/hub/internal/auth"
	"github.com/carecircle/hub/internal/httpx"
	"github.com/gin-gonic/gin"
)

func ListHandler(a *Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		alerts, err := a.ForUser(c.Request.Context(), auth.CurrentUserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

type seenRequest struct {
	At time.Time `json:"at"`
}

// SeenHandler moves the caller's watermark; an empty body means now.
func SeenHandler(a *Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req seenRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				httpx.BadRequest(c, err)
				return
			}
		}
		if err := a.MarkSeen(c.Request.Context(), auth.CurrentUserID(c), req.At); err != nil {
			httpx.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func DismissHandler(a *Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Dismiss(c.Request.Context(), auth.CurrentUserID(c), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
