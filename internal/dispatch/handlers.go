package dispatch

import (
	"net/http"

	"github.com/carecircle/hub/internal/auth"
	"github.com/carecircle/hub/internal/httpx"
	"github.com/gin-gonic/gin"
)

// SendHandler sends an arbitrary catalog content key. The sender defaults to
// the caller, so chat and check-in services post on a member's behalf by
// setting senderClientId.
func SendHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		if req.SenderClientID == "" {
			req.SenderClientID = auth.CurrentUserID(c)
		}

		d, err := gw.Send(c.Request.Context(), req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusAccepted, d)
	}
}

func GetHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := gw.Find(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// DeleteHandler cancels a dispatch. Unknown ids still answer 204.
func DeleteHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gw.Delete(c.Request.Context(), c.Param("id")); err != nil {
			httpx.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
