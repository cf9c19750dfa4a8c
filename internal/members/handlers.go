package members

import (
	"net/http"

	"github.com/carecircle/hub/internal/auth"
	"github.com/carecircle/hub/internal/httpx"
	"github.com/gin-gonic/gin"
)

// CreateHandler creates a member; primaryUserId defaults to the caller.
func CreateHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p CreateParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		if p.PrimaryUserID == "" {
			p.PrimaryUserID = auth.CurrentUserID(c)
		}

		m, err := svc.CreateMember(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

func ListHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListByUser(c.Request.Context(), auth.CurrentUserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func DeleteHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.Delete(c.Request.Context(), DeleteParams{
			ID:        c.Param("id"),
			DeletedBy: auth.CurrentUserID(c),
			Hard:      httpx.BoolQuery(c, "hard"),
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func MeHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.GetUser(c.Request.Context(), auth.CurrentUserID(c))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func UpdateMeHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p UpdateUserParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		p.UserID = auth.CurrentUserID(c)

		u, err := svc.UpdateUser(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}
