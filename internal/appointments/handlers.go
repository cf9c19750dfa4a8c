package appointments

import (
	"net/http"

	"github.com/carecircle/hub/internal/auth"
	"github.com/carecircle/hub/internal/httpx"
	"github.com/gin-gonic/gin"
)

// RequestHandler creates or refreshes an appointment request. userId defaults
// to the caller.
func RequestHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p RequestParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		if p.UserID == "" {
			p.UserID = auth.CurrentUserID(c)
		}

		a, err := svc.Request(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func ScheduleHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p ScheduleParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		if p.UserID == "" {
			p.UserID = auth.CurrentUserID(c)
		}

		a, err := svc.Schedule(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// EndHandler applies a partial end update; omitted fields stay untouched.
func EndHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p EndParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		p.ID = c.Param("id")

		a, err := svc.End(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func UpdateNotesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p UpdateNotesParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		p.AppointmentID = c.Param("id")

		a, err := svc.UpdateNotes(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// DeleteHandler soft-deletes by default; ?hard=true purges.
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
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func GetHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		get := svc.Get
		if httpx.BoolQuery(c, "includeDeleted") {
			get = svc.GetIncludingDeleted
		}

		a, err := get(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// FutureHandler lists the caller's upcoming appointments.
func FutureHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f FutureFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		if f.UserID == "" {
			f.UserID = auth.CurrentUserID(c)
		}

		list, err := svc.GetFutureAppointments(c.Request.Context(), f)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func ListMemberAppointmentsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListByMember(c.Request.Context(), c.Param("id"), httpx.BoolQuery(c, "includeDeleted"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func DeleteMemberAppointmentsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := svc.DeleteMemberAppointments(c.Request.Context(), DeleteMemberParams{
			MemberID:  c.Param("id"),
			DeletedBy: auth.CurrentUserID(c),
			Hard:      httpx.BoolQuery(c, "hard"),
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": ids})
	}
}

func AddRecordingHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p RecordingParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}

		r, err := svc.AddRecording(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func ReviewRecordingHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p ReviewParams
		if err := c.ShouldBindJSON(&p); err != nil {
			httpx.BadRequest(c, err)
			return
		}
		p.RecordingID = c.Param("id")
		p.UserID = auth.CurrentUserID(c)

		r, err := svc.ReviewRecording(c.Request.Context(), p)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}
