package auditlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soonlist/soonlist-backend/internal/apperr"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetAuditLogs handles GET /api/v1/auditlogs (admin only).
// Query: user_id, event_id, action, status, from_date, to_date (YYYY-MM-DD), page, limit.
func (h *Handler) GetAuditLogs(c *gin.Context) {
	filter := AuditLogFilter{
		UserID:  c.Query("user_id"),
		EventID: c.Query("event_id"),
		Action:  c.Query("action"),
		Status:  c.Query("status"),
	}

	fields := map[string]string{}
	if v := c.Query("from_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			fields["from_date"] = "must be YYYY-MM-DD"
		} else {
			filter.FromDate = &d
		}
	}
	if v := c.Query("to_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			fields["to_date"] = "must be YYYY-MM-DD"
		} else {
			// inclusive of the whole day
			end := d.Add(24*time.Hour - time.Nanosecond)
			filter.ToDate = &end
		}
	}
	if v := c.Query("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := c.Query("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if len(fields) > 0 {
		apperr.Respond(c, apperr.Invalid("auditlog.list", fields))
		return
	}

	result, err := h.service.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAuditLogByID handles GET /api/v1/auditlogs/:id
func (h *Handler) GetAuditLogByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apperr.Respond(c, apperr.BadRequest("auditlog.get", "invalid audit log id"))
		return
	}

	log, err := h.service.GetAuditLogByID(c.Request.Context(), uint(id))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}
