package event

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"github.com/soonlist/soonlist-backend/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func actorFrom(c *gin.Context) (Actor, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthorized("event", "unauthenticated"))
		return Actor{}, false
	}
	return Actor{UserID: id.UserID, Role: id.Role, IP: middleware.GetIPFromContext(c)}, true
}

// ===========================
// 🔍 GET /events/:id
func (h *Handler) GetEvent(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	e, err := h.Service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// ===========================
// 📄 GET /events?limit=&offset=  (caller's own events)
func (h *Handler) ListMyEvents(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	events, err := h.Service.ListForUser(c.Request.Context(), actor.UserID, limit, offset)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ===========================
// 🛠 PUT /events/:id
func (h *Handler) UpdateEvent(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.BadRequest("event.update", "invalid input: "+err.Error()))
		return
	}

	e, err := h.Service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "eventId": e.ID, "event": e})
}

// ===========================
// ❌ DELETE /events/:id
func (h *Handler) DeleteEvent(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "eventId": c.Param("id")})
}
