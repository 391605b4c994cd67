package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/soonlist/soonlist-backend/internal/apperr"
	"github.com/soonlist/soonlist-backend/internal/event"
	"github.com/soonlist/soonlist-backend/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// CreateRequest is the body shared by the three creation procedures.
type CreateRequest struct {
	Timezone         string          `json:"timezone" binding:"required"`
	RawText          string          `json:"rawText"`
	URL              string          `json:"url"`
	ImageURL         string          `json:"imageUrl"`
	Base64Image      string          `json:"base64Image"`
	UserID           string          `json:"userId" binding:"required"`
	Username         string          `json:"username" binding:"required"`
	Lists            []event.ListRef `json:"lists" binding:"dive"`
	Visibility       string          `json:"visibility" binding:"omitempty,oneof=public private"`
	SendNotification *bool           `json:"sendNotification"`
	Comment          string          `json:"comment"`
}

func (r CreateRequest) input(ip string) Input {
	send := true
	if r.SendNotification != nil {
		send = *r.SendNotification
	}
	return Input{
		UserID:           r.UserID,
		Username:         r.Username,
		Timezone:         r.Timezone,
		RawText:          r.RawText,
		URL:              r.URL,
		ImageURL:         r.ImageURL,
		Base64Image:      r.Base64Image,
		Lists:            r.Lists,
		Visibility:       r.Visibility,
		Comment:          r.Comment,
		SendNotification: send,
		IP:               ip,
	}
}

type createFunc func(ctx context.Context, in Input) (*Response, error)

// ===========================
// ✨ POST /ai/eventFromRawText
func (h *Handler) EventFromRawText(c *gin.Context) {
	h.handle(c, ProcRawText, h.Service.CreateFromRawText)
}

// ===========================
// ✨ POST /ai/eventFromUrl
func (h *Handler) EventFromURL(c *gin.Context) {
	h.handle(c, ProcURL, h.Service.CreateFromURL)
}

// ===========================
// ✨ POST /ai/eventFromImage
func (h *Handler) EventFromImage(c *gin.Context) {
	h.handle(c, ProcImage, h.Service.CreateFromImage)
}

func (h *Handler) handle(c *gin.Context, proc string, create createFunc) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthorized(proc, "unauthenticated"))
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, bindError(proc, err))
		return
	}

	// Identity comes from the token; the body may only name another user
	// when the caller is an admin.
	if req.UserID != identity.UserID && !identity.IsAdmin() {
		apperr.Respond(c, apperr.Forbidden(proc, "userId does not match the authenticated user"))
		return
	}

	resp, err := create(c.Request.Context(), req.input(middleware.GetIPFromContext(c)))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bindError(op string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return apperr.Invalid(op, fields)
	}
	return apperr.BadRequest(op, "invalid input: "+err.Error())
}
