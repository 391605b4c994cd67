package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soonlist/soonlist-backend/internal/ai"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"github.com/soonlist/soonlist-backend/internal/auditlog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreated = "EVENT_CREATED"
	ActionUpdated = "EVENT_UPDATED"
	ActionDeleted = "EVENT_DELETED"
)

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Service wraps business logic for events
type Service struct {
	Repo     *Repository
	AuditSvc auditlog.Service
}

func NewService(r *Repository, auditSvc auditlog.Service) *Service {
	return &Service{Repo: r, AuditSvc: auditSvc}
}

// ===========================
// 🎯 Create
func (s *Service) Create(ctx context.Context, p CreateParams, ip string) (*Event, error) {
	e, err := s.Repo.CreateWithRelations(ctx, p)
	if err != nil {
		s.audit(ctx, p.Event.UserID, "", ActionCreated, map[string]interface{}{
			"name":  p.Event.Event.Data().Name,
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return nil, err
	}
	s.audit(ctx, e.UserID, e.ID, ActionCreated, map[string]interface{}{
		"name":  e.Event.Data().Name,
		"lists": len(p.ListIDs),
	}, ip, auditlog.StatusSuccess)
	return e, nil
}

// ===========================
// 🔍 Get returns public events to anyone and private ones to their owner or
// an admin. Everyone else sees not found.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Event, error) {
	e, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("event.get", "event not found")
	}
	if err != nil {
		return nil, apperr.Internal("event.get", "failed to load event", err)
	}
	if e.Visibility != VisibilityPublic && e.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.NotFound("event.get", "event not found")
	}
	return e, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	events, err := s.Repo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("event.list", "failed to list events", err)
	}
	return events, nil
}

func (s *Service) CountCapturedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return s.Repo.CountCapturedSince(ctx, userID, since)
}

// authorize loads the owner and fails before any write unless the actor owns
// the event or is an admin.
func (s *Service) authorize(ctx context.Context, op string, actor Actor, id string) (string, error) {
	owner, err := s.Repo.Owner(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.NotFound(op, "event not found")
	}
	if err != nil {
		return "", apperr.Internal(op, "failed to load event", err)
	}
	if owner != actor.UserID && !actor.IsAdmin() {
		logrus.WithFields(logrus.Fields{
			"op":       op,
			"event_id": id,
			"user_id":  actor.UserID,
		}).Warn("forbidden event mutation")
		return "", apperr.Forbidden(op, "only the owner or an admin can change this event")
	}
	return owner, nil
}

// ===========================
// 🛠 Update
func (s *Service) Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Event, error) {
	const op = "event.update"

	if fields := ai.FieldErrors(req.Event); fields != nil {
		return nil, apperr.Invalid(op, fields)
	}
	owner, err := s.authorize(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}

	visibility, err := normalizeVisibility(req.Visibility)
	if err != nil {
		return nil, err
	}
	images := req.Images
	if len(images) > 0 {
		images = Images(images[0])
	}
	payload, start, end, err := resolvePayload(req.Event, images)
	if err != nil {
		return nil, err
	}

	var metadata datatypes.JSON
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, apperr.Internal(op, "encode event metadata", err)
		}
		metadata = raw
	}

	e, err := s.Repo.UpdateWithRelations(ctx, UpdateParams{
		ID:            id,
		OwnerID:       owner,
		Payload:       payload,
		Metadata:      metadata,
		Visibility:    visibility,
		StartDateTime: start,
		EndDateTime:   end,
		Comment:       req.Comment,
		ListIDs:       ListIDs(req.Lists),
	})
	if err != nil {
		s.audit(ctx, actor.UserID, id, ActionUpdated, map[string]interface{}{"error": err.Error()}, actor.IP, auditlog.StatusFailure)
		return nil, err
	}

	s.audit(ctx, actor.UserID, id, ActionUpdated, map[string]interface{}{
		"name":  payload.Name,
		"lists": len(req.Lists),
		"owner": owner,
	}, actor.IP, auditlog.StatusSuccess)
	return e, nil
}

// ===========================
// ❌ Delete
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	const op = "event.delete"

	owner, err := s.authorize(ctx, op, actor, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		s.audit(ctx, actor.UserID, id, ActionDeleted, map[string]interface{}{"error": err.Error()}, actor.IP, auditlog.StatusFailure)
		return err
	}
	s.audit(ctx, actor.UserID, id, ActionDeleted, map[string]interface{}{"owner": owner}, actor.IP, auditlog.StatusSuccess)
	return nil
}

func (s *Service) audit(ctx context.Context, userID, eventID, action string, details map[string]interface{}, ip, status string) {
	if s.AuditSvc == nil {
		return
	}
	// The audit service logs its own failures.
	_ = s.AuditSvc.LogAction(context.WithoutCancel(ctx), userID, eventID, action, details, ip, status)
}
