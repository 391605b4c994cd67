package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service interface {
	LogAction(ctx context.Context, userID, eventID, action string, details map[string]interface{}, ip, status string) error
	GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error)
	GetAuditLogByID(ctx context.Context, id uint) (*AuditLog, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// LogAction creates a new audit log entry. Failures are logged and returned
// but callers treat the audit trail as best effort.
func (s *service) LogAction(ctx context.Context, userID, eventID, action string, details map[string]interface{}, ip, status string) error {
	if details == nil {
		details = make(map[string]interface{})
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	entry := &AuditLog{
		UserID:    userID,
		Action:    action,
		Details:   datatypes.JSON(detailsJSON),
		IPAddress: ip,
		Status:    status,
	}
	if eventID != "" {
		entry.EventID = &eventID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":  userID,
			"event_id": eventID,
			"action":   action,
		}).WithError(err).Error("audit log write failed")
		return err
	}
	return nil
}

func (s *service) GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	logs, total, err := s.repo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("auditlog.list", "failed to list audit logs", err)
	}

	return &PaginatedAuditLogs{
		Data:       logs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

func (s *service) GetAuditLogByID(ctx context.Context, id uint) (*AuditLog, error) {
	log, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("auditlog.get", "audit log not found")
	}
	if err != nil {
		return nil, apperr.Internal("auditlog.get", "failed to load audit log", err)
	}
	return log, nil
}
