package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// CreateParams is a materialized event with the rows created alongside it.
type CreateParams struct {
	Event   *Event
	Comment string
	ListIDs []string
}

// UpdateParams replaces every mutable part of an event.
type UpdateParams struct {
	ID            string
	OwnerID       string
	Payload       Payload
	Metadata      datatypes.JSON
	Visibility    string
	StartDateTime time.Time
	EndDateTime   time.Time
	Comment       string
	ListIDs       []string
}

// ===========================
// 🎯 Create event, comment and list rows in one transaction, then read back
// the joined record.
func (r *Repository) CreateWithRelations(ctx context.Context, p CreateParams) (*Event, error) {
	e := p.Event
	// Once started, the write is not abandoned because the caller went away.
	txCtx := context.WithoutCancel(ctx)

	err := r.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(e).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if content := strings.TrimSpace(p.Comment); content != "" {
			c := &Comment{EventID: e.ID, UserID: e.UserID, Content: content}
			if err := tx.Create(c).Error; err != nil {
				return fmt.Errorf("insert comment: %w", err)
			}
		}
		if len(p.ListIDs) > 0 {
			if err := replaceLists(tx, e.ID, p.ListIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("event.create", "failed to save event", err)
	}

	return r.readBack(txCtx, e.ID, "event not found after insert")
}

// ===========================
// 🛠 Update replaces payload, metadata, comment and lists together. The list
// rows are always replaced wholesale.
func (r *Repository) UpdateWithRelations(ctx context.Context, p UpdateParams) (*Event, error) {
	txCtx := context.WithoutCancel(ctx)

	err := r.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Event{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"event":           datatypes.NewJSONType(p.Payload),
			"event_metadata":  p.Metadata,
			"visibility":      p.Visibility,
			"start_date_time": p.StartDateTime,
			"end_date_time":   p.EndDateTime,
		})
		if res.Error != nil {
			return fmt.Errorf("update event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("event_id = ? AND user_id = ?", p.ID, p.OwnerID).Delete(&Comment{}).Error; err != nil {
			return fmt.Errorf("clear comment: %w", err)
		}
		if content := strings.TrimSpace(p.Comment); content != "" {
			if err := tx.Create(&Comment{EventID: p.ID, UserID: p.OwnerID, Content: content}).Error; err != nil {
				return fmt.Errorf("insert comment: %w", err)
			}
		}

		return replaceLists(tx, p.ID, p.ListIDs)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("event.update", "event not found")
	}
	if err != nil {
		return nil, apperr.Internal("event.update", "failed to update event", err)
	}

	return r.readBack(txCtx, p.ID, "event not found after update")
}

// ===========================
// ❌ Delete removes the event and everything hanging off it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.DB.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		for _, dep := range []interface{}{&EventToList{}, &Comment{}, &EventFollow{}} {
			if err := tx.Where("event_id = ?", id).Delete(dep).Error; err != nil {
				return fmt.Errorf("delete %T rows: %w", dep, err)
			}
		}
		res := tx.Where("id = ?", id).Delete(&Event{})
		if res.Error != nil {
			return fmt.Errorf("delete event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("event.delete", "event not found")
	}
	if err != nil {
		return apperr.Internal("event.delete", "failed to delete event", err)
	}
	return nil
}

func replaceLists(tx *gorm.DB, eventID string, listIDs []string) error {
	if err := tx.Where("event_id = ?", eventID).Delete(&EventToList{}).Error; err != nil {
		return fmt.Errorf("clear event lists: %w", err)
	}

	seen := make(map[string]bool, len(listIDs))
	rows := make([]EventToList, 0, len(listIDs))
	for _, id := range listIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, EventToList{EventID: eventID, ListID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert event lists: %w", err)
	}
	return nil
}

// ===========================
// 🔍 GetByID loads the joined record: owner with lists, follows, comments and
// list associations with list details.
func (r *Repository) GetByID(ctx context.Context, id string) (*Event, error) {
	var e Event
	err := r.DB.WithContext(ctx).
		Preload("User.Lists").
		Preload("EventFollows").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("EventToLists.List").
		Where("id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) readBack(ctx context.Context, id, msg string) (*Event, error) {
	e, err := r.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithField("event_id", id).Error(msg)
		return nil, apperr.Internal("event.readBack", msg, err)
	}
	if err != nil {
		return nil, apperr.Internal("event.readBack", "failed to load event", err)
	}
	return e, nil
}

// Owner returns only the id and owner of an event.
func (r *Repository) Owner(ctx context.Context, id string) (string, error) {
	var e Event
	err := r.DB.WithContext(ctx).Select("id", "user_id").Where("id = ?", id).Take(&e).Error
	if err != nil {
		return "", err
	}
	return e.UserID, nil
}

// ===========================
// 📄 ListForUser returns the user's events ordered by start.
func (r *Repository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Event, error) {
	var events []Event
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_date_time ASC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}

// CountCapturedSince counts events the user created at or after since.
func (r *Repository) CountCapturedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&Event{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&n).Error
	return n, err
}
