package event

import (
	"encoding/json"
	"time"

	"github.com/soonlist/soonlist-backend/internal/ai"
	"gorm.io/datatypes"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	RoleAdmin = "admin"
)

// ============================
// 🔷 GORM models

type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Username    string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"size:255" json:"displayName"`
	Email       string    `gorm:"size:255" json:"email"`
	Timezone    string    `gorm:"size:64" json:"timezone"`
	Role        string    `gorm:"size:20;not null;default:user" json:"role"`
	Lists       []List    `gorm:"foreignKey:UserID" json:"lists,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type List struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	UserID      string    `gorm:"size:64;not null;index" json:"userId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Visibility  string    `gorm:"size:10;not null;default:private" json:"visibility"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Payload is the stored event body. Images holds zero or exactly four URLs.
type Payload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	TimeZone    string   `json:"timeZone"`
	Location    string   `json:"location"`
	Images      []string `json:"images,omitempty"`
}

type Event struct {
	ID            string                      `gorm:"primaryKey;size:12" json:"id"`
	UserID        string                      `gorm:"size:64;not null;index" json:"userId"`
	UserName      string                      `gorm:"size:100;not null" json:"userName"`
	Event         datatypes.JSONType[Payload] `gorm:"not null" json:"event"`
	EventMetadata datatypes.JSON              `json:"eventMetadata"`
	StartDateTime time.Time                   `gorm:"not null;index" json:"startDateTime"`
	EndDateTime   time.Time                   `gorm:"not null" json:"endDateTime"`
	Visibility    string                      `gorm:"size:10;not null;default:private" json:"visibility"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt     time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`

	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	EventFollows []EventFollow `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"eventFollows"`
	Comments     []Comment     `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"comments"`
	EventToLists []EventToList `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"eventToLists"`
}

// Metadata decodes the stored metadata. A nil result means none was stored.
func (e *Event) Metadata() (*ai.Metadata, error) {
	if len(e.EventMetadata) == 0 || string(e.EventMetadata) == "null" {
		return nil, nil
	}
	var md ai.Metadata
	if err := json.Unmarshal(e.EventMetadata, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string    `gorm:"size:12;not null;index" json:"eventId"`
	UserID    string    `gorm:"size:64;not null" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type EventToList struct {
	EventID   string    `gorm:"primaryKey;size:12" json:"eventId"`
	ListID    string    `gorm:"primaryKey;size:64" json:"listId"`
	List      *List     `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"list,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

type EventFollow struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	EventID   string    `gorm:"primaryKey;size:12" json:"eventId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// Models is the migration order used by tests and the sqlite dev database.
func Models() []interface{} {
	return []interface{}{&User{}, &List{}, &Event{}, &Comment{}, &EventToList{}, &EventFollow{}}
}

// ============================
// 🟠 Update Event Request
type UpdateRequest struct {
	Event      ai.Event     `json:"event" binding:"required"`
	Metadata   *ai.Metadata `json:"eventMetadata"`
	Images     []string     `json:"images"`
	Visibility string       `json:"visibility"`
	Comment    string       `json:"comment"`
	Lists      []ListRef    `json:"lists"`
}

// ListRef is a list selection as sent by clients.
type ListRef struct {
	Value string `json:"value" binding:"required"`
}

func ListIDs(refs []ListRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.Value)
	}
	return ids
}
