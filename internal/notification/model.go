package notification

import "time"

// PushToken is a registered device of a user. Registration happens elsewhere;
// the dispatcher only reads active tokens and retires unregistered ones.
type PushToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     string     `gorm:"size:64;not null;uniqueIndex:idx_push_tokens_user_token" json:"userId"`
	Token      string     `gorm:"size:512;not null;uniqueIndex:idx_push_tokens_user_token" json:"token"`
	DeviceType string     `gorm:"size:20" json:"deviceType"` // android, ios, web
	IsActive   bool       `gorm:"not null;default:true" json:"isActive"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (PushToken) TableName() string {
	return "push_tokens"
}

// Message is the visible part of a notification.
type Message struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
}

// Request asks for a capture notification for a freshly created event.
// Count is the user's captures today including this one; below 1 it is
// treated as the first capture.
type Request struct {
	UserID    string
	Timezone  string
	EventID   string
	EventName string
	Source    string
	Method    string
	Count     int
}

// Dispatch is the record of one notification attempt. It is logged, never
// stored.
type Dispatch struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Body           string `json:"body"`
	URL            string `json:"url"`
	EventID        string `json:"eventId"`
	Source         string `json:"source"`
	Method         string `json:"method"`
	Success        bool   `json:"success"`
	ProviderID     string `json:"providerId,omitempty"`
	Error          string `json:"error,omitempty"`
}
