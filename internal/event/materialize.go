package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/soonlist/soonlist-backend/internal/ai"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"gorm.io/datatypes"
)

const (
	DefaultTimezone  = ai.DefaultTimezone
	DefaultStartTime = "00:00"
	DefaultEndTime   = "23:59"

	// ImageSlots is the number of image entries clients render. An attached
	// image fills every slot.
	ImageSlots = 4

	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 12
)

// MaterializeInput is the caller side of a new event.
type MaterializeInput struct {
	UserID     string
	UserName   string
	ImageURL   string
	Visibility string
}

// NewID returns a 12 character lowercase alphanumeric public id.
func NewID() (string, error) {
	return gonanoid.Generate(idAlphabet, idLength)
}

// Materialize turns a generated event into the row to insert. It performs no
// I/O; malformed dates, times or zones are reported as bad requests.
func Materialize(gen ai.GeneratedEvent, in MaterializeInput) (*Event, error) {
	const op = "event.materialize"

	visibility, err := normalizeVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}

	payload, start, end, err := resolvePayload(gen.Event, Images(in.ImageURL))
	if err != nil {
		return nil, err
	}

	var metadata datatypes.JSON
	if gen.Metadata != nil {
		raw, err := json.Marshal(gen.Metadata)
		if err != nil {
			return nil, apperr.Internal(op, "encode event metadata", err)
		}
		metadata = raw
	}

	id, err := NewID()
	if err != nil {
		return nil, apperr.Internal(op, "generate event id", err)
	}

	return &Event{
		ID:            id,
		UserID:        in.UserID,
		UserName:      in.UserName,
		Event:         datatypes.NewJSONType(payload),
		EventMetadata: metadata,
		StartDateTime: start,
		EndDateTime:   end,
		Visibility:    visibility,
	}, nil
}

// Images replicates url into every image slot, or returns nil without one.
func Images(url string) []string {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	images := make([]string, ImageSlots)
	for i := range images {
		images[i] = url
	}
	return images
}

// resolvePayload applies the zone and clock defaults and computes the UTC
// instants for start and end.
func resolvePayload(ev ai.Event, images []string) (Payload, time.Time, time.Time, error) {
	p := Payload{
		Name:        ev.Name,
		Description: ev.Description,
		StartDate:   strings.TrimSpace(ev.StartDate),
		EndDate:     strings.TrimSpace(ev.EndDate),
		StartTime:   strings.TrimSpace(ev.StartTime),
		EndTime:     strings.TrimSpace(ev.EndTime),
		TimeZone:    strings.TrimSpace(ev.TimeZone),
		Location:    ev.Location,
		Images:      images,
	}
	if p.TimeZone == "" {
		p.TimeZone = DefaultTimezone
	}
	if p.StartTime == "" {
		p.StartTime = DefaultStartTime
	}
	if p.EndTime == "" {
		p.EndTime = DefaultEndTime
	}

	start, err := ZonedInstant(p.StartDate, p.StartTime, p.TimeZone)
	if err != nil {
		return Payload{}, time.Time{}, time.Time{}, apperr.BadRequest("event.materialize", "invalid start: "+err.Error())
	}
	end, err := ZonedInstant(p.EndDate, p.EndTime, p.TimeZone)
	if err != nil {
		return Payload{}, time.Time{}, time.Time{}, apperr.BadRequest("event.materialize", "invalid end: "+err.Error())
	}
	return p, start, end, nil
}

var clockLayouts = []string{"15:04", "15:04:05"}

// ZonedInstant interprets a local date (YYYY-MM-DD) and wall clock (HH:MM)
// in the named IANA zone and returns the instant in UTC.
func ZonedInstant(date, clock, tz string) (time.Time, error) {
	if tz == "" || tz == "Local" {
		return time.Time{}, fmt.Errorf("time zone %q is not an IANA zone name", tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown time zone %q", tz)
	}

	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation("2006-01-02 "+layout, date+" "+clock, loc)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("cannot read %q %q: %w", date, clock, lastErr)
}

func normalizeVisibility(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return VisibilityPrivate, nil
	case VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	default:
		return "", apperr.Invalid("event.visibility", map[string]string{"visibility": "must be public or private"})
	}
}
