// Package publisher emits domain events for other services to consume.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	TopicEventCreated = "event.created"
	TypeEventCreated  = "event.created"
)

// EventCreated is published after an event has been committed.
type EventCreated struct {
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Source    string    `json:"source"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"createdAt"`
}

type Publisher interface {
	PublishEventCreated(ctx context.Context, evt EventCreated) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w     MessageWriter
	topic string
}

// NewKafkaWriter returns a writer keyed by user id so one user's events stay
// ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: w, topic: topic}
}

func (p *KafkaPublisher) PublishEventCreated(ctx context.Context, evt EventCreated) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", TypeEventCreated, err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.UserID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeEventCreated)},
			{Key: "event_id", Value: []byte(evt.EventID)},
		},
		Time: evt.CreatedAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", TypeEventCreated, p.topic, err)
	}
	logrus.WithFields(logrus.Fields{
		"event_id": evt.EventID,
		"user_id":  evt.UserID,
		"topic":    p.topic,
	}).Debug("domain event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishEventCreated(context.Context, EventCreated) error { return nil }
func (Noop) Close() error                                           { return nil }
