// Package analytics records product analytics events.
package analytics

import (
	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"
)

const EventCreated = "event_created"

// Capture is one product analytics event.
type Capture struct {
	DistinctID string
	Event      string
	Properties map[string]interface{}
}

type Tracker interface {
	Capture(c Capture)
	Close() error
}

// Enqueuer is the part of the PostHog client the tracker uses.
type Enqueuer interface {
	Enqueue(msg posthog.Message) error
	Close() error
}

// PostHogTracker buffers captures in the PostHog client, which flushes them
// in the background.
type PostHogTracker struct {
	client Enqueuer
}

func NewPostHogClient(apiKey, endpoint string) (posthog.Client, error) {
	cfg := posthog.Config{}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	return posthog.NewWithConfig(apiKey, cfg)
}

func NewPostHogTracker(client Enqueuer) *PostHogTracker {
	return &PostHogTracker{client: client}
}

func (t *PostHogTracker) Capture(c Capture) {
	props := posthog.NewProperties()
	for k, v := range c.Properties {
		props.Set(k, v)
	}
	err := t.client.Enqueue(posthog.Capture{
		DistinctId: c.DistinctID,
		Event:      c.Event,
		Properties: props,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": c.DistinctID,
			"event":   c.Event,
		}).WithError(err).Warn("analytics capture dropped")
	}
}

func (t *PostHogTracker) Close() error {
	return t.client.Close()
}

// Noop discards every capture.
type Noop struct{}

func (Noop) Capture(Capture) {}
func (Noop) Close() error   { return nil }
