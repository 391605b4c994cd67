// Package pipeline turns raw text, a web page or an image into a saved event.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/soonlist/soonlist-backend/internal/ai"
	"github.com/soonlist/soonlist-backend/internal/analytics"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"github.com/soonlist/soonlist-backend/internal/background"
	"github.com/soonlist/soonlist-backend/internal/event"
	"github.com/soonlist/soonlist-backend/internal/notification"
	"github.com/soonlist/soonlist-backend/internal/publisher"
	"github.com/soonlist/soonlist-backend/internal/readability"
	"github.com/soonlist/soonlist-backend/internal/upload"
)

const (
	ProcRawText = "eventFromRawText"
	ProcURL     = "eventFromUrl"
	ProcImage   = "eventFromImage"
)

type Generator interface {
	Generate(ctx context.Context, req ai.Request, target any) (*ai.Result, error)
}

type Prompter interface {
	ForTimezone(timezone string) ai.Prompt
}

type TextFetcher interface {
	Text(ctx context.Context, pageURL string) (string, error)
}

type ImageUploader interface {
	UploadBase64(ctx context.Context, userID, encoded string) (string, error)
}

type EventCreator interface {
	Create(ctx context.Context, p event.CreateParams, ip string) (*event.Event, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, req notification.Request) notification.Dispatch
}

// Deps are the collaborators of the pipeline. Counter, Notifier, Publisher
// and Tracker may be nil.
type Deps struct {
	Generator Generator
	Prompts   Prompter
	Fetcher   TextFetcher
	Uploader  ImageUploader
	Events    EventCreator
	Counter   notification.CaptureCounter
	Notifier  Notifier
	Publisher publisher.Publisher
	Tracker   analytics.Tracker
	Runner    background.Runner
}

type Service struct {
	gen       Generator
	prompts   Prompter
	fetcher   TextFetcher
	uploader  ImageUploader
	events    EventCreator
	counter   notification.CaptureCounter
	notifier  Notifier
	publisher publisher.Publisher
	tracker   analytics.Tracker
	runner    background.Runner
}

func NewService(d Deps) *Service {
	s := &Service{
		gen:       d.Generator,
		prompts:   d.Prompts,
		fetcher:   d.Fetcher,
		uploader:  d.Uploader,
		events:    d.Events,
		counter:   d.Counter,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		tracker:   d.Tracker,
		runner:    d.Runner,
	}
	if s.publisher == nil {
		s.publisher = publisher.Noop{}
	}
	if s.tracker == nil {
		s.tracker = analytics.Noop{}
	}
	if s.runner == nil {
		s.runner = background.Inline{}
	}
	return s
}

// Input is one creation request. Only the field matching the procedure is
// read: RawText, URL, or one of ImageURL and Base64Image.
type Input struct {
	UserID           string
	Username         string
	Timezone         string
	RawText          string
	URL              string
	ImageURL         string
	Base64Image      string
	Lists            []event.ListRef
	Visibility       string
	Comment          string
	SendNotification bool
	IP               string
}

type Response struct {
	Success bool         `json:"success"`
	EventID string       `json:"eventId"`
	Event   *event.Event `json:"event"`
}

// ===========================
// 📝 Raw text
func (s *Service) CreateFromRawText(ctx context.Context, in Input) (*Response, error) {
	if strings.TrimSpace(in.RawText) == "" {
		return nil, apperr.Internal(ProcRawText, "no input provided", nil)
	}
	return s.create(ctx, ProcRawText, notification.MethodRawText, in, ai.Input{Text: in.RawText}, "")
}

// ===========================
// 🔗 URL
func (s *Service) CreateFromURL(ctx context.Context, in Input) (*Response, error) {
	text, err := s.fetchText(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, ProcURL, notification.MethodURL, in, ai.Input{Text: text}, "")
}

// ===========================
// 🖼 Image
func (s *Service) CreateFromImage(ctx context.Context, in Input) (*Response, error) {
	imageURL := strings.TrimSpace(in.ImageURL)
	encoded := strings.TrimSpace(in.Base64Image)
	if imageURL == "" && encoded == "" {
		return nil, apperr.Internal(ProcImage, "no input provided", nil)
	}

	genInput := ai.Input{ImageURL: imageURL}
	if encoded != "" {
		inline, err := inlineImage(encoded)
		if err != nil {
			return nil, apperr.BadRequest(ProcImage, "invalid image: "+err.Error())
		}
		genInput.ImageURL = inline
	}

	// The model reads the inline image, so the upload runs alongside the
	// generations.
	var uploaded string
	var uploadTask func(ctx context.Context) error
	if encoded != "" {
		uploadTask = func(ctx context.Context) error {
			u, err := s.uploader.UploadBase64(ctx, in.UserID, encoded)
			if err != nil {
				return apperr.Internal(ProcImage, "image upload failed", err)
			}
			uploaded = u
			return nil
		}
	} else {
		uploaded = imageURL
	}

	gen, err := s.generate(ctx, ProcImage, in, genInput, uploadTask)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, ProcImage, notification.MethodImage, in, *gen, uploaded)
}

// Extract runs both generations for one input and persists nothing.
// Base64 images are sent inline and never uploaded.
func (s *Service) Extract(ctx context.Context, in Input) (*ai.GeneratedEvent, error) {
	const op = "pipeline.extract"
	var genInput ai.Input
	switch {
	case strings.TrimSpace(in.RawText) != "":
		genInput.Text = in.RawText
	case strings.TrimSpace(in.URL) != "":
		text, err := s.fetchText(ctx, in.URL)
		if err != nil {
			return nil, err
		}
		genInput.Text = text
	case strings.TrimSpace(in.Base64Image) != "":
		inline, err := inlineImage(strings.TrimSpace(in.Base64Image))
		if err != nil {
			return nil, apperr.BadRequest(op, "invalid image: "+err.Error())
		}
		genInput.ImageURL = inline
	case strings.TrimSpace(in.ImageURL) != "":
		genInput.ImageURL = strings.TrimSpace(in.ImageURL)
	default:
		return nil, apperr.Internal(op, "no input provided", nil)
	}
	return s.generate(ctx, op, in, genInput, nil)
}

// inlineImage validates a base64 image and returns the data URL the model
// reads, labelled with the sniffed image type.
func inlineImage(encoded string) (string, error) {
	data, declared, err := upload.Decode(encoded)
	if err != nil {
		return "", err
	}
	mimeType, err := upload.ContentType(data, declared)
	if err != nil {
		return "", err
	}
	if _, payload, ok := strings.Cut(encoded, ","); ok && strings.HasPrefix(encoded, "data:") {
		encoded = payload
	}
	return ai.DataURL(mimeType, encoded), nil
}

func (s *Service) fetchText(ctx context.Context, pageURL string) (string, error) {
	if strings.TrimSpace(pageURL) == "" {
		return "", apperr.Internal(ProcURL, "no input provided", nil)
	}
	text, err := s.fetcher.Text(ctx, pageURL)
	if errors.Is(err, readability.ErrInvalidURL) || errors.Is(err, readability.ErrBlockedAddress) {
		return "", apperr.BadRequest(ProcURL, err.Error())
	}
	if err != nil {
		return "", apperr.Internal(ProcURL, "failed to fetch url", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.BadRequest(ProcURL, "no readable text found at url")
	}
	return text, nil
}

func (s *Service) create(ctx context.Context, proc, method string, in Input, genInput ai.Input, imageURL string) (*Response, error) {
	gen, err := s.generate(ctx, proc, in, genInput, nil)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, proc, method, in, *gen, imageURL)
}

// generate issues the event and metadata generations together and waits for
// both. extra, when set, runs in the same group.
func (s *Service) generate(ctx context.Context, proc string, in Input, genInput ai.Input, extra func(context.Context) error) (*ai.GeneratedEvent, error) {
	prompt := s.prompts.ForTimezone(in.Timezone)
	sessionID := uuid.NewString()

	var (
		ev           ai.Event
		md           ai.Metadata
		evRes, mdRes *ai.Result
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := s.gen.Generate(gctx, ai.Request{
			Name:          proc,
			System:        prompt.SystemPromptEvent,
			Instruction:   prompt.Prompt.Text,
			Input:         genInput,
			Schema:        ai.EventSchema,
			PromptVersion: prompt.PromptVersion,
			UserID:        in.UserID,
			SessionID:     sessionID,
		}, &ev)
		evRes = r
		return err
	})
	g.Go(func() error {
		r, err := s.gen.Generate(gctx, ai.Request{
			Name:          proc + ".metadata",
			System:        prompt.SystemPromptMetadata,
			Instruction:   prompt.Prompt.TextMetadata,
			Input:         genInput,
			Schema:        ai.MetadataSchema,
			PromptVersion: prompt.PromptVersion,
			UserID:        in.UserID,
			SessionID:     sessionID,
		}, &md)
		mdRes = r
		return err
	})
	if extra != nil {
		g.Go(func() error { return extra(gctx) })
	}

	if err := g.Wait(); err != nil {
		logrus.WithFields(logrus.Fields{
			"op":      proc,
			"user_id": in.UserID,
			"latency": time.Since(start).String(),
		}).WithError(err).Error("generation failed")
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Internal(proc, "event generation failed", err)
	}

	warnings := append([]string{}, evRes.Warnings...)
	for _, w := range mdRes.Warnings {
		warnings = append(warnings, "metadata:"+w)
	}
	return &ai.GeneratedEvent{
		Event:        ev,
		Metadata:     &md,
		RawResponse:  evRes.RawResponse,
		FinishReason: evRes.FinishReason,
		Model:        evRes.Model,
		Warnings:     warnings,
	}, nil
}

func (s *Service) persist(ctx context.Context, proc, method string, in Input, gen ai.GeneratedEvent, imageURL string) (*Response, error) {
	row, err := event.Materialize(gen, event.MaterializeInput{
		UserID:     in.UserID,
		UserName:   in.Username,
		ImageURL:   imageURL,
		Visibility: in.Visibility,
	})
	if err != nil {
		return nil, apperr.Wrap(proc, err)
	}

	saved, err := s.events.Create(ctx, event.CreateParams{
		Event:   row,
		Comment: in.Comment,
		ListIDs: event.ListIDs(in.Lists),
	}, in.IP)
	if err != nil {
		return nil, apperr.Wrap(proc, err)
	}

	s.schedule(method, in, saved)

	logrus.WithFields(logrus.Fields{
		"op":       proc,
		"user_id":  in.UserID,
		"event_id": saved.ID,
		"model":    gen.Model,
	}).Info("event created")
	return &Response{Success: true, EventID: saved.ID, Event: saved}, nil
}

// schedule hands the follow-up work to the background runner. None of it is
// awaited and none of it can fail the request.
func (s *Service) schedule(method string, in Input, e *event.Event) {
	payload := e.Event.Data()

	notify := in.SendNotification && s.notifier != nil
	if s.counter != nil || notify {
		req := notification.Request{
			UserID:    in.UserID,
			Timezone:  in.Timezone,
			EventID:   e.ID,
			EventName: payload.Name,
			Source:    notification.SourceAIPipeline,
			Method:    method,
		}
		// Every committed capture is counted, notified or not, so the copy
		// of the next notification reflects the whole day.
		s.runner.Go("capture.notify", func(ctx context.Context) error {
			req.Count = s.recordCapture(ctx, req)
			if notify {
				s.notifier.Dispatch(ctx, req)
			}
			return nil
		})
	}

	created := publisher.EventCreated{
		EventID:   e.ID,
		UserID:    e.UserID,
		Name:      payload.Name,
		StartsAt:  e.StartDateTime,
		EndsAt:    e.EndDateTime,
		Source:    notification.SourceAIPipeline,
		Method:    method,
		CreatedAt: e.CreatedAt,
	}
	s.runner.Go("publisher.event_created", func(ctx context.Context) error {
		return s.publisher.PublishEventCreated(ctx, created)
	})

	s.runner.Go("analytics.event_created", func(context.Context) error {
		s.tracker.Capture(analytics.Capture{
			DistinctID: in.UserID,
			Event:      analytics.EventCreated,
			Properties: map[string]interface{}{
				"eventId":    e.ID,
				"method":     method,
				"source":     notification.SourceAIPipeline,
				"visibility": e.Visibility,
				"lists":      len(in.Lists),
			},
		})
		return nil
	})
}

// recordCapture returns the user's captures today including this one, or 0
// when it cannot be counted.
func (s *Service) recordCapture(ctx context.Context, req notification.Request) int {
	if s.counter == nil {
		return 0
	}
	n, err := s.counter.Increment(ctx, req.UserID, req.Timezone)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":  req.UserID,
			"event_id": req.EventID,
		}).WithError(err).Warn("could not count captures")
		return 0
	}
	return n
}
