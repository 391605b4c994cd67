package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/soonlist/soonlist-backend/internal/tracing"
)

type ErrorKind string

const (
	KindProvider ErrorKind = "provider"
	KindSchema   ErrorKind = "schema"
	KindParse    ErrorKind = "parse"
)

// GenerationError is returned for every failed generation.
type GenerationError struct {
	Kind  ErrorKind
	Model string
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s error from %s: %v", e.Kind, e.Model, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// GeneratedEvent is what the two generations for one input produce together.
type GeneratedEvent struct {
	Event        Event
	Metadata     *Metadata
	RawResponse  string
	FinishReason string
	Model        string
	Warnings     []string
}

// Request describes one structured generation.
type Request struct {
	Name          string
	System        string
	Instruction   string
	Input         Input
	Schema        *Schema
	PromptVersion string
	UserID        string
	SessionID     string
}

// Result is the provenance of a decoded object.
type Result struct {
	RawResponse  string
	FinishReason string
	Model        string
	Warnings     []string
}

func (r *Result) Sanitized() bool {
	return r != nil && slices.Contains(r.Warnings, WarningSanitizedJSON)
}

// Generator is the only way to run a structured generation; every call is
// traced.
type Generator struct {
	client *Client
	tracer tracing.Tracer
}

func NewGenerator(client *Client, tracer tracing.Tracer) *Generator {
	if tracer == nil {
		tracer = tracing.Noop{}
	}
	return &Generator{client: client, tracer: tracer}
}

// Generate calls the model and decodes its answer into target. Output that is
// not JSON is passed through ExtractJSON once before giving up.
func (g *Generator) Generate(ctx context.Context, req Request, target any) (*Result, error) {
	var primary string
	if models := g.client.Models(); len(models) > 0 {
		primary = models[0]
	}
	ctx, gen := g.tracer.StartGeneration(ctx, tracing.TraceInfo{
		Name:          req.Name,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Input:         InputExcerpt(req.Input),
		PromptVersion: req.PromptVersion,
		Model:         primary,
	})

	res, err := g.generate(ctx, req, target)

	outcome := tracing.Outcome{Err: err}
	if err == nil {
		outcome.Output = target
		outcome.Model = res.Model
		outcome.FinishReason = res.FinishReason
		outcome.Warnings = res.Warnings
		outcome.Sanitized = res.Sanitized()
	} else {
		var ge *GenerationError
		if errors.As(err, &ge) {
			outcome.Model = ge.Model
		}
	}
	gen.End(outcome)

	return res, err
}

func (g *Generator) generate(ctx context.Context, req Request, target any) (*Result, error) {
	comp, err := g.client.Complete(ctx, Messages(req.System, req.Instruction, req.Input), req.Schema)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RawResponse:  comp.Content,
		FinishReason: comp.FinishReason,
		Model:        comp.Model,
		Warnings:     comp.Warnings,
	}

	err = req.Schema.Decode([]byte(comp.Content), target)
	if err == nil {
		return res, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, &GenerationError{Kind: KindSchema, Model: comp.Model, Cause: err}
	}

	if extracted, ok := ExtractJSON(comp.Content); ok {
		if derr := req.Schema.Decode([]byte(extracted), target); derr == nil {
			logrus.WithFields(logrus.Fields{
				"generation": req.Name,
				"model":      comp.Model,
				"user_id":    req.UserID,
			}).Warn("recovered json from wrapped model output")
			res.Warnings = append(res.Warnings, WarningSanitizedJSON)
			return res, nil
		}
	}
	return nil, &GenerationError{Kind: KindParse, Model: comp.Model, Cause: err}
}

const maxExcerpt = 2000

var dataURLPattern = regexp.MustCompile(`data:[\w/+.-]+;base64,[A-Za-z0-9+/=]+`)

const omittedImage = "[base64 image omitted]"

// InputExcerpt is the trace safe form of an input: inline images are
// replaced with a marker and the result is capped at 2000 characters.
func InputExcerpt(in Input) string {
	text := dataURLPattern.ReplaceAllString(in.Text, omittedImage)
	switch {
	case dataURLPattern.MatchString(in.ImageURL):
		text = joinExcerpt(text, omittedImage)
	case in.ImageURL != "":
		text = joinExcerpt(text, in.ImageURL)
	}
	if utf8.RuneCountInString(text) > maxExcerpt {
		text = string([]rune(text)[:maxExcerpt])
	}
	return text
}

func joinExcerpt(text, image string) string {
	if text == "" {
		return image
	}
	return text + "\n" + image
}
