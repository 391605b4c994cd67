package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	defaultTemperature = 0.2
	defaultBaseURL     = "https://openrouter.ai/api/v1"

	warningFallbackModel = "fallback-model"
)

// ChatCompleter is the part of the OpenAI client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ClientConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	FallbackModels []string
	Timeout        time.Duration
}

// Client sends schema constrained chat completions, walking the configured
// models in order until one answers. It never retries a model.
type Client struct {
	api         ChatCompleter
	models      []string
	temperature float32
}

func NewClient(cfg ClientConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	if oc.BaseURL == "" {
		oc.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	return NewClientWithAPI(openai.NewClientWithConfig(oc), cfg.Model, cfg.FallbackModels...)
}

func NewClientWithAPI(api ChatCompleter, model string, fallbacks ...string) *Client {
	models := make([]string, 0, 1+len(fallbacks))
	for _, m := range append([]string{model}, fallbacks...) {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return &Client{api: api, models: models, temperature: defaultTemperature}
}

// Models returns the model list in the order it is tried.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// Completion is the raw answer of one model.
type Completion struct {
	Content      string
	FinishReason string
	Model        string
	Warnings     []string
}

// Complete asks each model in turn for a response matching schema.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, schema *Schema) (*Completion, error) {
	if len(c.models) == 0 {
		return nil, &GenerationError{Kind: KindProvider, Cause: errors.New("no model configured")}
	}

	var (
		errs  []error
		tried string
	)
	for i, model := range c.models {
		tried = model
		req := openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: c.temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   schema.Name,
					Schema: schema.Document,
					Strict: false,
				},
			},
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil && len(resp.Choices) == 0 {
			err = errors.New("response has no choices")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			logrus.WithFields(logrus.Fields{
				"model":  model,
				"schema": schema.Name,
			}).WithError(err).Warn("model call failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		out := &Completion{
			Content:      resp.Choices[0].Message.Content,
			FinishReason: string(resp.Choices[0].FinishReason),
			Model:        model,
		}
		if i > 0 {
			out.Warnings = append(out.Warnings, warningFallbackModel+":"+model)
		}
		return out, nil
	}

	return nil, &GenerationError{
		Kind:  KindProvider,
		Model: tried,
		Cause: errors.Join(errs...),
	}
}

// Input is the user supplied content of a generation. Exactly one of Text
// and ImageURL is normally set; ImageURL may be a base64 data URL.
type Input struct {
	Text     string
	ImageURL string
}

// DataURL wraps a base64 payload so it can be sent inline as an image.
func DataURL(mimeType, base64Data string) string {
	if strings.HasPrefix(base64Data, "data:") {
		return base64Data
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64Data
}

// Messages builds the system and user turns for one generation.
func Messages(system, instruction string, in Input) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	}}

	if in.ImageURL != "" {
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: instruction}}
		if in.Text != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: in.Text})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: in.ImageURL, Detail: openai.ImageURLDetailAuto},
		})
		return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
	}

	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: instruction + "\n\n" + in.Text,
	})
}
