package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// DefaultTimezone is used whenever a caller supplies no usable zone.
const DefaultTimezone = "America/Los_Angeles"

//go:embed prompts.yaml
var promptCatalogue []byte

type promptVersion struct {
	ID             string `yaml:"id"`
	SystemEvent    string `yaml:"systemEvent"`
	SystemMetadata string `yaml:"systemMetadata"`
	Text           string `yaml:"text"`
	TextMetadata   string `yaml:"textMetadata"`
}

type catalogue struct {
	Current  string          `yaml:"current"`
	Versions []promptVersion `yaml:"versions"`
}

// PromptText holds the per-mode user instructions.
type PromptText struct {
	Text         string
	TextMetadata string
	Version      string
}

// Prompt is everything the generation client needs for one input.
type Prompt struct {
	SystemPromptEvent    string
	SystemPromptMetadata string
	Prompt               PromptText
	PromptVersion        string
}

// PromptProvider renders the current prompt version for a time zone.
type PromptProvider struct {
	version   promptVersion
	templates map[string]*template.Template
	now       func() time.Time
}

func NewPromptProvider(now func() time.Time) (*PromptProvider, error) {
	return newPromptProvider(promptCatalogue, now)
}

func newPromptProvider(data []byte, now func() time.Time) (*PromptProvider, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalogue: %w", err)
	}

	var selected *promptVersion
	for i := range c.Versions {
		if c.Versions[i].ID == c.Current {
			selected = &c.Versions[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("prompt version %q not found in catalogue", c.Current)
	}

	p := &PromptProvider{version: *selected, templates: map[string]*template.Template{}, now: now}
	if p.now == nil {
		p.now = time.Now
	}
	for name, text := range map[string]string{
		"systemEvent":    selected.SystemEvent,
		"systemMetadata": selected.SystemMetadata,
		"text":           selected.Text,
		"textMetadata":   selected.TextMetadata,
	} {
		tpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s/%s: %w", selected.ID, name, err)
		}
		p.templates[name] = tpl
	}
	return p, nil
}

type promptData struct {
	Timezone string
	Date     string
	Weekday  string
}

// ForTimezone never fails: unknown or empty zones fall back to DefaultTimezone
// and a template that cannot render leaves its raw text in place.
func (p *PromptProvider) ForTimezone(timezone string) Prompt {
	loc, err := time.LoadLocation(timezone)
	if timezone == "" || err != nil {
		timezone = DefaultTimezone
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			loc = time.UTC
		}
	}
	now := p.now().In(loc)
	data := promptData{
		Timezone: timezone,
		Date:     now.Format("2006-01-02"),
		Weekday:  now.Weekday().String(),
	}

	return Prompt{
		SystemPromptEvent:    p.render("systemEvent", p.version.SystemEvent, data),
		SystemPromptMetadata: p.render("systemMetadata", p.version.SystemMetadata, data),
		Prompt: PromptText{
			Text:         p.render("text", p.version.Text, data),
			TextMetadata: p.render("textMetadata", p.version.TextMetadata, data),
			Version:      p.version.ID,
		},
		PromptVersion: p.version.ID,
	}
}

func (p *PromptProvider) render(name, fallback string, data promptData) string {
	var buf bytes.Buffer
	if err := p.templates[name].Execute(&buf, data); err != nil {
		return fallback
	}
	return buf.String()
}
