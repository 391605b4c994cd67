package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	// 2025-03-07 03:00 UTC is still Thursday the 6th in Los Angeles.
	return time.Date(2025, 3, 7, 3, 0, 0, 0, time.UTC)
}

func TestPromptForTimezone(t *testing.T) {
	p, err := NewPromptProvider(fixedClock)
	require.NoError(t, err)

	got := p.ForTimezone("Europe/Berlin")

	assert.Equal(t, "2025-02-event-v3", got.PromptVersion)
	assert.Equal(t, got.PromptVersion, got.Prompt.Version)
	assert.Contains(t, got.SystemPromptEvent, "Friday, 2025-03-07")
	assert.Contains(t, got.SystemPromptEvent, "Europe/Berlin")
	assert.Contains(t, got.SystemPromptMetadata, "2025-03-07")
	assert.Contains(t, got.Prompt.Text, "Europe/Berlin")
	assert.NotEmpty(t, got.Prompt.TextMetadata)
}

func TestPromptFallsBackToDefaultTimezone(t *testing.T) {
	p, err := NewPromptProvider(fixedClock)
	require.NoError(t, err)

	for _, tz := range []string{"", "Mars/Olympus_Mons"} {
		got := p.ForTimezone(tz)
		assert.Contains(t, got.SystemPromptEvent, DefaultTimezone, tz)
		assert.Contains(t, got.SystemPromptEvent, "Thursday, 2025-03-06", tz)
	}
}

func TestPromptCatalogueErrors(t *testing.T) {
	_, err := newPromptProvider([]byte("current: missing\nversions: []\n"), fixedClock)
	assert.ErrorContains(t, err, `"missing" not found`)

	_, err = newPromptProvider([]byte("current: [unclosed"), fixedClock)
	assert.Error(t, err)

	bad := `
current: v1
versions:
  - id: v1
    systemEvent: "{{.Timezone"
`
	_, err = newPromptProvider([]byte(bad), fixedClock)
	assert.ErrorContains(t, err, "parse prompt v1/systemEvent")
}
