package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soonlist/soonlist-backend/config"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "extract"})
}

func TestExtractInput(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		in, err := (&extractOptions{Timezone: "Europe/Berlin", Text: "Jazz Night"}).input()
		require.NoError(t, err)
		assert.Equal(t, "Jazz Night", in.RawText)
		assert.Equal(t, "Europe/Berlin", in.Timezone)
		assert.Empty(t, in.Base64Image)
	})

	t.Run("image file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flyer.png")
		require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))

		in, err := (&extractOptions{Image: path}).input()
		require.NoError(t, err)
		assert.Equal(t, "iVBORw0KGgo=", in.Base64Image)
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := (&extractOptions{Image: filepath.Join(t.TempDir(), "nope.png")}).input()
		assert.Error(t, err)
	})
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"migrate", "sideways"})
	root.SetOut(os.Stderr)
	assert.Error(t, root.Execute())
}

func TestServeRefusesMissingJWTSecret(t *testing.T) {
	err := serve(context.Background(), &rootOptions{cfg: &config.Config{Port: "0"}}, false)
	assert.ErrorIs(t, err, config.ErrJWTSecret)

	err = serve(context.Background(), &rootOptions{cfg: &config.Config{Port: "0", JWTSecret: "short"}}, false)
	assert.Error(t, err)
}
