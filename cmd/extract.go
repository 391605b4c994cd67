package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soonlist/soonlist-backend/internal/pipeline"
)

type extractOptions struct {
	Timezone string
	Text     string
	URL      string
	Image    string
}

// newExtractCommand runs generation only and prints the structured event.
// Nothing is persisted or uploaded.
func newExtractCommand(root *rootOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract an event from text, a URL or an image without saving it",
		Example: `  soonlist extract --text "Jazz Night at The Chapel, March 14, 7-10pm"
  soonlist extract --url https://example.com/show --timezone Europe/Berlin
  soonlist extract --image ./flyer.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := opts.input()
			if err != nil {
				return err
			}

			gen, prompts, reader, traces, err := newGeneration(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			if traces != nil {
				defer traces.Shutdown(cmd.Context())
			}

			svc := pipeline.NewService(pipeline.Deps{Generator: gen, Prompts: prompts, Fetcher: reader})
			out, err := svc.Extract(cmd.Context(), in)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "America/Los_Angeles", "IANA zone used to resolve relative dates")
	cmd.Flags().StringVar(&opts.Text, "text", "", "raw event text")
	cmd.Flags().StringVar(&opts.URL, "url", "", "page to read the event from")
	cmd.Flags().StringVar(&opts.Image, "image", "", "path to an image file")
	cmd.MarkFlagsMutuallyExclusive("text", "url", "image")
	cmd.MarkFlagsOneRequired("text", "url", "image")
	return cmd
}

func (o *extractOptions) input() (pipeline.Input, error) {
	in := pipeline.Input{UserID: "cli", Username: "cli", Timezone: o.Timezone, RawText: o.Text, URL: o.URL}
	if o.Image != "" {
		data, err := os.ReadFile(o.Image)
		if err != nil {
			return in, fmt.Errorf("read image: %w", err)
		}
		in.Base64Image = base64.StdEncoding.EncodeToString(data)
	}
	return in, nil
}
