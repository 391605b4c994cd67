package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soonlist/soonlist-backend/config"
)

type rootOptions struct {
	Verbose bool
	cfg     *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "soonlist",
		Short: "Soonlist event capture backend",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.cfg = config.Load()
			setupLogging(opts.cfg, opts.Verbose)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newExtractCommand(opts))
	return cmd
}

func setupLogging(cfg *config.Config, verbose bool) {
	log.SetOutput(os.Stdout)
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("❌ command failed")
		os.Exit(1)
	}
}
