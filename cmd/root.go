package cmd

import (
	"fmt"
	"os"

	"miniature_creator/app"
	"miniature_creator/config"
	"miniature_creator/logging"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cli struct {
	opts    app.Options
	cfgFile string
	app     *app.App
}

func NewRootCmd(opts app.Options) *cobra.Command {
	c := &cli{opts: opts}

	cmd := &cobra.Command{
		Use:   "miniature-creator",
		Short: "Design paper miniatures with Gemini image generation",
		Long: `miniature-creator keeps a local library of paper miniatures.

Each miniature has a frontal, a back and a base view; images are generated with
Gemini or imported from disk, and collections can be exported as zip archives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			return c.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file (environment only when empty)")

	cmd.AddCommand(
		c.newCollectionsCmd(),
		c.newMinisCmd(),
		c.newGenerateCmd(),
		c.newImportCmd(),
		c.newSelectCmd(),
		c.newExportCmd(),
		c.newKeyCmd(),
		c.newMigrateCmd(),
	)

	return cmd
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}

	c.app, err = app.New(cmd.Context(), cfg, log, c.opts)

	return err
}

// close waits for background writes and reports the ones that failed.
func (c *cli) close(cmd *cobra.Command) error {
	if c.app == nil {
		return nil
	}

	c.app.Session.Flush()

	warn := color.New(color.FgRed)

drain:
	for {
		select {
		case f := <-c.app.Session.Failures():
			warn.Fprintf(cmd.ErrOrStderr(), "background %s failed for %s: %v\n", f.Task, f.MiniatureID, f.Err)
		default:
			break drain
		}
	}

	err := c.app.Close()
	c.app = nil

	return err
}

// run closes the app when fn fails; cobra skips the post-run hook then.
func (c *cli) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			_ = c.close(cmd)
		}

		return err
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(app.Options{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
