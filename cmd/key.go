package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Gemini API key",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set KEY",
			Short: "Save the Gemini API key",
			Args:  cobra.ExactArgs(1),
			RunE: c.run(func(cmd *cobra.Command, args []string) error {
				if err := c.app.Session.SetAPIKey(cmd.Context(), args[0]); err != nil {
					return err
				}

				okColor.Fprintln(cmd.OutOrStdout(), "api key saved")

				return nil
			}),
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the saved key, masked",
			Args:  cobra.NoArgs,
			RunE: c.run(func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), maskKey(c.app.Session.State().APIKey))

				return nil
			}),
		},
	)

	return cmd
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 8 {
		return "****"
	}

	return key[:4] + "****" + key[len(key)-4:]
}
