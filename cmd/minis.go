package cmd

import (
	"context"
	"fmt"
	"strings"

	"miniature_creator/entities"
	"miniature_creator/identifiers"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *cli) newMinisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "minis",
		Aliases: []string{"mini", "miniatures"},
		Short:   "Manage miniatures",
	}

	cmd.AddCommand(
		c.newMinisListCmd(),
		c.newMinisShowCmd(),
		c.newMinisRenameCmd(),
		c.newMinisMoveCmd(),
		c.newMinisDeleteCmd(),
	)

	return cmd
}

func (c *cli) newMinisListCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List miniatures",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			st := c.app.Session.State()

			collectionNames := make(map[identifiers.CollectionID]string, len(st.Collections))
			for _, col := range st.Collections {
				collectionNames[col.ID] = col.Name
			}

			headerColor.Fprintf(out, "%-36s  %-24s  %-20s  %s\n", "ID", "NAME", "COLLECTION", "UPDATED")

			for _, m := range st.Miniatures {
				if collection != "" && m.CollectionID != identifiers.CollectionID(collection) {
					continue
				}

				colName, ok := collectionNames[m.CollectionID]
				if !ok {
					colName = "-"
				}

				fmt.Fprintf(out, "%-36s  %-24s  %-20s  %s\n", m.ID, m.Name, colName, humanize.Time(m.UpdatedAt))
			}

			return nil
		}),
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Only list miniatures in this collection")

	return cmd
}

// load opens the miniature in the session or fails when it does not exist.
func (c *cli) load(ctx context.Context, id identifiers.MiniatureID) error {
	if err := c.app.Session.LoadMiniature(ctx, id); err != nil {
		return err
	}

	if c.app.Session.State().CurrentMiniatureID != id {
		return fmt.Errorf("miniature %s not found", id)
	}

	return nil
}

func (c *cli) newMinisShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a miniature's images per view",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			id := identifiers.MiniatureID(args[0])
			if err := c.load(cmd.Context(), id); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := c.app.Session.State()

			meta, _ := st.CurrentMiniature()
			headerColor.Fprintf(out, "%s (%s, model %s)\n", meta.Name, id, st.GeminiModel)

			for _, view := range entities.Views {
				vs := st.View(view)

				fmt.Fprintf(out, "%s: %d image(s)\n", view.Label(), len(vs.Images))

				for _, img := range vs.Images {
					marker := " "
					if img.ID == vs.SelectedImageID {
						marker = okColor.Sprint("*")
					}

					fmt.Fprintf(out, "  %s %s  %s  %s\n", marker, img.ID, humanize.Time(img.Timestamp), img.Prompt)
				}
			}

			return nil
		}),
	}
}

func (c *cli) newMinisRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a miniature",
		Args:  cobra.MinimumNArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			id := identifiers.MiniatureID(args[0])
			name := strings.Join(args[1:], " ")

			if err := c.app.Session.RenameMiniature(cmd.Context(), id, name); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "renamed %s\n", id)

			return nil
		}),
	}
}

func (c *cli) newMinisMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move ID COLLECTION_ID",
		Short: "Move a miniature to another collection",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			id := identifiers.MiniatureID(args[0])
			collection := identifiers.CollectionID(args[1])

			if err := c.app.Session.MoveMiniToCollection(cmd.Context(), id, collection); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "moved %s\n", id)

			return nil
		}),
	}
}

func (c *cli) newMinisDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a miniature and all of its images",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			id := identifiers.MiniatureID(args[0])

			if err := c.app.Session.DeleteMiniature(cmd.Context(), id); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)

			return nil
		}),
	}
}
