package cmd

import (
	"fmt"
	"strings"

	"miniature_creator/identifiers"
	"miniature_creator/session"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	faintColor  = color.New(color.Faint)
	okColor     = color.New(color.FgGreen)
)

func (c *cli) newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "col"},
		Short:   "Manage collections",
	}

	cmd.AddCommand(
		c.newCollectionsListCmd(),
		c.newCollectionsCreateCmd(),
		c.newCollectionsUpdateCmd(),
		c.newCollectionsDeleteCmd(),
	)

	return cmd
}

func (c *cli) newCollectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections, oldest first",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			store, err := c.app.Store.Open(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			headerColor.Fprintf(out, "%-36s  %-24s  %5s  %s\n", "ID", "NAME", "MINIS", "UPDATED")

			for _, col := range c.app.Session.State().Collections {
				count, err := store.Miniatures.CountByCollection(cmd.Context(), col.ID)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%-36s  %-24s  %5d  %s\n", col.ID, col.Name, count, humanize.Time(col.UpdatedAt))

				if col.Description != "" {
					faintColor.Fprintf(out, "%38s%s\n", "", col.Description)
				}
			}

			return nil
		}),
	}
}

func (c *cli) newCollectionsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			col, err := c.app.Session.CreateCollection(cmd.Context(), session.CollectionInput{
				Name:        strings.Join(args, " "),
				Description: description,
			})
			if err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "created collection %s (%s)\n", col.Name, col.ID)

			return nil
		}),
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Style description sent with every generation")

	return cmd
}

func (c *cli) newCollectionsUpdateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rename a collection or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			id := identifiers.CollectionID(args[0])

			var current *session.CollectionInput

			for _, col := range c.app.Session.State().Collections {
				if col.ID == id {
					current = &session.CollectionInput{Name: col.Name, Description: col.Description}
				}
			}

			if current == nil {
				return fmt.Errorf("collection %s not found", id)
			}

			if cmd.Flags().Changed("name") {
				current.Name = name
			}

			if cmd.Flags().Changed("description") {
				current.Description = description
			}

			if err := c.app.Session.UpdateCollection(cmd.Context(), id, *current); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "updated collection %s\n", id)

			return nil
		}),
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")

	return cmd
}

func (c *cli) newCollectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			id := identifiers.CollectionID(args[0])

			deleted, err := c.app.Session.DeleteCollection(cmd.Context(), id)
			if err != nil {
				return err
			}

			if !deleted {
				for _, col := range c.app.Session.State().Collections {
					if col.ID == id {
						return fmt.Errorf("collection %s still has miniatures; move or delete them first", id)
					}
				}

				return fmt.Errorf("collection %s not found", id)
			}

			okColor.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", id)

			return nil
		}),
	}
}
