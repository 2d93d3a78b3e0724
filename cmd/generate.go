package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"miniature_creator/blob_codec"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/session"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

type targetFlags struct {
	mini       string
	collection string
	view       string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mini, "mini", "m", "", "Miniature to add to (a new one when empty)")
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "Collection for a new miniature")
	cmd.Flags().StringVarP(&f.view, "view", "v", string(entities.ViewFrontal), "View: frontal, back or base")
}

// openTarget positions the session on the requested miniature, creating one when
// no id is given.
func (c *cli) openTarget(ctx context.Context, f *targetFlags) (entities.View, error) {
	view, err := entities.ParseView(f.view)
	if err != nil {
		return "", err
	}

	if f.mini != "" {
		return view, c.load(ctx, identifiers.MiniatureID(f.mini))
	}

	_, err = c.app.Session.NewMiniature(ctx, identifiers.CollectionID(f.collection))

	return view, err
}

func (c *cli) newGenerateCmd() *cobra.Command {
	var (
		target      targetFlags
		model       string
		attachments []string
	)

	cmd := &cobra.Command{
		Use:   "generate [PROMPT]",
		Short: "Generate an image for one view of a miniature",
		Long: `Generate an image with Gemini and add it to a view.

The back view uses the selected frontal image as its reference and may be run
without a prompt.`,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			view, err := c.openTarget(ctx, &target)
			if err != nil {
				return err
			}

			if model != "" {
				if err := c.app.Session.SetModel(entities.GeminiModel(model)); err != nil {
					return err
				}
			}

			refs, err := readAttachments(attachments)
			if err != nil {
				return err
			}

			result, err := c.app.Session.Generate(ctx, session.GenerateRequest{
				View:        view,
				Prompt:      strings.Join(args, " "),
				Attachments: refs,
			})
			if err != nil {
				return err
			}

			if !result.Success {
				return fmt.Errorf("generation failed: %s", result.Error)
			}

			okColor.Fprintf(cmd.OutOrStdout(), "%s image %s added to %s\n",
				view.Label(), result.ImageID, c.app.Session.State().CurrentMiniatureID)

			return nil
		}),
	}

	target.register(cmd)
	cmd.Flags().StringVar(&model, "model", "", "Gemini model for this miniature")
	cmd.Flags().StringArrayVarP(&attachments, "attach", "a", nil, "Extra reference image file (repeatable)")

	return cmd
}

func readAttachments(paths []string) ([]string, error) {
	refs := make([]string, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		mime := mimetype.Detect(data)
		if !strings.HasPrefix(mime.String(), "image/") {
			return nil, fmt.Errorf("%s is not an image (%s)", path, mime.String())
		}

		uri, err := blob_codec.ToDataURI(&blob_codec.Blob{MimeType: mime.String(), Data: data})
		if err != nil {
			return nil, err
		}

		refs = append(refs, uri)
	}

	return refs, nil
}

func (c *cli) newImportCmd() *cobra.Command {
	var target targetFlags

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an image file into a view",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			view, err := c.openTarget(cmd.Context(), &target)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			id, err := c.app.Session.ImportImage(view, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "%s image %s added to %s\n",
				view.Label(), id, c.app.Session.State().CurrentMiniatureID)

			return nil
		}),
	}

	target.register(cmd)

	return cmd
}

func (c *cli) newSelectCmd() *cobra.Command {
	var view string

	cmd := &cobra.Command{
		Use:   "select MINI_ID IMAGE_ID",
		Short: "Select the image a view of a miniature uses",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			v, err := entities.ParseView(view)
			if err != nil {
				return err
			}

			if err := c.load(cmd.Context(), identifiers.MiniatureID(args[0])); err != nil {
				return err
			}

			imageID := identifiers.ImageID(args[1])
			if err := c.app.Session.SelectImage(v, imageID); err != nil {
				return err
			}

			st := c.app.Session.State()
			if st.View(v).SelectedImageID != imageID {
				return fmt.Errorf("image %s is not a %s image of %s", imageID, v, args[0])
			}

			okColor.Fprintf(cmd.OutOrStdout(), "selected %s\n", imageID)

			return nil
		}),
	}

	cmd.Flags().StringVarP(&view, "view", "v", string(entities.ViewFrontal), "View: frontal, back or base")

	return cmd
}
