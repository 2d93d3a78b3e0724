package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"miniature_creator/blob_codec"
	"miniature_creator/entities"
	"miniature_creator/export"
	"miniature_creator/identifiers"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *cli) newExportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export images to disk",
	}

	cmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "Output directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "collection ID",
			Short: "Write every image of a collection to a zip archive",
			Args:  cobra.ExactArgs(1),
			RunE: c.run(func(cmd *cobra.Command, args []string) error {
				buf := new(bytes.Buffer)

				name, err := c.app.Exporter.ExportCollection(cmd.Context(), identifiers.CollectionID(args[0]), buf)
				if err != nil {
					return err
				}

				path := filepath.Join(outDir, name)
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return err
				}

				okColor.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, humanize.Bytes(uint64(buf.Len())))

				return nil
			}),
		},
		&cobra.Command{
			Use:   "image MINI_ID VIEW",
			Short: "Write the selected image of one view",
			Args:  cobra.ExactArgs(2),
			RunE: c.run(func(cmd *cobra.Command, args []string) error {
				view, err := entities.ParseView(args[1])
				if err != nil {
					return err
				}

				if err := c.load(cmd.Context(), identifiers.MiniatureID(args[0])); err != nil {
					return err
				}

				img, ok := c.app.Session.SelectedImage(view)
				if !ok {
					return fmt.Errorf("%s has no %s image", args[0], view)
				}

				blob, err := blob_codec.ToBinary(img.DataURI)
				if err != nil {
					return err
				}

				st := c.app.Session.State()
				meta, _ := st.CurrentMiniature()

				path := filepath.Join(outDir, export.SingleImageName(img.DataURI, meta.Name, view))
				if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
					return err
				}

				okColor.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(blob.Data))))

				return nil
			}),
		},
	)

	return cmd
}
