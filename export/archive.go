package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"miniature_creator/blob_codec"
	"miniature_creator/entities"

	"github.com/klauspost/compress/zip"
)

// MiniatureImages is one archive folder: a miniature's name and its images
// per view, in append order.
type MiniatureImages struct {
	Name   string
	Images map[entities.View][]blob_codec.Blob
}

var viewFilePrefix = map[entities.View]string{
	entities.ViewFrontal: "01-Front",
	entities.ViewBack:    "02-Back",
	entities.ViewBase:    "03-Base",
}

var fileNameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFileName replaces characters that are invalid in file names.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

func folderName(name string) string {
	safe := SanitizeFileName(name)
	if safe == "" {
		return "Untitled"
	}

	return safe
}

// ArchiveName is the download name for a collection archive.
func ArchiveName(collectionName string, now time.Time) string {
	return fmt.Sprintf("%s-%d.zip", SanitizeFileName(collectionName), now.UnixMilli())
}

// SingleImageName is the download name for one image, e.g. "Grim Toad - Frontal.png".
func SingleImageName(dataURI, miniatureName string, view entities.View) string {
	ext := blob_codec.Extension(blob_codec.MimeType(dataURI))

	return fmt.Sprintf("%s - %s.%s", SanitizeFileName(miniatureName), view.Label(), ext)
}

// ImageFileName names the index-th of count images of a view inside a
// miniature folder. The ordinal suffix is only added when count > 1.
func ImageFileName(miniatureName string, view entities.View, index, count int, mimeType string) string {
	suffix := ""
	if count > 1 {
		suffix = fmt.Sprintf("-%02d", index+1)
	}

	return fmt.Sprintf("%s-%s%s.%s", folderName(miniatureName), viewFilePrefix[view], suffix, blob_codec.Extension(mimeType))
}

// uniqueFolder returns the folder for name, adding " (2)", " (3)", ...
// when an earlier miniature already took it.
func uniqueFolder(used map[string]bool, name string) string {
	base := folderName(name)
	folder := base

	for n := 2; used[folder]; n++ {
		folder = fmt.Sprintf("%s (%d)", base, n)
	}

	used[folder] = true

	return folder
}

// WriteArchive writes a zip with one folder per miniature. Miniatures that
// share a name get numbered folders.
func WriteArchive(w io.Writer, minis []MiniatureImages) error {
	zw := zip.NewWriter(w)
	used := make(map[string]bool, len(minis))

	for _, mini := range minis {
		folder := uniqueFolder(used, mini.Name)

		for _, view := range entities.Views {
			blobs := mini.Images[view]

			for i, blob := range blobs {
				name := folder + "/" + ImageFileName(folder, view, i, len(blobs), blob.MimeType)

				fw, err := zw.Create(name)
				if err != nil {
					_ = zw.Close()

					return fmt.Errorf("failed to add %s: %w", name, err)
				}

				if _, err := fw.Write(blob.Data); err != nil {
					_ = zw.Close()

					return fmt.Errorf("failed to write %s: %w", name, err)
				}
			}
		}
	}

	return zw.Close()
}
