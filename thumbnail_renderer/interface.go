package thumbnail_renderer

type Renderer interface {
	// Thumbnail downsamples the image in dataURI and returns it as a JPEG data URI.
	Thumbnail(dataURI string) (string, error)
}
