package thumbnail_renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"miniature_creator/blob_codec"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSize = 64
	DefaultQuality = 70
)

var ErrThumbnail = errors.New("thumbnail rendering failed")

type rendererImpl struct {
	maxSize int
	quality int
}

type Config struct {
	MaxSize int
	Quality int
}

func New(cfg Config) (Renderer, error) {
	if cfg.MaxSize < 0 {
		return nil, errors.New("invalid thumbnail max size")
	}

	if cfg.Quality < 0 || cfg.Quality > 100 {
		return nil, errors.New("invalid thumbnail quality")
	}

	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	if cfg.Quality == 0 {
		cfg.Quality = DefaultQuality
	}

	return &rendererImpl{
		maxSize: cfg.MaxSize,
		quality: cfg.Quality,
	}, nil
}

func (r *rendererImpl) Thumbnail(dataURI string) (string, error) {
	blob, err := blob_codec.ToBinary(dataURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrThumbnail, err)
	}

	src, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return "", fmt.Errorf("%w: failed to load image: %v", ErrThumbnail, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", fmt.Errorf("%w: empty image", ErrThumbnail)
	}

	width, height := scaledSize(bounds.Dx(), bounds.Dy(), r.maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	// JPEG has no alpha channel; transparent miniature backgrounds become white.
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	buf := new(bytes.Buffer)

	err = jpeg.Encode(buf, dst, &jpeg.Options{Quality: r.quality})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrThumbnail, err)
	}

	return blob_codec.ToDataURI(&blob_codec.Blob{MimeType: "image/jpeg", Data: buf.Bytes()})
}

// scaledSize fits width x height inside a maxSize square, preserving the
// aspect ratio. Images smaller than the box are scaled up to touch it.
func scaledSize(width, height, maxSize int) (int, int) {
	ratio := math.Min(float64(maxSize)/float64(width), float64(maxSize)/float64(height))

	w := int(math.Round(float64(width) * ratio))
	h := int(math.Round(float64(height) * ratio))

	return max(w, 1), max(h, 1)
}
