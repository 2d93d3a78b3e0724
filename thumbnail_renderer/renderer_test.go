package thumbnail_renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"miniature_creator/blob_codec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	uri, err := blob_codec.ToDataURI(&blob_codec.Blob{MimeType: "image/png", Data: buf.Bytes()})
	require.NoError(t, err)

	return uri
}

func decodeThumb(t *testing.T, uri string) image.Image {
	t.Helper()

	blob, err := blob_codec.ToBinary(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", blob.MimeType)

	img, err := jpeg.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)

	return img
}

func TestThumbnailPreservesAspectRatio(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)

	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"landscape", 256, 128, 64, 32},
		{"portrait", 100, 400, 16, 64},
		{"square", 64, 64, 64, 64},
		{"small image scales up", 16, 8, 64, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thumb, err := r.Thumbnail(pngDataURI(t, tt.width, tt.height))
			require.NoError(t, err)

			b := decodeThumb(t, thumb).Bounds()
			assert.Equal(t, tt.wantW, b.Dx())
			assert.Equal(t, tt.wantH, b.Dy())
		})
	}
}

func TestThumbnailCustomSize(t *testing.T) {
	r, err := New(Config{MaxSize: 10, Quality: 50})
	require.NoError(t, err)

	thumb, err := r.Thumbnail(pngDataURI(t, 40, 20))
	require.NoError(t, err)

	b := decodeThumb(t, thumb).Bounds()
	assert.Equal(t, 10, b.Dx())
	assert.Equal(t, 5, b.Dy())
}

func TestThumbnailErrors(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)

	_, err = r.Thumbnail("data:image/png;base64,bm90IGFuIGltYWdl")
	assert.ErrorIs(t, err, ErrThumbnail)

	_, err = r.Thumbnail("garbage")
	assert.ErrorIs(t, err, ErrThumbnail)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Quality: 101})
	assert.Error(t, err)

	_, err = New(Config{MaxSize: -1})
	assert.Error(t, err)
}
