package blob_codec

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestRoundTrip(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10}

	tests := []struct {
		name string
		mime string
	}{
		{"png", "image/png"},
		{"jpeg", "image/jpeg"},
		{"webp", "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri := "data:" + tt.mime + ";base64," + base64.StdEncoding.EncodeToString(payload)

			blob, err := ToBinary(uri)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, blob.MimeType)
			assert.Equal(t, payload, blob.Data)

			back, err := ToDataURI(blob)
			require.NoError(t, err)
			assert.Equal(t, uri, back)
		})
	}
}

func TestToBinaryDefaultsMimeType(t *testing.T) {
	blob, err := ToBinary("data:base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, DefaultMimeType, blob.MimeType)
	assert.Equal(t, []byte("abc"), blob.Data)
}

func TestToBinaryMalformed(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"no separator", "data:image/png;base64"},
		{"bad base64", "data:image/png;base64,@@@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToBinary(tt.uri)
			assert.ErrorIs(t, err, ErrMalformedDataURI)
		})
	}
}

func TestToDataURINil(t *testing.T) {
	_, err := ToDataURI(nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReadDataURI(t *testing.T) {
	uri, err := ReadDataURI("image/jpeg", strings.NewReader("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,eHl6", uri)

	_, err = ReadDataURI("image/png", failingReader{})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jpg", Extension(MimeType("data:image/jpeg;base64,AA==")))
	assert.Equal(t, "webp", Extension("image/webp"))
	assert.Equal(t, "png", Extension("image/gif"))
	assert.Equal(t, "png", Extension(MimeType("nonsense")))
}
