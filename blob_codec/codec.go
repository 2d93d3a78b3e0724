// Package blob_codec converts between base64 data URIs, which the session
// layer keeps in memory, and the binary blobs the store persists.
package blob_codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const DefaultMimeType = "image/png"

var (
	ErrMalformedDataURI = errors.New("malformed data URI")
	ErrDecode           = errors.New("could not encode blob as data URI")
)

// Blob is binary image content together with its MIME type.
type Blob struct {
	MimeType string
	Data     []byte
}

func (b *Blob) Size() int {
	if b == nil {
		return 0
	}

	return len(b.Data)
}

var mimeRegex = regexp.MustCompile(`:(.*?);`)

// ToBinary decodes a data URI. A header without a MIME type is read as
// image/png rather than rejected.
func ToBinary(dataURI string) (*Blob, error) {
	header, payload, found := strings.Cut(dataURI, ",")
	if !found {
		return nil, fmt.Errorf("%w: missing payload separator", ErrMalformedDataURI)
	}

	mimeType := DefaultMimeType
	if m := mimeRegex.FindStringSubmatch(header); len(m) == 2 && m[1] != "" {
		mimeType = m[1]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}

	return &Blob{MimeType: mimeType, Data: data}, nil
}

// ToDataURI re-encodes a blob as a base64 data URI.
func ToDataURI(b *Blob) (string, error) {
	if b == nil {
		return "", fmt.Errorf("%w: nil blob", ErrDecode)
	}

	return encode(b.MimeType, b.Data), nil
}

// ReadDataURI drains r and encodes the content as a data URI.
func ReadDataURI(mimeType string, r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: nil reader", ErrDecode)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return encode(mimeType, data), nil
}

// MimeType returns the MIME type declared in a data URI header, falling back
// to image/png.
func MimeType(dataURI string) string {
	header, _, _ := strings.Cut(dataURI, ",")
	if m := mimeRegex.FindStringSubmatch(header); len(m) == 2 && m[1] != "" {
		return m[1]
	}

	return DefaultMimeType
}

// Extension maps a MIME type to the file extension used on export.
func Extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func encode(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
