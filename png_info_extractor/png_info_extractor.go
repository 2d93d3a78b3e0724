// adapted from https://github.com/parsiya/Go-Security/blob/master/png-tests/png-chunk-extraction.go

package png_info_extractor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// 89 50 4E 47 0D 0A 1A 0A
var pngHeader = "\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"
var iHDRlength = 13

// maxChunkLength guards against corrupt length fields allocating gigabytes.
const maxChunkLength = 64 << 20

var ErrNotPNG = errors.New("wrong PNG header")

// promptKeywords are tEXt/iTXt keywords that tools use for the prompt, in
// order of preference.
var promptKeywords = []string{"parameters", "prompt", "Description", "Comment"}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return len(data) >= len(pngHeader) && string(data[:len(pngHeader)]) == pngHeader
}

// Each chunk starts with a uint32 length (big endian), then 4 byte name,
// then data and finally the CRC32 of the chunk data.
type chunk struct {
	Length int
	CType  string
	Data   []byte
}

func (c *chunk) populate(r io.Reader) error {
	buf := make([]byte, 4)

	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	c.Length = int(binary.BigEndian.Uint32(buf))
	if c.Length > maxChunkLength {
		return fmt.Errorf("chunk length %d exceeds limit", c.Length)
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	c.CType = string(buf)

	c.Data = make([]byte, c.Length)

	if _, err := io.ReadFull(r, c.Data); err != nil {
		return err
	}

	// CRC is not verified.
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	return nil
}

type pngFile struct {
	width  int
	height int
	chunks []*chunk
}

// https://golang.org/src/image/png/reader.go?#L142 is your friend.
func (p *pngFile) parseIHDR() error {
	if len(p.chunks) == 0 || p.chunks[0].CType != "IHDR" {
		return errors.New("missing IHDR chunk")
	}

	iHDR := p.chunks[0]
	if iHDR.Length != iHDRlength {
		return fmt.Errorf("invalid IHDR length: got %d - expected %d", iHDR.Length, iHDRlength)
	}

	p.width = int(binary.BigEndian.Uint32(iHDR.Data[0:4]))
	p.height = int(binary.BigEndian.Uint32(iHDR.Data[4:8]))

	if p.width <= 0 || p.height <= 0 {
		return fmt.Errorf("invalid dimensions in IHDR: %dx%d", p.width, p.height)
	}

	return nil
}

type extractorImpl struct {
	png *pngFile
}

type Config struct {
	PngData []byte
}

func New(cfg Config) (Extractor, error) {
	if cfg.PngData == nil {
		return nil, errors.New("png data is nil")
	}

	if !IsPNG(cfg.PngData) {
		return nil, ErrNotPNG
	}

	r := bytes.NewReader(cfg.PngData[len(pngHeader):])

	var p pngFile

	for {
		var c chunk

		err := c.populate(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			// A truncated trailer still leaves the earlier chunks usable.
			if errors.Is(err, io.ErrUnexpectedEOF) && len(p.chunks) > 0 {
				break
			}

			return nil, err
		}

		p.chunks = append(p.chunks, &c)

		if c.CType == "IEND" {
			break
		}
	}

	if err := p.parseIHDR(); err != nil {
		return nil, err
	}

	return &extractorImpl{png: &p}, nil
}

func (e *extractorImpl) Dimensions() (int, int) {
	return e.png.width, e.png.height
}

func (e *extractorImpl) EmbeddedPrompt() (string, error) {
	texts := make(map[string]string)

	for _, c := range e.png.chunks {
		switch c.CType {
		case "tEXt":
			keyword, text, found := strings.Cut(string(c.Data), "\x00")
			if found {
				texts[keyword] = text
			}
		case "iTXt":
			keyword, text, ok := parseITXt(c.Data)
			if ok {
				texts[keyword] = text
			}
		}
	}

	for _, keyword := range promptKeywords {
		text, ok := texts[keyword]
		if !ok {
			continue
		}

		// Stable Diffusion style "parameters" put settings after the first line.
		prompt, _, _ := strings.Cut(text, "\n")

		prompt = strings.TrimSpace(prompt)
		if prompt != "" {
			return prompt, nil
		}
	}

	return "", nil
}

// parseITXt handles uncompressed international text chunks:
// keyword\0 flag method language\0 translated\0 text
func parseITXt(data []byte) (string, string, bool) {
	keyword, rest, found := bytes.Cut(data, []byte{0})
	if !found || len(rest) < 2 || rest[0] != 0 {
		return "", "", false
	}

	rest = rest[2:]

	_, rest, found = bytes.Cut(rest, []byte{0})
	if !found {
		return "", "", false
	}

	_, text, found := bytes.Cut(rest, []byte{0})
	if !found {
		return "", "", false
	}

	return string(keyword), string(text), true
}
