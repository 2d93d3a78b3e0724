package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"miniature_creator/app"
	"miniature_creator/blob_codec"
	"miniature_creator/gemini_api"

	fcolor "github.com/fatih/color"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	dataURI string
}

func (g stubGenerator) GenerateImage(context.Context, *gemini_api.Request) gemini_api.Result {
	return gemini_api.Result{Success: true, DataURI: g.dataURI}
}

func pngURI(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	uri, err := blob_codec.ToDataURI(&blob_codec.Blob{MimeType: "image/png", Data: buf.Bytes()})
	require.NoError(t, err)

	return uri
}

type harness struct {
	t    *testing.T
	opts app.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fcolor.NoColor = true
	t.Setenv("UMC_DB_PATH", filepath.Join(t.TempDir(), "cli.sqlite"))
	t.Setenv("UMC_LOG_LEVEL", "error")
	t.Setenv("GEMINI_API_KEY", "")

	return &harness{t: t, opts: app.Options{Generator: stubGenerator{dataURI: pngURI(t)}}}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()

	out := new(bytes.Buffer)

	root := NewRootCmd(h.opts)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(args...)
	require.NoError(h.t, err, out)

	return out
}

var createdRegex = regexp.MustCompile(`created collection .* \((\S+)\)`)

func TestCollectionsLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("collections", "create", "Swamp", "Folk", "-d", "murky greens")
	m := createdRegex.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	out = h.mustRun("collections", "list")
	assert.Contains(t, out, "Example collection")
	assert.Contains(t, out, "Swamp Folk")
	assert.Contains(t, out, "murky greens")

	h.mustRun("collections", "update", id, "--name", "Bog")
	assert.Contains(t, h.mustRun("collections", "list"), "Bog")

	_, err := h.run("collections", "update", "missing", "--name", "x")
	assert.Error(t, err)

	h.mustRun("collections", "delete", id)
	assert.NotContains(t, h.mustRun("collections", "list"), "Bog")

	_, err = h.run("collections", "delete", id)
	assert.ErrorContains(t, err, "not found")
}

func TestKeyCommands(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.mustRun("key", "show"), "(not set)")

	_, err := h.run("key", "set", "sk-wrong")
	assert.Error(t, err)

	h.mustRun("key", "set", "AIzaSyExample1234")
	assert.Contains(t, h.mustRun("key", "show"), "AIza****1234")
}

func TestGenerateAndExport(t *testing.T) {
	h := newHarness(t)
	outDir := t.TempDir()

	_, err := h.run("generate", "a", "goblin")
	assert.Error(t, err, "no api key yet")

	h.mustRun("key", "set", "AIzaSyExample1234")

	m := createdRegex.FindStringSubmatch(h.mustRun("collections", "create", "Goblins"))
	require.Len(t, m, 2)
	collectionID := m[1]

	out := h.mustRun("generate", "--collection", collectionID, "a", "goblin")
	assert.Contains(t, out, "Frontal image")

	list := h.mustRun("minis", "list", "--collection", collectionID)
	assert.Contains(t, list, "Goblins")

	_, err = h.run("collections", "delete", collectionID)
	assert.Error(t, err, "collection is not empty")

	out = h.mustRun("export", "collection", collectionID, "--out", outDir)
	assert.Contains(t, out, "wrote")

	archives, err := filepath.Glob(filepath.Join(outDir, "Goblins-*.zip"))
	require.NoError(t, err)
	require.Len(t, archives, 1)

	data, err := os.ReadFile(archives[0])
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Regexp(t, `^[^/]+/[^/]+-01-Front\.png$`, zr.File[0].Name)
}

func TestMigrateReportsVersion(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("migrate")
	assert.Contains(t, out, "schema version 9 of 9")
	assert.Contains(t, out, "default collection created: true")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskKey(""))
	assert.Equal(t, "****", maskKey("AIza"))
	assert.Equal(t, "AIza****wxyz", maskKey("AIzaSyABCDwxyz"))
}
