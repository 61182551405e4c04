package sacoprep

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePNG encodes a w-by-h PNG at path, creating parent directories.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func extractionConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataRoot = t.TempDir()
	return cfg
}

func TestExtractImages(t *testing.T) {
	cfg := extractionConfig(t)
	writePNG(t, filepath.Join(cfg.PositivePath(), "a.png"), 20, 10)
	writePNG(t, filepath.Join(cfg.NegativePath(), "b.png"), 5, 5)
	writePNG(t, filepath.Join(cfg.ImagesPath(), "c.png"), 8, 8)

	result, err := ExtractImages(cfg)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Images, 3)

	byStem := map[string]*ExtractedImage{}
	for _, stem := range []string{"a", "b", "c"} {
		img, ok := result.resolveImage(stem)
		require.True(t, ok, "stem %q", stem)
		byStem[stem] = img
	}

	a := byStem["a"].Record
	assert.Equal(t, "raw_data/images/chicken/a.png", a.FileName)
	assert.Equal(t, 20, a.Width)
	assert.Equal(t, 10, a.Height)
	assert.Equal(t, "chicken", a.TextInput)
	assert.True(t, a.IsInstanceExhaustive)
	assert.False(t, byStem["a"].Negative)

	assert.Equal(t, "raw_data/images/not_chicken/b.png", byStem["b"].Record.FileName)
	assert.True(t, byStem["b"].Negative)

	assert.Equal(t, "raw_data/images/c.png", byStem["c"].Record.FileName)
	assert.False(t, byStem["c"].Negative)

	// Ids derive from the base file name alone, so reruns over an unchanged
	// tree reproduce them.
	assert.Equal(t, imageID("a.png"), a.ID)
	assert.Equal(t, imageID("b.png"), byStem["b"].Record.ID)

	_, ok := result.resolveImage("nonexistent")
	assert.False(t, ok)
}

func TestExtractImagesStemPrecedence(t *testing.T) {
	// The same stem in the positive directory and the flat images root: the
	// class-partitioned copy wins and the root copy is skipped entirely.
	cfg := extractionConfig(t)
	writePNG(t, filepath.Join(cfg.PositivePath(), "dup.png"), 30, 30)
	writePNG(t, filepath.Join(cfg.ImagesPath(), "dup.png"), 99, 99)

	result, err := ExtractImages(cfg)
	require.NoError(t, err)
	require.Len(t, result.Images, 1)

	img, ok := result.resolveImage("dup")
	require.True(t, ok)
	assert.Equal(t, "raw_data/images/chicken/dup.png", img.Record.FileName)
	assert.Equal(t, 30, img.Record.Width)
}

func TestExtractImagesRecordsCorruptFiles(t *testing.T) {
	cfg := extractionConfig(t)
	writePNG(t, filepath.Join(cfg.PositivePath(), "good.png"), 10, 10)

	badPath := filepath.Join(cfg.PositivePath(), "bad.jpg")
	require.NoError(t, os.WriteFile(badPath, []byte("not an image"), 0644))

	result, err := ExtractImages(cfg)
	require.NoError(t, err, "an unreadable file must not abort the pass")

	require.Len(t, result.Images, 1)
	assert.Equal(t, "raw_data/images/chicken/good.png", result.Images[0].Record.FileName)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad.jpg")

	_, ok := result.resolveImage("bad")
	assert.False(t, ok)
}

func TestExtractImagesSkipsNonImageFiles(t *testing.T) {
	cfg := extractionConfig(t)
	writePNG(t, filepath.Join(cfg.PositivePath(), "a.png"), 10, 10)
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.PositivePath(), "notes.txt"), []byte("readme"), 0644))

	result, err := ExtractImages(cfg)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Images, 1)
}

func TestExtractImagesEmptyTree(t *testing.T) {
	// Missing class directories are not an error; they just contribute
	// nothing.
	result, err := ExtractImages(extractionConfig(t))
	require.NoError(t, err)
	assert.Empty(t, result.Images)
	assert.Empty(t, result.Errors)
}

func TestImageIDStability(t *testing.T) {
	id := imageID("frame_0001.png")
	assert.Equal(t, id, imageID("frame_0001.png"))
	assert.NotEqual(t, id, imageID("frame_0002.png"))

	// Ids fit in a signed 32-bit integer.
	assert.GreaterOrEqual(t, id, 0)
	assert.LessOrEqual(t, id, 0x7fffffff)
}

func TestIDRegistryCollision(t *testing.T) {
	ids := make(idRegistry)

	first, err := ids.assign("a.png")
	require.NoError(t, err)

	// Re-registering the same name is fine and returns the same id.
	again, err := ids.assign("a.png")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A different name mapped to an already-taken id is a hard error.
	taken := idRegistry{imageID("b.png"): "other.png"}
	_, err = taken.assign("b.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision")
	assert.Contains(t, err.Error(), "b.png")
	assert.Contains(t, err.Error(), "other.png")
}
