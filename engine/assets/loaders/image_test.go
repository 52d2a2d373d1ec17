package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageLoaderDecodesToRGBA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.png")
	writePNG(t, path, 2, 2)

	res, err := (&ImageLoader{}).Load(path, metadata.ResourceTypeImage, nil)
	require.NoError(t, err)
	data, ok := res.Data.(*metadata.ImageData)
	require.True(t, ok)
	assert.Equal(t, "default", data.Name)
	assert.Equal(t, uint32(2), data.Width)
	assert.Equal(t, uint32(2), data.Height)
	assert.Equal(t, uint8(4), data.ChannelCount)
	assert.Len(t, data.Pixels, 16)
	assert.Equal(t, []byte{255, 0, 0, 255}, data.Pixels[4:8])
}

func TestImageLoaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := (&ImageLoader{}).Load(path, metadata.ResourceTypeImage, nil)
	assert.ErrorIs(t, err, core.ErrParseFailed)
}

func TestToImageDataSubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{G: 200, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	data := ToImageData("sub", sub)
	assert.Equal(t, uint32(2), data.Width)
	assert.Len(t, data.Pixels, 16)
	assert.Equal(t, []byte{0, 200, 0, 255}, data.Pixels[0:4])
}
