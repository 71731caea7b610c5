package process

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/models"
	"asset-downloader/pkg/utils"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// grayBackgroundImage paints a mid-gray canvas with a solid red square
// in the middle, the simplest shape every strategy should keep
func grayBackgroundImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	gray := color.NRGBA{128, 128, 128, 255}
	red := color.NRGBA{200, 30, 30, 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, gray)
		}
	}
	for y := h / 3; y < 2*h/3; y++ {
		for x := w / 3; x < 2*w/3; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	return img
}

func writeImageTask(t *testing.T, img image.Image) *models.DownloadTask {
	t.Helper()
	dest := t.TempDir()
	task := &models.DownloadTask{
		PartNumber: "P100",
		AssetType:  models.AssetTypeImage,
		Filename:   "P100.jpg",
		DestFolder: dest,
	}
	require.NoError(t, imaging.Save(img, task.DestPath(), imaging.JPEGQuality(100)))
	return task
}

func processorFor(method config.BackgroundMethod) *Processor {
	cfg := config.BackgroundConfig{
		Enabled:       true,
		Method:        method,
		Quality:       95,
		EdgeThreshold: 30,
	}
	return NewProcessor(cfg, testLogger())
}

func pixelIsWhite(t *testing.T, img image.Image, x, y int) bool {
	t.Helper()
	r, g, b, _ := img.At(x, y).RGBA()
	return r>>8 >= 230 && g>>8 >= 230 && b>>8 >= 230
}

func TestProcess_SmartDetectWhitensBorder(t *testing.T) {
	task := writeImageTask(t, grayBackgroundImage(60, 60))
	p := processorFor(config.MethodSmartDetect)

	require.NoError(t, p.Process(task))

	out, err := imaging.Open(task.DestPath())
	require.NoError(t, err)

	assert.True(t, pixelIsWhite(t, out, 1, 1), "background corner should be whitened")
	r, _, _, _ := out.At(30, 30).RGBA()
	assert.Greater(t, int(r>>8), 150, "red center should survive")
}

func TestProcess_SmartDetectLeavesInconsistentBorder(t *testing.T) {
	// Border split between two very different colors, no consensus
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x < 20 {
				img.SetNRGBA(x, y, color.NRGBA{10, 10, 10, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{220, 220, 220, 255})
			}
		}
	}
	task := writeImageTask(t, img)
	p := processorFor(config.MethodSmartDetect)

	require.NoError(t, p.Process(task))

	out, err := imaging.Open(task.DestPath())
	require.NoError(t, err)
	assert.False(t, pixelIsWhite(t, out, 1, 1), "dark half should be untouched")
}

func TestProcess_OtsuWhitensBrightBackground(t *testing.T) {
	// Bright background, dark subject
	img := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			img.SetNRGBA(x, y, color.NRGBA{210, 210, 210, 255})
		}
	}
	for y := 20; y < 40; y++ {
		for x := 20; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{40, 40, 40, 255})
		}
	}
	task := writeImageTask(t, img)
	p := processorFor(config.MethodAIRemoval)

	require.NoError(t, p.Process(task))

	out, err := imaging.Open(task.DestPath())
	require.NoError(t, err)
	assert.True(t, pixelIsWhite(t, out, 1, 1))
	assert.False(t, pixelIsWhite(t, out, 30, 30), "dark subject should survive")
}

func TestProcess_ColorReplaceWhitensLightGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{210, 210, 210, 255})
		}
	}
	for y := 15; y < 25; y++ {
		for x := 15; x < 25; x++ {
			img.SetNRGBA(x, y, color.NRGBA{30, 60, 200, 255})
		}
	}
	task := writeImageTask(t, img)
	p := processorFor(config.MethodColorReplace)

	require.NoError(t, p.Process(task))

	out, err := imaging.Open(task.DestPath())
	require.NoError(t, err)
	assert.True(t, pixelIsWhite(t, out, 1, 1))
	_, _, b, _ := out.At(20, 20).RGBA()
	assert.Greater(t, int(b>>8), 120, "blue block should survive")
}

func TestProcess_EdgeDetectionKeepsSubjectBox(t *testing.T) {
	task := writeImageTask(t, grayBackgroundImage(60, 60))
	p := processorFor(config.MethodEdgeDetection)

	require.NoError(t, p.Process(task))

	out, err := imaging.Open(task.DestPath())
	require.NoError(t, err)
	assert.True(t, pixelIsWhite(t, out, 1, 1), "far corner is outside the subject box")
	r, _, _, _ := out.At(30, 30).RGBA()
	assert.Greater(t, int(r>>8), 150, "subject should survive")
}

func TestProcess_DisabledIsNoOp(t *testing.T) {
	task := writeImageTask(t, grayBackgroundImage(20, 20))
	before, err := os.ReadFile(task.DestPath())
	require.NoError(t, err)

	p := NewProcessor(config.BackgroundConfig{Enabled: false}, testLogger())
	require.NoError(t, p.Process(task))

	after, err := os.ReadFile(task.DestPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestProcess_SkipsPDFTasks(t *testing.T) {
	dest := t.TempDir()
	task := &models.DownloadTask{
		PartNumber: "P100",
		AssetType:  models.AssetTypePDF,
		Filename:   "P100.pdf",
		DestFolder: dest,
	}
	require.NoError(t, os.WriteFile(task.DestPath(), []byte("%PDF-1.4"), 0o644))

	p := processorFor(config.MethodSmartDetect)
	require.NoError(t, p.Process(task))

	data, err := os.ReadFile(task.DestPath())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestProcess_MissingFileReturnsProcessingError(t *testing.T) {
	task := &models.DownloadTask{
		PartNumber: "P100",
		AssetType:  models.AssetTypeImage,
		Filename:   "P100.jpg",
		DestFolder: t.TempDir(),
	}

	p := processorFor(config.MethodSmartDetect)
	err := p.Process(task)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrProcessing)
}

func TestProcess_NoTempFilesLeftBehind(t *testing.T) {
	task := writeImageTask(t, grayBackgroundImage(30, 30))
	p := processorFor(config.MethodSmartDetect)
	require.NoError(t, p.Process(task))

	entries, err := os.ReadDir(task.DestFolder)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "P100.jpg", entries[0].Name())
	assert.Equal(t, filepath.Join(task.DestFolder, "P100.jpg"), task.DestPath())
}
