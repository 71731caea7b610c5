package process

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/models"
	"asset-downloader/pkg/utils"
)

// Processor rewrites downloaded images with their background replaced
// by white, then re-encodes them as JPEG at the configured quality.
// Only image tasks are touched; PDFs pass through untouched.
type Processor struct {
	cfg config.BackgroundConfig
	log *logrus.Logger
}

func NewProcessor(cfg config.BackgroundConfig, log *logrus.Logger) *Processor {
	return &Processor{cfg: cfg, log: log}
}

// Enabled reports whether processing is switched on in the config.
func (p *Processor) Enabled() bool {
	return p.cfg.Enabled
}

// Process applies the configured background strategy to the task's
// file in place. The rewrite goes through a temp file and a rename so
// the original survives any mid-processing failure.
func (p *Processor) Process(task *models.DownloadTask) error {
	if !p.cfg.Enabled || task.AssetType != models.AssetTypeImage {
		return nil
	}

	path := task.DestPath()
	src, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("%w: decoding %q: %v", utils.ErrProcessing, path, err)
	}

	out := p.apply(src, task)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".proc-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %q: %v", utils.ErrProcessing, path, err)
	}
	tmpPath := tmp.Name()

	encodeErr := imaging.Encode(tmp, out, imaging.JPEG, imaging.JPEGQuality(p.cfg.Quality))
	closeErr := tmp.Close()
	if encodeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if encodeErr == nil {
			encodeErr = closeErr
		}
		return fmt.Errorf("%w: encoding %q: %v", utils.ErrProcessing, path, encodeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing %q: %v", utils.ErrProcessing, path, err)
	}
	return nil
}

func (p *Processor) apply(src image.Image, task *models.DownloadTask) image.Image {
	switch p.cfg.Method {
	case config.MethodSmartDetect:
		return smartDetect(src)
	case config.MethodAIRemoval:
		return otsuRemoval(src)
	case config.MethodColorReplace:
		return colorReplace(src)
	case config.MethodEdgeDetection:
		return edgeDetection(src, p.cfg.EdgeThreshold)
	default:
		p.log.WithField("method", p.cfg.Method).Warn("Unknown background method, leaving image unchanged")
		return src
	}
}

const (
	channelTolerance  = 30
	borderConsistency = 0.6
	replaceFraction   = 0.1
)

// smartDetect samples the image border, and when enough of it agrees
// on one color treats that color as the background and paints every
// pixel near it white. Images without a consistent border come back
// unchanged.
func smartDetect(src image.Image) image.Image {
	img := imaging.Clone(src)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return img
	}

	var sumR, sumG, sumB, n int
	sample := func(x, y int) {
		r, g, bl := nrgbaAt(img, x, y)
		sumR += r
		sumG += g
		sumB += bl
		n++
	}
	for x := 0; x < w; x++ {
		sample(x, 0)
		sample(x, h-1)
	}
	for y := 1; y < h-1; y++ {
		sample(0, y)
		sample(w-1, y)
	}
	avgR, avgG, avgB := sumR/n, sumG/n, sumB/n

	near := 0
	for x := 0; x < w; x++ {
		if nearColor(img, x, 0, avgR, avgG, avgB) {
			near++
		}
		if nearColor(img, x, h-1, avgR, avgG, avgB) {
			near++
		}
	}
	for y := 1; y < h-1; y++ {
		if nearColor(img, 0, y, avgR, avgG, avgB) {
			near++
		}
		if nearColor(img, w-1, y, avgR, avgG, avgB) {
			near++
		}
	}
	if float64(near)/float64(n) < borderConsistency {
		return img
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if nearColor(img, x, y, avgR, avgG, avgB) {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

// otsuRemoval separates foreground from background with an Otsu
// threshold over the luminance histogram, whitening the side the
// border belongs to. A degenerate histogram falls back to smartDetect.
func otsuRemoval(src image.Image) image.Image {
	img := imaging.Clone(src)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return img
	}

	var hist [256]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hist[luminance(img, x, y)]++
		}
	}

	threshold, ok := otsuThreshold(hist[:], w*h)
	if !ok {
		return smartDetect(src)
	}

	// Whichever side of the threshold the border lives on is the
	// background
	var borderSum, borderN int
	for x := 0; x < w; x++ {
		borderSum += luminance(img, x, 0) + luminance(img, x, h-1)
		borderN += 2
	}
	for y := 1; y < h-1; y++ {
		borderSum += luminance(img, 0, y) + luminance(img, w-1, y)
		borderN += 2
	}
	brightBackground := borderSum/borderN >= threshold

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lum := luminance(img, x, y)
			if (brightBackground && lum >= threshold) || (!brightBackground && lum < threshold) {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func otsuThreshold(hist []int, total int) (int, bool) {
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var sumBack, weightBack float64
	bestVar := -1.0
	lo, hi := 0, 0
	for i, c := range hist {
		weightBack += float64(c)
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(i * c)
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		between := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		// The maximum is a plateau on bimodal histograms; the plateau
		// midpoint keeps the cutoff away from both peaks
		if between > bestVar*(1+1e-9) {
			bestVar = between
			lo, hi = i, i
		} else if bestVar > 0 && between >= bestVar*(1-1e-9) {
			hi = i
		}
	}
	if bestVar <= 0 {
		return 0, false
	}
	return (lo + hi) / 2, true
}

// colorReplace whitens pixels in the near-white and light-gray ranges,
// but only when they make up a meaningful share of the image
func colorReplace(src image.Image) image.Image {
	img := imaging.Clone(src)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	matches := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if isReplaceable(img, x, y) {
				matches++
			}
		}
	}
	if float64(matches)/float64(w*h) <= replaceFraction {
		return img
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if isReplaceable(img, x, y) {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func isReplaceable(img *image.NRGBA, x, y int) bool {
	r, g, b := nrgbaAt(img, x, y)
	if r >= 235 && g >= 235 && b >= 235 {
		return true
	}
	// light gray: bright and nearly neutral
	if r >= 200 && g >= 200 && b >= 200 &&
		absInt(r-g) <= 10 && absInt(g-b) <= 10 && absInt(r-b) <= 10 {
		return true
	}
	return false
}

// edgeDetection blurs, runs a Sobel pass, and keeps the bounding box
// of strong edges, painting everything outside it white. No edges or
// edges everywhere means the box tells us nothing, so it falls back to
// smartDetect.
func edgeDetection(src image.Image, threshold int) image.Image {
	blurred := blur.Gaussian(src, 2.0)
	edges := effect.Sobel(blurred)

	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := edges.RGBAAt(b.Min.X+x, b.Min.Y+y)
			if int(c.R) >= threshold {
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < 0 || (minX == 0 && minY == 0 && maxX == w-1 && maxY == h-1) {
		return smartDetect(src)
	}

	// Pad the box so anti-aliased object borders survive
	const pad = 2
	minX = clampInt(minX-pad, 0, w-1)
	minY = clampInt(minY-pad, 0, h-1)
	maxX = clampInt(maxX+pad, 0, w-1)
	maxY = clampInt(maxY+pad, 0, h-1)

	img := imaging.Clone(src)
	ib := img.Bounds()
	for y := 0; y < ib.Dy(); y++ {
		for x := 0; x < ib.Dx(); x++ {
			if x < minX || x > maxX || y < minY || y > maxY {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func nrgbaAt(img *image.NRGBA, x, y int) (int, int, int) {
	c := img.NRGBAAt(img.Bounds().Min.X+x, img.Bounds().Min.Y+y)
	return int(c.R), int(c.G), int(c.B)
}

func nearColor(img *image.NRGBA, x, y, r, g, b int) bool {
	pr, pg, pb := nrgbaAt(img, x, y)
	return absInt(pr-r) <= channelTolerance &&
		absInt(pg-g) <= channelTolerance &&
		absInt(pb-b) <= channelTolerance
}

func luminance(img *image.NRGBA, x, y int) int {
	r, g, b := nrgbaAt(img, x, y)
	return (299*r + 587*g + 114*b) / 1000
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
