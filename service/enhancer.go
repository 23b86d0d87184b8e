package service

import (
	"image"

	"github.com/damymess/keroxio-image/config"
	"github.com/disintegration/imaging"
)

// EnhanceOptions toggles the individual steps of the enhancement pipeline.
type EnhanceOptions struct {
	AutoColor bool
	Contrast  bool
	Denoise   bool
	Sharpen   bool
}

// DefaultEnhanceOptions builds the option set from configuration.
func DefaultEnhanceOptions(cfg *config.EnhanceConfig) EnhanceOptions {
	return EnhanceOptions{
		AutoColor: cfg.AutoColor,
		Contrast:  cfg.Contrast,
		Denoise:   cfg.Denoise,
		Sharpen:   cfg.Sharpen,
	}
}

// Enhancer applies a fixed, order-sensitive chain of photometric
// adjustments, each a multiplicative tweak against a 1.0 baseline:
// saturation x1.15, contrast x1.10, denoise blur, sharpness x1.20, then an
// unconditional brightness x1.05. Denoise must run before sharpen so the
// sharpening pass does not amplify blur artifacts.
type Enhancer struct{}

func NewEnhancer() *Enhancer {
	return &Enhancer{}
}

// Enhance runs the pipeline on an opaque RGB view of img; any alpha channel
// is discarded first. Enhancement only ever runs as a terminal step or on
// flattened composites, never on a transparent foreground.
func (e *Enhancer) Enhance(img image.Image, opts EnhanceOptions) *image.NRGBA {
	out := imaging.Clone(img)
	dropAlpha(out)

	if opts.AutoColor {
		out = imaging.AdjustSaturation(out, 15)
	}
	if opts.Contrast {
		out = imaging.AdjustContrast(out, 10)
	}
	if opts.Denoise {
		out = imaging.Blur(out, 0.5)
	}
	if opts.Sharpen {
		out = imaging.Sharpen(out, 0.5)
	}

	return imaging.AdjustBrightness(out, 5)
}

func dropAlpha(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
}
