package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	_ "golang.org/x/image/webp"

	"github.com/damymess/keroxio-image/model"
	"github.com/disintegration/imaging"
)

// jpegQuality is the fixed quality for flattened composites. Transparent
// output is always lossless PNG; everything else favors file size.
const jpegQuality = 92

// Compositor combines a foreground and its mask with a background spec.
type Compositor struct {
	fetcher *Fetcher
}

func NewCompositor(fetcher *Fetcher) *Compositor {
	return &Compositor{fetcher: fetcher}
}

// Composite produces encoded output bytes and their file extension.
// The mask must have the same dimensions as fg.
func (c *Compositor) Composite(ctx context.Context, fg image.Image, mask *image.Gray, spec model.BackgroundSpec) ([]byte, string, error) {
	bounds := fg.Bounds()
	if mask.Bounds().Dx() != bounds.Dx() || mask.Bounds().Dy() != bounds.Dy() {
		return nil, "", fmt.Errorf("mask %v does not match image %v", mask.Bounds(), bounds)
	}

	cutout := ApplyMask(fg, mask)

	switch spec.Kind {
	case model.BackgroundTransparent:
		out, err := encodePNG(cutout)
		return out, "png", err

	case model.BackgroundSolid, model.BackgroundPreset:
		flat := blendOverColor(cutout, spec.ResolveColor())
		out, err := encodeJPEG(flat)
		return out, "jpg", err

	case model.BackgroundCustom:
		bgBytes, err := c.fetcher.Fetch(ctx, spec.URL)
		if err != nil {
			return nil, "", fmt.Errorf("fetch background: %w", err)
		}
		bg, _, err := image.Decode(bytes.NewReader(bgBytes))
		if err != nil {
			return nil, "", fmt.Errorf("decode background: %w", err)
		}
		// Stretched to the foreground's dimensions; aspect ratio is not
		// preserved.
		backdrop := imaging.Resize(bg, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
		flat := blendOverImage(cutout, backdrop)
		out, err := encodeJPEG(flat)
		return out, "jpg", err

	default:
		return nil, "", fmt.Errorf("unknown background kind %q", spec.Kind)
	}
}

// ApplyMask returns an NRGBA copy of img whose alpha channel is the mask.
func ApplyMask(img image.Image, mask *image.Gray) *image.NRGBA {
	out := imaging.Clone(img)
	w := out.Bounds().Dx()
	h := out.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x*4+3] = mask.GrayAt(x, y).Y
		}
	}
	return out
}

// AlphaMask extracts the alpha channel of an already-cut-out image, used
// when a remote backend returned transparency and a custom backdrop still
// has to be blended locally.
func AlphaMask(img image.Image) *image.Gray {
	src := imaging.Clone(img)
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask.Pix[y*mask.Stride+x] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return mask
}

// blendOverColor alpha-blends the cutout over an opaque single-color
// backdrop: out = fg*a + bg*(1-a) per channel.
func blendOverColor(cutout *image.NRGBA, bg color.NRGBA) *image.NRGBA {
	w := cutout.Bounds().Dx()
	h := cutout.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*cutout.Stride + x*4
			o := y*out.Stride + x*4
			a := uint32(cutout.Pix[i+3])
			out.Pix[o+0] = blendChannel(cutout.Pix[i+0], bg.R, a)
			out.Pix[o+1] = blendChannel(cutout.Pix[i+1], bg.G, a)
			out.Pix[o+2] = blendChannel(cutout.Pix[i+2], bg.B, a)
			out.Pix[o+3] = 0xFF
		}
	}
	return out
}

func blendOverImage(cutout *image.NRGBA, backdrop *image.NRGBA) *image.NRGBA {
	w := cutout.Bounds().Dx()
	h := cutout.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*cutout.Stride + x*4
			j := y*backdrop.Stride + x*4
			o := y*out.Stride + x*4
			a := uint32(cutout.Pix[i+3])
			out.Pix[o+0] = blendChannel(cutout.Pix[i+0], backdrop.Pix[j+0], a)
			out.Pix[o+1] = blendChannel(cutout.Pix[i+1], backdrop.Pix[j+1], a)
			out.Pix[o+2] = blendChannel(cutout.Pix[i+2], backdrop.Pix[j+2], a)
			out.Pix[o+3] = 0xFF
		}
	}
	return out
}

func blendChannel(fg, bg uint8, a uint32) uint8 {
	return uint8((uint32(fg)*a + uint32(bg)*(255-a) + 127) / 255)
}

func encodePNG(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes JPEG, PNG, GIF or WebP bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
