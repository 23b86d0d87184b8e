package service

import (
	"context"
	"fmt"
	"image"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/model"
	"gocv.io/x/gocv"
)

// GrabCutBackend is the local fallback segmenter: gradient saliency seeds a
// GrabCut pass, morphology cleans the result. Lower quality than BiRefNet
// but has no runtime dependency beyond OpenCV, so it is selected permanently
// when the inference sidecar is unavailable at startup.
type GrabCutBackend struct {
	iterations   int
	maxDimension int
	semaphore    chan struct{}
}

func NewGrabCutBackend(cfg *config.BackendConfig) *GrabCutBackend {
	return &GrabCutBackend{
		iterations:   5,
		maxDimension: 1200,
		semaphore:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (b *GrabCutBackend) Name() string { return "grabcut" }

func (b *GrabCutBackend) Remote() bool { return false }

func (b *GrabCutBackend) ProcessRemote(ctx context.Context, img []byte, spec model.BackgroundSpec) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("grabcut backend composites locally")
}

func (b *GrabCutBackend) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	select {
	case b.semaphore <- struct{}{}:
		defer func() { <-b.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	width := src.Cols()
	height := src.Rows()

	scaled, scale := b.smartResize(&src)
	defer scaled.Close()

	scaledWidth := scaled.Cols()
	scaledHeight := scaled.Rows()

	saliency := b.detectSaliency(&scaled)
	defer saliency.Close()

	initRect := b.extractRect(&saliency, scaledWidth, scaledHeight)

	mask := gocv.NewMat()
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	iterations := b.iterations
	if b.edgeDensity(&scaled) > 0.15 {
		iterations += 2
	}

	gocv.GrabCut(scaled, &mask, initRect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)

	fgMask := b.extractForeground(&mask)
	defer fgMask.Close()

	optimized := b.morphologyOptimize(&fgMask, 3)
	defer optimized.Close()

	final := optimized
	restored := gocv.NewMat()
	defer restored.Close()
	if scale != 1.0 {
		gocv.Resize(optimized, &restored, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
		gocv.Threshold(restored, &restored, 127, 255, gocv.ThresholdBinary)
		final = restored
	}

	out, err := final.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert mask: %w", err)
	}
	return toGray(out), nil
}

// smartResize caps the longest side at maxDimension; GrabCut cost grows
// quadratically with area and the mask is restored afterwards.
func (b *GrabCutBackend) smartResize(src *gocv.Mat) (gocv.Mat, float64) {
	width := src.Cols()
	height := src.Rows()
	longest := width
	if height > longest {
		longest = height
	}
	if longest <= b.maxDimension {
		return src.Clone(), 1.0
	}

	scale := float64(b.maxDimension) / float64(longest)
	dst := gocv.NewMat()
	gocv.Resize(*src, &dst, image.Point{
		X: int(float64(width) * scale),
		Y: int(float64(height) * scale),
	}, 0, 0, gocv.InterpolationArea)
	return dst, scale
}

// detectSaliency builds a gradient-magnitude map, blurs it and applies an
// Otsu threshold to approximate the dominant subject region.
func (b *GrabCutBackend) detectSaliency(img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorRGBToGray)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gradY := gocv.NewMat()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absGradX := gocv.NewMat()
	defer absGradX.Close()
	absGradY := gocv.NewMat()
	defer absGradY.Close()
	gocv.ConvertScaleAbs(gradX, &absGradX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absGradY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absGradX, 0.5, absGradY, 0.5, 0, &gradient)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Point{X: 21, Y: 21}, 0, 0, gocv.BorderDefault)

	saliency := gocv.NewMat()
	gocv.Threshold(blurred, &saliency, 0, 255, gocv.ThresholdOtsu)
	return saliency
}

// extractRect finds the largest salient contour and pads it, falling back to
// a centered rectangle when nothing stands out.
func (b *GrabCutBackend) extractRect(saliency *gocv.Mat, width, height int) image.Rectangle {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 21, Y: 21})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)

	if contours.Size() == 0 {
		border := int(float64(width) * 0.1)
		return image.Rect(border, border, width-border, height-border)
	}

	var maxRect image.Rectangle
	maxArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > maxArea {
			maxArea = area
			maxRect = gocv.BoundingRect(contours.At(i))
		}
	}

	padding := int(float64(maxRect.Dx()) * 0.05)
	maxRect.Min.X = maxInt(0, maxRect.Min.X-padding)
	maxRect.Min.Y = maxInt(0, maxRect.Min.Y-padding)
	maxRect.Max.X = minInt(width, maxRect.Max.X+padding)
	maxRect.Max.Y = minInt(height, maxRect.Max.Y+padding)
	return maxRect
}

// extractForeground keeps GrabCut's definite (1) and probable (3) foreground.
func (b *GrabCutBackend) extractForeground(mask *gocv.Mat) gocv.Mat {
	fgMask := gocv.NewMat()
	one := gocv.NewMatFromScalar(gocv.Scalar{Val1: 1}, gocv.MatTypeCV8U)
	defer one.Close()
	gocv.Compare(*mask, one, &fgMask, gocv.CompareEQ)

	prMask := gocv.NewMat()
	defer prMask.Close()
	three := gocv.NewMatFromScalar(gocv.Scalar{Val1: 3}, gocv.MatTypeCV8U)
	defer three.Close()
	gocv.Compare(*mask, three, &prMask, gocv.CompareEQ)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fgMask, prMask, &combined)
	fgMask.Close()
	return combined
}

func (b *GrabCutBackend) morphologyOptimize(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	opened.Close()
	return closed
}

func (b *GrabCutBackend) edgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorRGBToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	return float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
