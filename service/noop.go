package service

import (
	"context"
	"image"

	"github.com/damymess/keroxio-image/model"
)

// NoOpBackend reports every pixel as foreground. It exists so the service
// keeps serving when no real segmentation capability is configured; results
// built from it always carry WarnNoSegmentation.
type NoOpBackend struct{}

func NewNoOpBackend() *NoOpBackend {
	return &NoOpBackend{}
}

func (b *NoOpBackend) Name() string { return "noop" }

func (b *NoOpBackend) Remote() bool { return false }

func (b *NoOpBackend) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	bounds := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for i := range mask.Pix {
		mask.Pix[i] = 0xFF
	}
	return mask, nil
}

func (b *NoOpBackend) ProcessRemote(ctx context.Context, img []byte, spec model.BackgroundSpec) ([]byte, bool, error) {
	return img, true, nil
}
