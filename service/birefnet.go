package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/model"
	"github.com/disintegration/imaging"
)

// BiRefNetBackend delegates inference to a local BiRefNet sidecar over HTTP.
// The sidecar returns the raw model output as a grayscale PNG; this side
// normalizes it to a 0-255 mask and resizes it back to the source dimensions.
//
// Inference is CPU/GPU bound on the sidecar, so calls go through a bounded
// semaphore to keep a burst of requests from piling onto it.
type BiRefNetBackend struct {
	baseURL      string
	client       *http.Client
	semaphore    chan struct{}
	queueTimeout time.Duration
}

// NewBiRefNetBackend probes the sidecar and fails construction when it is
// unreachable, which makes the selector downgrade to the GrabCut fallback.
func NewBiRefNetBackend(cfg *config.BackendConfig) (*BiRefNetBackend, error) {
	b := &BiRefNetBackend{
		baseURL:      cfg.BiRefNetURL,
		client:       &http.Client{Timeout: 120 * time.Second},
		semaphore:    make(chan struct{}, cfg.MaxConcurrent),
		queueTimeout: cfg.QueueTimeout,
	}
	if err := b.ping(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BiRefNetBackend) ping() error {
	resp, err := http.Get(b.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("birefnet sidecar ping: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("birefnet sidecar ping: status %d", resp.StatusCode)
	}
	return nil
}

func (b *BiRefNetBackend) Name() string { return "birefnet" }

func (b *BiRefNetBackend) Remote() bool { return false }

func (b *BiRefNetBackend) ProcessRemote(ctx context.Context, img []byte, spec model.BackgroundSpec) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("birefnet backend composites locally")
}

func (b *BiRefNetBackend) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	queueCtx, cancel := context.WithTimeout(ctx, b.queueTimeout)
	defer cancel()

	select {
	case b.semaphore <- struct{}{}:
		defer func() { <-b.semaphore }()
	case <-queueCtx.Done():
		return nil, fmt.Errorf("segmentation queue full")
	}

	raw, err := b.infer(ctx, img)
	if err != nil {
		return nil, err
	}

	mask := normalizeMask(raw)

	bounds := img.Bounds()
	if mask.Bounds().Dx() != bounds.Dx() || mask.Bounds().Dy() != bounds.Dy() {
		resized := imaging.Resize(mask, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
		mask = toGray(resized)
	}
	return mask, nil
}

func (b *BiRefNetBackend) infer(ctx context.Context, img image.Image) (*image.Gray, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/segment", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("birefnet inference: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("birefnet inference: status %d", resp.StatusCode)
	}

	maskBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read mask: %w", err)
	}
	decoded, err := png.Decode(bytes.NewReader(maskBytes))
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	return toGray(decoded), nil
}

// normalizeMask stretches the mask so its minimum maps to 0 and maximum to
// 255. A flat mask is returned unchanged.
func normalizeMask(m *image.Gray) *image.Gray {
	lo, hi := uint8(0xFF), uint8(0)
	for _, v := range m.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return m
	}

	out := image.NewGray(m.Bounds())
	scale := 255.0 / float64(hi-lo)
	for i, v := range m.Pix {
		out.Pix[i] = uint8(float64(v-lo)*scale + 0.5)
	}
	return out
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g.Set(x-bounds.Min.X, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return g
}
