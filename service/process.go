package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/utils"
	"go.uber.org/zap"
)

// ProcessService runs the single-image operations: enhancement, background
// removal and showroom placement. Each operation is strictly sequential
// (fetch, segment, composite, enhance, store) and returns no partial result.
type ProcessService struct {
	fetcher    *Fetcher
	selector   *Selector
	compositor *Compositor
	enhancer   *Enhancer
	storage    Storage
	store      Store
	defaults   EnhanceOptions
}

func NewProcessService(fetcher *Fetcher, selector *Selector, compositor *Compositor,
	enhancer *Enhancer, storage Storage, store Store, defaults EnhanceOptions) *ProcessService {
	return &ProcessService{
		fetcher:    fetcher,
		selector:   selector,
		compositor: compositor,
		enhancer:   enhancer,
		storage:    storage,
		store:      store,
		defaults:   defaults,
	}
}

// Enhance fetches the image and runs the enhancement pipeline.
func (s *ProcessService) Enhance(ctx context.Context, req model.EnhancementRequest) (*model.ProcessResponse, error) {
	opts := s.defaults
	if req.AutoColor != nil {
		opts.AutoColor = *req.AutoColor
	}
	if req.Contrast != nil {
		opts.Contrast = *req.Contrast
	}
	if req.Denoise != nil {
		opts.Denoise = *req.Denoise
	}
	if req.Sharpen != nil {
		opts.Sharpen = *req.Sharpen
	}

	cacheKey := utils.StringMD5(fmt.Sprintf("enhance|%s|%v", req.ImageURL, opts))
	if cached := s.cached(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	start := time.Now()

	raw, err := s.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(raw)
	if err != nil {
		return nil, err
	}

	enhanced := s.enhancer.Enhance(img, opts)
	out, err := encodeJPEG(enhanced)
	if err != nil {
		return nil, err
	}

	processedURL, err := s.storeProcessed(ctx, out, "jpg")
	if err != nil {
		return nil, err
	}

	resp := &model.ProcessResponse{
		ID:             utils.NewID(),
		Status:         model.StatusCompleted,
		OriginalURL:    req.ImageURL,
		ProcessedURL:   processedURL,
		ProcessingTime: roundSeconds(time.Since(start)),
	}
	s.cache(ctx, cacheKey, resp)
	return resp, nil
}

// RemoveBackground runs the full removal chain for one image.
func (s *ProcessService) RemoveBackground(ctx context.Context, req model.BackgroundRemovalRequest) (*model.ProcessResponse, error) {
	spec, err := model.ParseBackgroundSpec(req.BackgroundType, req.BackgroundColor, req.BackgroundURL)
	if err != nil {
		return nil, err
	}
	return s.removeBackground(ctx, req.ImageURL, spec)
}

// Showroom places the subject on a preset showroom backdrop. An empty type
// defaults to indoor; unknown names resolve to the studio default.
func (s *ProcessService) Showroom(ctx context.Context, imageURL, showroomType string) (*model.ProcessResponse, error) {
	if showroomType == "" {
		showroomType = "indoor"
	}
	return s.removeBackground(ctx, imageURL, model.BackgroundSpec{
		Kind:   model.BackgroundPreset,
		Preset: showroomType,
	})
}

func (s *ProcessService) removeBackground(ctx context.Context, imageURL string, spec model.BackgroundSpec) (*model.ProcessResponse, error) {
	cacheKey := utils.StringMD5(fmt.Sprintf("rembg|%s|%s|%s", imageURL, spec.Kind, spec.Directive()))
	if cached := s.cached(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	start := time.Now()

	raw, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	backend := s.selector.Backend()

	var (
		out     []byte
		ext     string
		warning string
	)

	if backend.Remote() {
		out, ext, warning, err = s.processRemote(ctx, backend, raw, spec)
	} else {
		out, ext, warning, err = s.processLocal(ctx, backend, raw, spec)
	}
	if err != nil {
		return nil, err
	}

	processedURL, err := s.storeProcessed(ctx, out, ext)
	if err != nil {
		return nil, err
	}

	resp := &model.ProcessResponse{
		ID:             utils.NewID(),
		Status:         model.StatusCompleted,
		OriginalURL:    imageURL,
		ProcessedURL:   processedURL,
		ProcessingTime: roundSeconds(time.Since(start)),
		Backend:        backend.Name(),
		Warning:        warning,
	}
	if warning == "" {
		// Degraded results are not cached; a later retry may succeed.
		s.cache(ctx, cacheKey, resp)
	}
	return resp, nil
}

// processRemote lets the backend composite server-side. Custom backdrops are
// the exception: the backend is asked for transparency and the blend happens
// here.
func (s *ProcessService) processRemote(ctx context.Context, backend SegmentationBackend,
	raw []byte, spec model.BackgroundSpec) ([]byte, string, string, error) {

	processed, degraded, err := backend.ProcessRemote(ctx, raw, spec)
	if err != nil {
		return nil, "", "", err
	}
	if degraded {
		return processed, extForSpec(spec), WarnDegraded, nil
	}

	if spec.Kind == model.BackgroundCustom {
		cutout, err := DecodeImage(processed)
		if err != nil {
			return nil, "", "", err
		}
		out, ext, err := s.compositor.Composite(ctx, cutout, AlphaMask(cutout), spec)
		if err != nil {
			return nil, "", "", err
		}
		return out, ext, "", nil
	}

	return processed, extForSpec(spec), "", nil
}

func (s *ProcessService) processLocal(ctx context.Context, backend SegmentationBackend,
	raw []byte, spec model.BackgroundSpec) ([]byte, string, string, error) {

	img, err := DecodeImage(raw)
	if err != nil {
		return nil, "", "", err
	}

	warning := ""
	if backend.Name() == "noop" {
		warning = WarnNoSegmentation
	}

	mask, err := backend.Segment(ctx, img)
	if err != nil {
		// Inference failures degrade to a fully-opaque mask rather than
		// failing the request.
		utils.Logger.Error("segmentation failed, degrading to opaque mask",
			zap.String("backend", backend.Name()), zap.Error(err))
		mask, _ = NewNoOpBackend().Segment(ctx, img)
		warning = WarnDegraded
	}

	out, ext, err := s.compositor.Composite(ctx, img, mask, spec)
	if err != nil {
		return nil, "", "", err
	}
	return out, ext, warning, nil
}

func (s *ProcessService) storeProcessed(ctx context.Context, data []byte, ext string) (string, error) {
	key := "processed/" + utils.NewID() + "." + ext
	contentType := "image/jpeg"
	if ext == "png" {
		contentType = "image/png"
	}
	url, err := s.storage.Upload(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return url, nil
}

func (s *ProcessService) cached(ctx context.Context, key string) *model.ProcessResponse {
	cached, err := s.store.GetResult(ctx, key)
	if err != nil {
		utils.Logger.Warn("result cache read failed", zap.Error(err))
		return nil
	}
	return cached
}

func (s *ProcessService) cache(ctx context.Context, key string, resp *model.ProcessResponse) {
	if err := s.store.SetResult(ctx, key, resp); err != nil {
		utils.Logger.Warn("result cache write failed", zap.Error(err))
	}
}

func extForSpec(spec model.BackgroundSpec) string {
	if spec.Kind == model.BackgroundTransparent {
		return "png"
	}
	return "jpg"
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
