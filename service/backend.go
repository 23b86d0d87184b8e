package service

import (
	"context"
	"image"
	"sync"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/utils"
	"go.uber.org/zap"
)

// SegmentationBackend is one engine capable of separating a subject from its
// background. Local variants return a per-pixel foreground confidence mask;
// remote variants composite server-side and return finished bytes.
//
// No variant may fail a request because a remote dependency is missing or
// slow: each defines a degraded-but-valid output instead.
type SegmentationBackend interface {
	Name() string

	// Remote reports whether ProcessRemote should be used instead of Segment.
	Remote() bool

	// Segment returns a 0-255 foreground confidence mask with the same
	// dimensions as img. Only called when Remote() is false.
	Segment(ctx context.Context, img image.Image) (*image.Gray, error)

	// ProcessRemote sends the raw image for server-side segmentation and
	// compositing. degraded is true when the backend had to fall back to
	// returning the original bytes. Only called when Remote() is true.
	ProcessRemote(ctx context.Context, img []byte, spec model.BackgroundSpec) (out []byte, degraded bool, err error)
}

// WarnNoSegmentation is attached to every result produced by the no-op
// backend so callers can tell pass-through from true removal.
const WarnNoSegmentation = "segmentation not configured: returning original subject"

// WarnDegraded is attached when the remote backend failed and returned the
// original image unchanged.
const WarnDegraded = "background removal degraded: original image returned"

// Selector resolves the active segmentation backend exactly once for the
// process lifetime. Precedence: remote API when its credential is present,
// then the BiRefNet sidecar, then the GrabCut fallback, then no-op. The
// decision is never re-probed per request; backends hold expensive state
// (model sessions) and are shared read-only across requests.
type Selector struct {
	cfg     *config.BackendConfig
	fetcher *Fetcher

	once    sync.Once
	backend SegmentationBackend
}

func NewSelector(cfg *config.BackendConfig, fetcher *Fetcher) *Selector {
	return &Selector{cfg: cfg, fetcher: fetcher}
}

// Backend returns the singleton backend, resolving it on first use.
func (s *Selector) Backend() SegmentationBackend {
	s.once.Do(s.resolve)
	return s.backend
}

func (s *Selector) resolve() {
	if s.cfg.AutoBGAPIKey != "" {
		s.backend = NewAutoBGBackend(s.cfg.AutoBGAPIKey, s.cfg.AutoBGBaseURL, s.fetcher)
		utils.Logger.Info("segmentation backend selected", zap.String("backend", s.backend.Name()))
		return
	}

	if s.cfg.BiRefNetURL != "" {
		b, err := NewBiRefNetBackend(s.cfg)
		if err == nil {
			s.backend = b
			utils.Logger.Info("segmentation backend selected", zap.String("backend", b.Name()))
			return
		}
		utils.Logger.Warn("birefnet sidecar unavailable, downgrading", zap.Error(err))
	}

	if s.cfg.EnableGrabCut {
		s.backend = NewGrabCutBackend(s.cfg)
		utils.Logger.Info("segmentation backend selected", zap.String("backend", s.backend.Name()))
		return
	}

	s.backend = NewNoOpBackend()
	utils.Logger.Warn("no segmentation backend configured, using no-op")
}
