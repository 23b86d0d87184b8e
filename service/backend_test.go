package service

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/damymess/keroxio-image/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorPrefersAutoBGWhenKeyPresent(t *testing.T) {
	s := NewSelector(&config.BackendConfig{
		AutoBGAPIKey:  "key",
		AutoBGBaseURL: "http://127.0.0.1:1",
	}, NewFetcher())

	b := s.Backend()
	assert.Equal(t, "autobg-ai", b.Name())
	assert.True(t, b.Remote())
}

func TestSelectorFallsBackToNoOp(t *testing.T) {
	s := NewSelector(&config.BackendConfig{EnableGrabCut: false}, NewFetcher())

	b := s.Backend()
	assert.Equal(t, "noop", b.Name())
	assert.False(t, b.Remote())
}

func TestSelectorDowngradesWhenSidecarUnreachable(t *testing.T) {
	s := NewSelector(&config.BackendConfig{
		BiRefNetURL:   "http://127.0.0.1:1",
		EnableGrabCut: false,
		MaxConcurrent: 1,
		QueueTimeout:  time.Second,
	}, NewFetcher())

	b := s.Backend()
	assert.Equal(t, "noop", b.Name())
}

func TestSelectorResolvesOnce(t *testing.T) {
	s := NewSelector(&config.BackendConfig{EnableGrabCut: false}, NewFetcher())
	assert.Same(t, s.Backend(), s.Backend())
}

func TestNoOpMaskIsFullyOpaque(t *testing.T) {
	b := NewNoOpBackend()
	img := image.NewNRGBA(image.Rect(0, 0, 5, 3))

	mask, err := b.Segment(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 5, mask.Bounds().Dx())
	assert.Equal(t, 3, mask.Bounds().Dy())
	for _, v := range mask.Pix {
		assert.EqualValues(t, 0xFF, v)
	}
}
