package service

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessService(t *testing.T) (*ProcessService, Store) {
	t.Helper()

	fetcher := NewFetcher()
	selector := NewSelector(&config.BackendConfig{EnableGrabCut: false}, fetcher)
	storage := NewLocalStorage(t.TempDir(), "/storage")
	store := NewMemoryStore(time.Hour)

	process := NewProcessService(fetcher, selector, NewCompositor(fetcher),
		NewEnhancer(), storage, store, EnhanceOptions{AutoColor: true, Contrast: true, Sharpen: true})
	return process, store
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 120
		img.Pix[i+1] = 130
		img.Pix[i+2] = 140
		img.Pix[i+3] = 255
	}
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, nil))
	return buf.Bytes()
}

func TestBatchIsolatesPerImageFailure(t *testing.T) {
	raw := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	process, store := newTestProcessService(t)
	runner := NewBatchRunner(process, store)

	job := model.BatchJob{
		JobID: "job-1",
		ImageURLs: []string{
			srv.URL + "/a.jpg",
			srv.URL + "/missing.jpg",
			srv.URL + "/c.jpg",
		},
		Operations: []string{model.OpRemoveBackground},
		OwnerID:    "owner-1",
	}

	status := runner.Run(context.Background(), job)

	require.Len(t, status.Results, 3)
	assert.Equal(t, model.StatusCompleted, status.Status)
	assert.Equal(t, 3, status.Progress)
	assert.Equal(t, 2, status.Completed)
	assert.Equal(t, 1, status.Failed)

	assert.Equal(t, model.StatusCompleted, status.Results[0].Status)
	assert.Equal(t, model.StatusFailed, status.Results[1].Status)
	assert.NotEmpty(t, status.Results[1].Error)
	assert.Equal(t, model.StatusCompleted, status.Results[2].Status)

	// Entries stay in input order.
	assert.Equal(t, srv.URL+"/a.jpg", status.Results[0].ImageURL)
	assert.Equal(t, srv.URL+"/missing.jpg", status.Results[1].ImageURL)
	assert.Equal(t, srv.URL+"/c.jpg", status.Results[2].ImageURL)
}

func TestBatchLedgerReflectsFinalState(t *testing.T) {
	raw := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	process, store := newTestProcessService(t)
	runner := NewBatchRunner(process, store)

	job := model.BatchJob{
		JobID:      "job-2",
		ImageURLs:  []string{srv.URL + "/a.jpg"},
		Operations: []string{model.OpEnhance},
		OwnerID:    "owner-1",
	}
	runner.Run(context.Background(), job)

	stored, err := store.GetJob(context.Background(), "job-2")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Completed)
	require.Len(t, stored.Results, 1)
	assert.NotEmpty(t, stored.Results[0].ProcessedURL)
}

func TestBatchNoOpBackendCarriesWarning(t *testing.T) {
	raw := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	process, store := newTestProcessService(t)
	runner := NewBatchRunner(process, store)

	job := model.BatchJob{
		JobID:      "job-3",
		ImageURLs:  []string{srv.URL + "/a.jpg"},
		Operations: []string{model.OpRemoveBackground},
	}
	status := runner.Run(context.Background(), job)

	require.Len(t, status.Results, 1)
	assert.Equal(t, WarnNoSegmentation, status.Results[0].Warning)
}

func TestBatchUnknownOperationSkipped(t *testing.T) {
	raw := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	process, store := newTestProcessService(t)
	runner := NewBatchRunner(process, store)

	job := model.BatchJob{
		JobID:      "job-4",
		ImageURLs:  []string{srv.URL + "/a.jpg"},
		Operations: []string{"rotate", model.OpEnhance},
	}
	status := runner.Run(context.Background(), job)

	require.Len(t, status.Results, 1)
	assert.Equal(t, model.StatusCompleted, status.Results[0].Status)
	assert.NotEmpty(t, status.Results[0].ProcessedURL)
}

func TestProcessEnhanceCachesResult(t *testing.T) {
	raw := testJPEG(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	process, _ := newTestProcessService(t)

	first, err := process.Enhance(context.Background(), model.EnhancementRequest{ImageURL: srv.URL + "/a.jpg"})
	require.NoError(t, err)

	second, err := process.Enhance(context.Background(), model.EnhancementRequest{ImageURL: srv.URL + "/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, first.ProcessedURL, second.ProcessedURL)
	assert.Equal(t, 1, hits, "second call must be served from cache")
}

func TestShowroomDefaultsToIndoor(t *testing.T) {
	raw := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	process, _ := newTestProcessService(t)

	resp, err := process.Showroom(context.Background(), srv.URL+"/a.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, resp.Status)
	assert.Contains(t, resp.ProcessedURL, ".jpg", "preset backdrop flattens to jpeg")
}
