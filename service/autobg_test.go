package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damymess/keroxio-image/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoBGFailSoftOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewAutoBGBackend("test-key", srv.URL, NewFetcher())
	original := []byte{0xFF, 0xD8, 0xFF, 0x01, 0x02}

	out, degraded, err := b.ProcessRemote(context.Background(), original, model.BackgroundSpec{Kind: model.BackgroundTransparent})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, original, out, "failure must return the original bytes unchanged")
}

func TestAutoBGFailSoftOnUnreachableHost(t *testing.T) {
	b := NewAutoBGBackend("test-key", "http://127.0.0.1:1", NewFetcher())
	original := []byte{0x01, 0x02, 0x03}

	out, degraded, err := b.ProcessRemote(context.Background(), original, model.BackgroundSpec{Kind: model.BackgroundTransparent})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, original, out)
}

func TestAutoBGDecodesInlineImage(t *testing.T) {
	processed := []byte{0x89, 0x50, 0x4E, 0x47, 0xAA}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remove-background", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		var req autoBGRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "transparent", req.Background)

		_ = json.NewEncoder(w).Encode(autoBGResponse{
			Image: base64.StdEncoding.EncodeToString(processed),
		})
	}))
	defer srv.Close()

	b := NewAutoBGBackend("test-key", srv.URL, NewFetcher())

	out, degraded, err := b.ProcessRemote(context.Background(), []byte{0x01}, model.BackgroundSpec{Kind: model.BackgroundTransparent})
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, processed, out)
}

func TestAutoBGFetchesResultURL(t *testing.T) {
	processed := []byte("processed-bytes")

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/remove-background":
			_ = json.NewEncoder(w).Encode(autoBGResponse{URL: srv.URL + "/result.png"})
		case "/result.png":
			_, _ = w.Write(processed)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewAutoBGBackend("test-key", srv.URL, NewFetcher())

	out, degraded, err := b.ProcessRemote(context.Background(), []byte{0x01}, model.BackgroundSpec{Kind: model.BackgroundTransparent})
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, processed, out)
}

func TestAutoBGCustomBackgroundAsksForTransparency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req autoBGRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "transparent", req.Background, "custom backdrops are blended locally")
		_ = json.NewEncoder(w).Encode(autoBGResponse{Image: base64.StdEncoding.EncodeToString([]byte{0x01})})
	}))
	defer srv.Close()

	b := NewAutoBGBackend("test-key", srv.URL, NewFetcher())

	_, degraded, err := b.ProcessRemote(context.Background(), []byte{0x01}, model.BackgroundSpec{
		Kind: model.BackgroundCustom,
		URL:  "http://example.com/bg.jpg",
	})
	require.NoError(t, err)
	assert.False(t, degraded)
}
