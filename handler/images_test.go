package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/middleware"
	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectImageType(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{name: "jpeg", content: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, want: "jpeg"},
		{name: "png", content: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, want: "png"},
		{name: "webp", content: append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0x56), want: "webp"},
		{name: "riff but not webp", content: []byte("RIFF\x00\x00\x00\x00WAVEfmt "), want: ""},
		{name: "truncated jpeg signature", content: []byte{0xFF, 0xD8}, want: ""},
		{name: "plain text", content: []byte("hello world"), want: ""},
		{name: "empty", content: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectImageType(tt.content))
		})
	}
}

func TestStoredExtension(t *testing.T) {
	assert.Equal(t, "jpg", StoredExtension("jpeg"))
	assert.Equal(t, "png", StoredExtension("png"))
	assert.Equal(t, "webp", StoredExtension("webp"))
}

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxSize:     10 * 1024 * 1024,
			AllowedExts: []string{"jpg", "jpeg", "png", "webp"},
			MaxBatch:    10,
		},
		Storage: config.StorageConfig{
			Backend:   "local",
			LocalPath: dir,
			PublicURL: "/storage",
		},
	}
	storage := service.NewLocalStorage(dir, "/storage")
	h := NewImageHandler(cfg, storage)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "owner-1")
	})
	r.POST("/images/upload", h.Upload)
	r.POST("/images/upload-multiple", h.UploadMultiple)
	r.DELETE("/images/:id", h.Delete)
	r.GET("/images", h.List)
	return r, dir
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUploadAcceptsSpoofedExtensionStoresActualType(t *testing.T) {
	r, dir := newTestRouter(t)

	// JPEG bytes named .png: accepted, stored as .jpg.
	content := make([]byte, 2048)
	copy(content, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	body, contentType := multipartUpload(t, "image", "photo.png", content)

	req := httptest.NewRequest(http.MethodPost, "/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.ImageUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasSuffix(resp.URL, ".jpg"), "stored under the detected type, got %s", resp.URL)

	stored, err := os.ReadFile(filepath.Join(dir, "owner-1", resp.ID+".jpg"))
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestUploadRejectsUnknownSignature(t *testing.T) {
	r, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "image", "photo.jpg", []byte("not an image at all"))
	req := httptest.NewRequest(http.MethodPost, "/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid image content")
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	r, _ := newTestRouter(t)

	content := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	body, contentType := multipartUpload(t, "image", "photo.bmp", content)
	req := httptest.NewRequest(http.MethodPost, "/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid file type")
}

func TestUploadRejectsMissingFile(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/images/upload", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMultipleSkipsInvalidEntries(t *testing.T) {
	r, _ := newTestRouter(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	good, err := w.CreateFormFile("images", "good.png")
	require.NoError(t, err)
	_, err = good.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x01})
	require.NoError(t, err)

	bad, err := w.CreateFormFile("images", "bad.png")
	require.NoError(t, err)
	_, err = bad.Write([]byte("garbage"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/images/upload-multiple", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []model.ImageUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "good.png", resp[0].Filename)
}

func TestDeleteIsIdempotent(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/images/never-existed", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
