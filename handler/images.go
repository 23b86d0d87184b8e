package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/middleware"
	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/service"
	"github.com/damymess/keroxio-image/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DetectImageType inspects magic bytes and returns "jpeg", "png" or "webp",
// or "" when the content matches no supported signature. The detected type,
// not the declared filename, decides how an upload is stored: a spoofed
// extension never survives past this check.
func DetectImageType(content []byte) string {
	switch {
	case bytes.HasPrefix(content, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(content, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case bytes.HasPrefix(content, []byte("RIFF")) && len(content) > 12 && bytes.Equal(content[8:12], []byte("WEBP")):
		return "webp"
	default:
		return ""
	}
}

// StoredExtension maps a detected type to the extension used for storage.
func StoredExtension(detected string) string {
	if detected == "jpeg" {
		return "jpg"
	}
	return detected
}

// ImageHandler serves upload, lookup and delete for source images.
type ImageHandler struct {
	cfg     *config.Config
	storage service.Storage
}

func NewImageHandler(cfg *config.Config, storage service.Storage) *ImageHandler {
	return &ImageHandler{cfg: cfg, storage: storage}
}

// Upload stores a single validated image under the caller's namespace.
func (h *ImageHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "no image file provided",
			Error:   err.Error(),
		})
		return
	}

	resp, errMsg := h.storeUpload(c, file)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: errMsg,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UploadMultiple stores up to max_batch images; invalid entries are skipped
// rather than failing the whole request.
func (h *ImageHandler) UploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "no files provided",
			Error:   err.Error(),
		})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		files = form.File["image"]
	}
	if len(files) > h.cfg.Upload.MaxBatch {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("maximum %d images per request", h.cfg.Upload.MaxBatch),
		})
		return
	}

	results := make([]model.ImageUploadResponse, 0, len(files))
	for _, file := range files {
		resp, errMsg := h.storeUpload(c, file)
		if errMsg != "" {
			utils.Logger.Warn("upload skipped",
				zap.String("filename", file.Filename),
				zap.String("reason", errMsg))
			continue
		}
		results = append(results, *resp)
	}

	c.JSON(http.StatusOK, results)
}

func (h *ImageHandler) storeUpload(c *gin.Context, file *multipart.FileHeader) (*model.ImageUploadResponse, string) {
	if file.Filename == "" {
		return nil, "filename is required"
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if !h.isAllowedExt(ext) {
		return nil, fmt.Sprintf("invalid file type, allowed: %s", strings.Join(h.cfg.Upload.AllowedExts, ", "))
	}

	if file.Size > h.cfg.Upload.MaxSize {
		return nil, fmt.Sprintf("file too large, max size: %d MB", h.cfg.Upload.MaxSize/(1024*1024))
	}

	src, err := file.Open()
	if err != nil {
		return nil, "failed to read file"
	}
	defer func() {
		_ = src.Close()
	}()

	content, err := io.ReadAll(io.LimitReader(src, h.cfg.Upload.MaxSize+1))
	if err != nil {
		return nil, "failed to read file"
	}
	if int64(len(content)) > h.cfg.Upload.MaxSize {
		return nil, fmt.Sprintf("file too large, max size: %d MB", h.cfg.Upload.MaxSize/(1024*1024))
	}

	detected := DetectImageType(content)
	if detected == "" {
		return nil, "invalid image content: file does not match a supported image format"
	}

	ownerID := c.GetString(middleware.CtxUserID)
	imageID := utils.NewID()
	key := fmt.Sprintf("%s/%s.%s", ownerID, imageID, StoredExtension(detected))

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/" + detected
	}

	url, err := h.storage.Upload(c.Request.Context(), key, content, contentType)
	if err != nil {
		utils.Logger.Error("upload storage write failed", zap.String("key", key), zap.Error(err))
		return nil, "failed to store file"
	}

	utils.Logger.Info("image uploaded",
		zap.String("image_id", imageID),
		zap.String("owner_id", ownerID),
		zap.Int("size", len(content)),
		zap.String("detected_type", detected))

	return &model.ImageUploadResponse{
		ID:          imageID,
		URL:         url,
		Filename:    file.Filename,
		Size:        int64(len(content)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}, ""
}

// Get returns the stored reference for an image ID.
func (h *ImageHandler) Get(c *gin.Context) {
	imageID := c.Param("id")
	ownerID := c.GetString(middleware.CtxUserID)

	for _, ext := range []string{"jpg", "png", "webp"} {
		key := fmt.Sprintf("%s/%s.%s", ownerID, imageID, ext)
		if _, err := h.storage.Download(c.Request.Context(), key); err == nil {
			c.JSON(http.StatusOK, model.ImageInfo{
				ID:        imageID,
				URL:       h.cfg.Storage.PublicURL + "/" + key,
				CreatedAt: time.Now().UTC(),
			})
			return
		}
	}

	c.JSON(http.StatusNotFound, model.ErrorResponse{
		Success: false,
		Message: "image not found",
	})
}

// Delete removes every stored variant of an image ID.
func (h *ImageHandler) Delete(c *gin.Context) {
	imageID := c.Param("id")
	ownerID := c.GetString(middleware.CtxUserID)

	for _, ext := range []string{"jpg", "png", "webp"} {
		key := fmt.Sprintf("%s/%s.%s", ownerID, imageID, ext)
		if err := h.storage.Delete(c.Request.Context(), key); err != nil {
			utils.Logger.Warn("delete failed", zap.String("key", key), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, model.SuccessResponse{
		Success: true,
		Message: "image deleted",
	})
}

// List is a paged listing shell; image metadata is not indexed yet, so the
// listing is empty until a metadata store exists.
func (h *ImageHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	c.JSON(http.StatusOK, model.ImageListResponse{
		Images: []model.ImageInfo{},
		Total:  0,
		Page:   page,
		Limit:  limit,
	})
}

func (h *ImageHandler) isAllowedExt(ext string) bool {
	for _, allowed := range h.cfg.Upload.AllowedExts {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
