package handler

import (
	"net/http"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/middleware"
	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/service"
	"github.com/damymess/keroxio-image/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProcessHandler exposes the processing operations over HTTP.
type ProcessHandler struct {
	cfg     *config.Config
	process *service.ProcessService
	batch   *service.BatchRunner
	store   service.Store
	backend func() service.SegmentationBackend
}

func NewProcessHandler(cfg *config.Config, process *service.ProcessService,
	batch *service.BatchRunner, store service.Store, selector *service.Selector) *ProcessHandler {
	return &ProcessHandler{
		cfg:     cfg,
		process: process,
		batch:   batch,
		store:   store,
		backend: selector.Backend,
	}
}

// Enhance runs the enhancement pipeline on one image.
func (h *ProcessHandler) Enhance(c *gin.Context) {
	var req model.EnhancementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid request",
			Error:   err.Error(),
		})
		return
	}

	resp, err := h.process.Enhance(c.Request.Context(), req)
	if err != nil {
		utils.Logger.Error("enhancement failed", zap.String("image_url", req.ImageURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "enhancement failed",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RemoveBackground composites the subject of one image onto the requested
// background.
func (h *ProcessHandler) RemoveBackground(c *gin.Context) {
	var req model.BackgroundRemovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid request",
			Error:   err.Error(),
		})
		return
	}

	resp, err := h.process.RemoveBackground(c.Request.Context(), req)
	if err != nil {
		utils.Logger.Error("background removal failed", zap.String("image_url", req.ImageURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "background removal failed",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Showroom places the subject on a showroom backdrop.
func (h *ProcessHandler) Showroom(c *gin.Context) {
	var req struct {
		ImageURL     string `json:"image_url" binding:"required"`
		ShowroomType string `json:"showroom_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid request",
			Error:   err.Error(),
		})
		return
	}

	resp, err := h.process.Showroom(c.Request.Context(), req.ImageURL, req.ShowroomType)
	if err != nil {
		utils.Logger.Error("showroom placement failed", zap.String("image_url", req.ImageURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "showroom placement failed",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Batch accepts a multi-image job and returns 202 with a job ID; progress is
// polled via Status.
func (h *ProcessHandler) Batch(c *gin.Context) {
	var req model.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid request",
			Error:   err.Error(),
		})
		return
	}

	if len(req.ImageURLs) == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "image_urls must not be empty",
		})
		return
	}
	if len(req.ImageURLs) > h.cfg.Upload.MaxBatch {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "too many images in batch",
		})
		return
	}

	operations := req.Operations
	if len(operations) == 0 {
		operations = []string{model.OpRemoveBackground}
	}

	job := model.BatchJob{
		JobID:      utils.NewID(),
		ImageURLs:  req.ImageURLs,
		Operations: operations,
		OwnerID:    c.GetString(middleware.CtxUserID),
	}
	h.batch.Submit(job)

	c.JSON(http.StatusAccepted, model.ProcessResponse{
		ID:      job.JobID,
		Status:  model.StatusProcessing,
		Message: "batch accepted, poll status endpoint for progress",
	})
}

// Status reports the ledger entry for a batch job.
func (h *ProcessHandler) Status(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		utils.Logger.Error("job ledger read failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to read job status",
		})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Info reports the active backend and the operations the service offers.
func (h *ProcessHandler) Info(c *gin.Context) {
	backend := h.backend()
	c.JSON(http.StatusOK, gin.H{
		"backend":    backend.Name(),
		"remote":     backend.Remote(),
		"operations": []string{model.OpEnhance, model.OpRemoveBackground, model.OpShowroom},
		"max_batch":  h.cfg.Upload.MaxBatch,
		"presets":    model.PresetNames(),
	})
}
