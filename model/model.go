package model

import "time"

// Status values shared by single results and batch entries.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
)

// Operation names accepted by batch processing.
const (
	OpEnhance          = "enhance"
	OpRemoveBackground = "remove_background"
	OpShowroom         = "showroom"
)

// ImageUploadResponse describes a stored upload.
type ImageUploadResponse struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageInfo describes a single image reference.
type ImageInfo struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Processed    bool       `json:"processed"`
	ProcessedURL string     `json:"processed_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// ImageListResponse is a paged listing.
type ImageListResponse struct {
	Images []ImageInfo `json:"images"`
	Total  int         `json:"total"`
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
}

// EnhancementRequest selects the enhancement toggles for one image.
type EnhancementRequest struct {
	ImageURL  string `json:"image_url" binding:"required"`
	AutoColor *bool  `json:"auto_color"`
	Contrast  *bool  `json:"contrast"`
	Denoise   *bool  `json:"denoise"`
	Sharpen   *bool  `json:"sharpen"`
}

// BackgroundRemovalRequest asks for the subject of image_url composited onto
// the described background.
type BackgroundRemovalRequest struct {
	ImageURL        string `json:"image_url" binding:"required"`
	BackgroundType  string `json:"background_type"`
	BackgroundColor string `json:"background_color"`
	BackgroundURL   string `json:"background_url"`
}

// BatchRequest submits a list of images and the operations to apply to each.
type BatchRequest struct {
	ImageURLs  []string `json:"image_urls" binding:"required"`
	Operations []string `json:"operations"`
}

// ProcessResponse is the result of a single-image operation, or the
// acceptance receipt for a batch.
type ProcessResponse struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	OriginalURL    string  `json:"original_url"`
	ProcessedURL   string  `json:"processed_url,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
	Backend        string  `json:"backend,omitempty"`
	Warning        string  `json:"warning,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// BatchEntry records the outcome for one image of a batch, in input order.
type BatchEntry struct {
	ImageURL     string `json:"image_url"`
	ProcessedURL string `json:"processed_url,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	Warning      string `json:"warning,omitempty"`
}

// BatchJob is the unit of work handed to the batch runner. It lives only for
// the duration of the run; the JobStatus ledger entry is what survives.
type BatchJob struct {
	JobID      string   `json:"job_id"`
	ImageURLs  []string `json:"image_urls"`
	Operations []string `json:"operations"`
	OwnerID    string   `json:"owner_id"`
}

// JobStatus is the ledger entry for a batch job, updated after every image.
type JobStatus struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Progress  int          `json:"progress"`
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Results   []BatchEntry `json:"results"`
}

// SuccessResponse is the generic success envelope.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the error envelope returned by all handlers.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
