package service

import (
	"context"
	"fmt"

	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/utils"
	"go.uber.org/zap"
)

// BatchRunner executes the operations of a batch job image by image.
//
// Operations are applied independently against each image's ORIGINAL URL,
// not chained output-to-input; a batch of ["enhance", "remove_background"]
// stores the removal of the original, not of the enhanced copy. The last
// operation's output becomes the entry's processed URL.
//
// A failure while processing one image marks that image failed and moves on;
// the batch never aborts early and finishes with status completed once every
// image has been attempted.
type BatchRunner struct {
	process *ProcessService
	store   Store
}

func NewBatchRunner(process *ProcessService, store Store) *BatchRunner {
	return &BatchRunner{process: process, store: store}
}

// Submit records the job in the ledger and runs it in a detached goroutine.
// There is no cancellation handle: the caller gets the job ID back
// immediately and polls the ledger for progress.
func (r *BatchRunner) Submit(job model.BatchJob) {
	initial := &model.JobStatus{
		ID:     job.JobID,
		Status: model.StatusProcessing,
		Total:  len(job.ImageURLs),
	}
	if err := r.store.SetJob(context.Background(), initial); err != nil {
		utils.Logger.Warn("job ledger write failed", zap.String("job_id", job.JobID), zap.Error(err))
	}

	go r.Run(context.Background(), job)
}

// Run processes the batch sequentially and returns the final status. The
// ledger is updated after every image so progress is observable mid-run.
func (r *BatchRunner) Run(ctx context.Context, job model.BatchJob) *model.JobStatus {
	status := &model.JobStatus{
		ID:     job.JobID,
		Status: model.StatusProcessing,
		Total:  len(job.ImageURLs),
	}

	utils.Logger.Info("batch started",
		zap.String("job_id", job.JobID),
		zap.String("owner_id", job.OwnerID),
		zap.Int("images", len(job.ImageURLs)),
		zap.Strings("operations", job.Operations))

	for _, imageURL := range job.ImageURLs {
		entry := r.runImage(ctx, imageURL, job.Operations)
		status.Results = append(status.Results, entry)
		status.Progress++
		if entry.Status == model.StatusFailed {
			status.Failed++
		} else {
			status.Completed++
		}
		r.updateLedger(ctx, status)
	}

	status.Status = model.StatusCompleted
	r.updateLedger(ctx, status)

	utils.Logger.Info("batch finished",
		zap.String("job_id", job.JobID),
		zap.Int("completed", status.Completed),
		zap.Int("failed", status.Failed))
	return status
}

// runImage applies every operation to one image, converting errors and
// panics into a failed entry so one bad image never sinks the batch.
func (r *BatchRunner) runImage(ctx context.Context, imageURL string, operations []string) (entry model.BatchEntry) {
	entry = model.BatchEntry{ImageURL: imageURL, Status: model.StatusCompleted}

	defer func() {
		if rec := recover(); rec != nil {
			utils.Logger.Error("panic while processing batch image",
				zap.String("image_url", imageURL), zap.Any("panic", rec))
			entry.Status = model.StatusFailed
			entry.Error = fmt.Sprintf("panic: %v", rec)
		}
	}()

	for _, op := range operations {
		var (
			resp *model.ProcessResponse
			err  error
		)
		switch op {
		case model.OpEnhance:
			resp, err = r.process.Enhance(ctx, model.EnhancementRequest{ImageURL: imageURL})
		case model.OpRemoveBackground:
			resp, err = r.process.RemoveBackground(ctx, model.BackgroundRemovalRequest{ImageURL: imageURL})
		case model.OpShowroom:
			resp, err = r.process.Showroom(ctx, imageURL, "")
		default:
			utils.Logger.Warn("unknown batch operation skipped", zap.String("operation", op))
			continue
		}
		if err != nil {
			entry.Status = model.StatusFailed
			entry.Error = err.Error()
			return entry
		}
		entry.ProcessedURL = resp.ProcessedURL
		if resp.Warning != "" {
			entry.Warning = resp.Warning
		}
	}
	return entry
}

func (r *BatchRunner) updateLedger(ctx context.Context, status *model.JobStatus) {
	if err := r.store.SetJob(ctx, status); err != nil {
		utils.Logger.Warn("job ledger update failed", zap.String("job_id", status.ID), zap.Error(err))
	}
}
