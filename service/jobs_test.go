package service

import (
	"context"
	"testing"
	"time"

	"github.com/damymess/keroxio-image/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreJobRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	job := &model.JobStatus{
		ID:     "job-1",
		Status: model.StatusProcessing,
		Total:  3,
	}
	require.NoError(t, s.SetJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, 3, got.Total)
}

func TestMemoryStoreUnknownJobIsNil(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	got, err := s.GetJob(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	s := NewMemoryStore(-time.Second)
	ctx := context.Background()

	require.NoError(t, s.SetJob(ctx, &model.JobStatus{ID: "job-1"}))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreResultRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	resp := &model.ProcessResponse{
		ID:           "r-1",
		Status:       model.StatusCompleted,
		ProcessedURL: "/storage/processed/r-1.png",
	}
	require.NoError(t, s.SetResult(ctx, "key-1", resp))

	got, err := s.GetResult(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp.ProcessedURL, got.ProcessedURL)

	miss, err := s.GetResult(ctx, "key-2")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
