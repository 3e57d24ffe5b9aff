package services

import (
	"context"
	"strings"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
	"github.com/yoockh/medscribe/internal/workflow"
)

// TranscriptionService exposes the workflow steps one at a time for clients
// that drive the polling loop themselves.
type TranscriptionService interface {
	Upload(ctx context.Context, clip models.AudioClip) (models.Locator, error)
	StartJob(ctx context.Context, locator models.Locator, opts models.JobOptions) (models.JobHandle, error)
	JobStatus(ctx context.Context, handle models.JobHandle) (models.JobStatus, error)
	FetchTranscript(ctx context.Context, locator models.Locator) (string, error)
}

type transcriptionService struct {
	store    workflow.Store
	jobs     workflow.Jobs
	fetcher  workflow.Fetcher
	defaults models.JobOptions
}

func NewTranscriptionService(store workflow.Store, jobs workflow.Jobs, fetcher workflow.Fetcher, defaults models.JobOptions) TranscriptionService {
	return &transcriptionService{store: store, jobs: jobs, fetcher: fetcher, defaults: defaults}
}

func (s *transcriptionService) Upload(ctx context.Context, clip models.AudioClip) (models.Locator, error) {
	return s.store.Store(ctx, clip)
}

func (s *transcriptionService) StartJob(ctx context.Context, locator models.Locator, opts models.JobOptions) (models.JobHandle, error) {
	const op = "TranscriptionService.StartJob"

	if strings.TrimSpace(string(locator)) == "" {
		return "", utils.ValidationError(op, "mediaFileUri is required", nil)
	}
	return s.jobs.Submit(ctx, locator, opts.WithDefaults(s.defaults))
}

func (s *transcriptionService) JobStatus(ctx context.Context, handle models.JobHandle) (models.JobStatus, error) {
	const op = "TranscriptionService.JobStatus"

	if strings.TrimSpace(string(handle)) == "" {
		return models.JobStatus{}, utils.ValidationError(op, "jobName is required", nil)
	}
	return s.jobs.Status(ctx, handle)
}

func (s *transcriptionService) FetchTranscript(ctx context.Context, locator models.Locator) (string, error) {
	const op = "TranscriptionService.FetchTranscript"

	if strings.TrimSpace(string(locator)) == "" {
		return "", utils.ValidationError(op, "uri is required", nil)
	}
	return s.fetcher.Fetch(ctx, locator)
}
