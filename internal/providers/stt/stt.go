package stt

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/medscribe/internal/models"
)

// JobClient submits asynchronous transcription jobs and reports their status.
type JobClient interface {
	Name() string
	Submit(ctx context.Context, locator models.Locator, opts models.JobOptions) (models.JobHandle, error)
	Status(ctx context.Context, handle models.JobHandle) (models.JobStatus, error)
	Close() error
}

// jobName is unique per call even within the same millisecond.
func jobName(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}
