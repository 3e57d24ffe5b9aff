package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/medscribe/internal/cache"
	"github.com/yoockh/medscribe/internal/events"
	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
	"github.com/yoockh/medscribe/internal/workers"
	"github.com/yoockh/medscribe/internal/workflow"
)

type stubStore struct{ err error }

func (s stubStore) Store(context.Context, models.AudioClip) (models.Locator, error) {
	if s.err != nil {
		return "", s.err
	}
	return "s3://audio/a.wav", nil
}

// gatedJobs reports Pending until release is closed.
type gatedJobs struct {
	release chan struct{}
}

func (j *gatedJobs) Submit(context.Context, models.Locator, models.JobOptions) (models.JobHandle, error) {
	return "job-1", nil
}

func (j *gatedJobs) Status(context.Context, models.JobHandle) (models.JobStatus, error) {
	select {
	case <-j.release:
		return models.Completed("s3://out/job-1.json", nil), nil
	default:
		return models.Pending(nil), nil
	}
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, models.Locator) (string, error) {
	return "hello world", nil
}

type fullPool struct{}

func (fullPool) Enqueue(workers.Task) error {
	return utils.E(utils.CodeUnavailable, "fullPool", "workflow queue is full", nil)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	svc   WorkflowService
	jobs  *gatedJobs
	cache *cache.MemoryCache
	pool  *workers.WorkflowPool
}

func newFixture(t *testing.T, store workflow.Store) *fixture {
	t.Helper()

	jobs := &gatedJobs{release: make(chan struct{})}
	orch := workflow.New(store, jobs, stubFetcher{}, workflow.Config{PollInterval: time.Millisecond},
		workflow.WithLogger(quietLogger()))

	pool := &workers.WorkflowPool{NumWorkers: 2, QueueSize: 4, Logger: quietLogger()}
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	c := cache.NewMemoryCache()
	svc := NewWorkflowService(orch, pool, c, events.NewMemoryBus(), time.Hour, quietLogger())
	t.Cleanup(svc.CancelAll)

	return &fixture{svc: svc, jobs: jobs, cache: c, pool: pool}
}

func audio() models.AudioClip {
	return models.NewAudioClip([]byte("RIFF"), "audio/wav")
}

func waitFor(t *testing.T, svc WorkflowService, id string, cond func(models.Snapshot) bool) models.Snapshot {
	t.Helper()
	var snap models.Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = svc.Get(context.Background(), id)
		return err == nil && cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestWorkflowServiceRunsToDone(t *testing.T) {
	f := newFixture(t, stubStore{})
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, audio(), models.JobOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, snap.State)
	assert.NotEmpty(t, snap.ID)

	waitFor(t, f.svc, snap.ID, func(s models.Snapshot) bool { return s.State == models.StatePolling })
	close(f.jobs.release)

	final := waitFor(t, f.svc, snap.ID, models.Snapshot.Terminal)
	assert.Equal(t, models.StateDone, final.State)
	assert.Equal(t, "hello world", final.Transcript)
	assert.Equal(t, models.JobHandle("job-1"), final.Handle)
}

func TestWorkflowServiceRejectsInvalidClip(t *testing.T) {
	f := newFixture(t, stubStore{})

	_, err := f.svc.Start(context.Background(), models.NewAudioClip(nil, "audio/wav"), models.JobOptions{})
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	_, err = f.svc.Start(context.Background(), models.NewAudioClip([]byte("x"), "text/plain"), models.JobOptions{})
	assert.True(t, utils.IsKind(err, utils.KindValidation))
}

func TestWorkflowServiceRecordsStageFailure(t *testing.T) {
	f := newFixture(t, stubStore{err: utils.StorageError("S3Store.Upload", "put failed", errors.New("boom"))})

	snap, err := f.svc.Start(context.Background(), audio(), models.JobOptions{})
	require.NoError(t, err)

	final := waitFor(t, f.svc, snap.ID, models.Snapshot.Terminal)
	assert.Equal(t, models.StateErrored, final.State)
	assert.Equal(t, models.StageUpload, final.Stage)
	assert.Equal(t, string(utils.KindStorage), final.ErrorKind)
}

func TestWorkflowServiceCancel(t *testing.T) {
	f := newFixture(t, stubStore{})
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, audio(), models.JobOptions{})
	require.NoError(t, err)
	waitFor(t, f.svc, snap.ID, func(s models.Snapshot) bool { return s.State == models.StatePolling })

	_, err = f.svc.Cancel(ctx, snap.ID)
	require.NoError(t, err)

	final := waitFor(t, f.svc, snap.ID, models.Snapshot.Terminal)
	assert.Equal(t, models.StateCancelled, final.State)

	// cancelling a finished workflow returns it unchanged
	again, err := f.svc.Cancel(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, again.State)
}

func TestWorkflowServiceNotFound(t *testing.T) {
	f := newFixture(t, stubStore{})

	_, err := f.svc.Get(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = f.svc.Cancel(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, _, err = f.svc.Watch(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestWorkflowServiceQueueFull(t *testing.T) {
	orch := workflow.New(stubStore{}, &gatedJobs{release: make(chan struct{})}, stubFetcher{}, workflow.Config{},
		workflow.WithLogger(quietLogger()))
	c := cache.NewMemoryCache()
	svc := NewWorkflowService(orch, fullPool{}, c, events.NewMemoryBus(), time.Hour, quietLogger())

	_, err := svc.Start(context.Background(), audio(), models.JobOptions{})
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Empty(t, svc.(*workflowService).cancels)
}

func TestWorkflowServiceWatch(t *testing.T) {
	f := newFixture(t, stubStore{})
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, audio(), models.JobOptions{})
	require.NoError(t, err)
	waitFor(t, f.svc, snap.ID, func(s models.Snapshot) bool { return s.State == models.StatePolling })

	ch, stop, err := f.svc.Watch(ctx, snap.ID)
	require.NoError(t, err)
	defer stop()

	first := <-ch
	assert.Equal(t, models.StatePolling, first.State)

	close(f.jobs.release)

	last := first
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case s, ok := <-ch:
			if !ok {
				done = true
				break
			}
			assert.True(t, s.Newer(last))
			last = s
		case <-timeout:
			t.Fatal("watch did not finish")
		}
	}
	assert.Equal(t, models.StateDone, last.State)
}

func TestWatchFinishedWorkflowClosesAfterOneSnapshot(t *testing.T) {
	f := newFixture(t, stubStore{err: utils.StorageError("op", "down", nil)})
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, audio(), models.JobOptions{})
	require.NoError(t, err)
	waitFor(t, f.svc, snap.ID, models.Snapshot.Terminal)

	ch, stop, err := f.svc.Watch(ctx, snap.ID)
	require.NoError(t, err)
	defer stop()

	got := <-ch
	assert.Equal(t, models.StateErrored, got.State)
	_, ok := <-ch
	assert.False(t, ok)
}

type panickingStore struct{}

func (panickingStore) Store(context.Context, models.AudioClip) (models.Locator, error) {
	var m map[string]int
	m["boom"]++
	return "", nil
}

func TestWorkflowServiceRecordsPanicAsErrored(t *testing.T) {
	f := newFixture(t, panickingStore{})
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, audio(), models.JobOptions{})
	require.NoError(t, err)

	final := waitFor(t, f.svc, snap.ID, models.Snapshot.Terminal)
	assert.Equal(t, models.StateErrored, final.State)
	assert.Equal(t, models.StageUpload, final.Stage)
	assert.Equal(t, string(utils.CodeInternal), final.ErrorCode)
	assert.NotEmpty(t, final.Error)

	ch, stop, err := f.svc.Watch(ctx, snap.ID)
	require.NoError(t, err)
	defer stop()

	got := <-ch
	assert.Equal(t, models.StateErrored, got.State)
	_, ok := <-ch
	assert.False(t, ok)

	svc := f.svc.(*workflowService)
	assert.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.cancels) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, models.StageUpload, stageOf(models.StateIdle))
	assert.Equal(t, models.StageUpload, stageOf(models.StateUploading))
	assert.Equal(t, models.StageSubmit, stageOf(models.StateSubmitting))
	assert.Equal(t, models.StageTranscribe, stageOf(models.StatePolling))
	assert.Equal(t, models.StageFetch, stageOf(models.StateFetching))
}
