package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/medscribe/internal/cache"
	"github.com/yoockh/medscribe/internal/events"
	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
	"github.com/yoockh/medscribe/internal/workers"
	"github.com/yoockh/medscribe/internal/workflow"
)

// WorkflowService runs upload-transcribe-poll workflows in the background
// and tracks each instance by id.
type WorkflowService interface {
	Start(ctx context.Context, clip models.AudioClip, opts models.JobOptions) (models.Snapshot, error)
	Get(ctx context.Context, id string) (models.Snapshot, error)
	Cancel(ctx context.Context, id string) (models.Snapshot, error)
	// Watch yields the current snapshot followed by every later one and
	// closes the channel after a terminal snapshot.
	Watch(ctx context.Context, id string) (<-chan models.Snapshot, func(), error)
	CancelAll()
}

type Runner interface {
	NewSnapshot(id string, clip models.AudioClip) models.Snapshot
	Run(ctx context.Context, id string, clip models.AudioClip, opts models.JobOptions, observe workflow.Observer) (models.Snapshot, error)
}

type Enqueuer interface {
	Enqueue(t workers.Task) error
}

const recordTimeout = 5 * time.Second

type workflowService struct {
	runner Runner
	pool   Enqueuer
	cache  cache.Cache
	bus    events.Bus
	ttl    time.Duration
	log    *logrus.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewWorkflowService(runner Runner, pool Enqueuer, c cache.Cache, bus events.Bus, ttl time.Duration, log *logrus.Logger) WorkflowService {
	if log == nil {
		log = logrus.New()
	}
	return &workflowService{
		runner:  runner,
		pool:    pool,
		cache:   c,
		bus:     bus,
		ttl:     ttl,
		log:     log,
		cancels: map[string]context.CancelFunc{},
	}
}

func (s *workflowService) Start(ctx context.Context, clip models.AudioClip, opts models.JobOptions) (models.Snapshot, error) {
	const op = "WorkflowService.Start"

	if err := clip.Validate(); err != nil {
		return models.Snapshot{}, utils.ValidationError(op, err.Error(), nil)
	}

	id := uuid.NewString()
	snap := s.runner.NewSnapshot(id, clip)
	if err := s.cache.SetJSON(ctx, cache.SnapshotKey(id), snap, s.ttl); err != nil {
		return models.Snapshot{}, utils.E(utils.CodeUnavailable, op, "failed to record workflow", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	err := s.pool.Enqueue(func(poolCtx context.Context) {
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		defer s.forget(id)

		last := snap
		defer func() {
			if r := recover(); r != nil {
				s.recordPanic(last, r)
			}
		}()

		final, err := s.runner.Run(runCtx, id, clip, opts, func(sn models.Snapshot) {
			last = sn
			s.record(sn)
		})
		entry := s.log.WithFields(logrus.Fields{"workflow_id": id, "state": final.State})
		if err != nil {
			entry.WithError(err).Info("workflow finished")
			return
		}
		entry.Info("workflow finished")
	})
	if err != nil {
		s.forget(id)
		_ = s.cache.Del(ctx, cache.SnapshotKey(id))
		return models.Snapshot{}, err
	}

	return snap, nil
}

func (s *workflowService) Get(ctx context.Context, id string) (models.Snapshot, error) {
	const op = "WorkflowService.Get"

	if id == "" {
		return models.Snapshot{}, utils.E(utils.CodeInvalidArgument, op, "workflow id is required", nil)
	}

	var snap models.Snapshot
	hit, err := s.cache.GetJSON(ctx, cache.SnapshotKey(id), &snap)
	if err != nil {
		return models.Snapshot{}, utils.E(utils.CodeUnavailable, op, "failed to read workflow", err)
	}
	if !hit {
		return models.Snapshot{}, utils.E(utils.CodeNotFound, op, "workflow not found", utils.ErrNotFound)
	}
	return snap, nil
}

// Cancel signals a running workflow. The snapshot returned may still show
// the pre-cancel state; the Cancelled snapshot follows on Watch.
func (s *workflowService) Cancel(ctx context.Context, id string) (models.Snapshot, error) {
	const op = "WorkflowService.Cancel"

	snap, err := s.Get(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	if snap.Terminal() {
		return snap, nil
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if !ok {
		return models.Snapshot{}, utils.E(utils.CodeConflict, op, "workflow is not running on this instance", nil)
	}

	cancel()
	s.log.WithField("workflow_id", id).Info("workflow cancel requested")
	return snap, nil
}

func (s *workflowService) Watch(ctx context.Context, id string) (<-chan models.Snapshot, func(), error) {
	sub, unsubscribe, err := s.bus.Subscribe(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	// read after subscribing so no transition falls between the two
	current, err := s.Get(ctx, id)
	if err != nil {
		unsubscribe()
		return nil, nil, err
	}

	out := make(chan models.Snapshot, 1)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}

	go func() {
		defer close(out)

		out <- current
		if current.Terminal() {
			return
		}
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case snap, ok := <-sub:
				if !ok {
					return
				}
				if !snap.Newer(current) {
					continue
				}
				current = snap
				select {
				case out <- snap:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
				if snap.Terminal() {
					return
				}
			}
		}
	}()

	return out, stop, nil
}

func (s *workflowService) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
}

// record persists and broadcasts one snapshot. It runs on the workflow
// goroutine, after the run's own context may already be cancelled.
func (s *workflowService) record(snap models.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	log := s.log.WithField("workflow_id", snap.ID)
	if err := s.cache.SetJSON(ctx, cache.SnapshotKey(snap.ID), snap, s.ttl); err != nil {
		log.WithError(err).Warn("failed to store snapshot")
	}
	if err := s.bus.Publish(ctx, snap); err != nil {
		log.WithError(err).Warn("failed to publish snapshot")
	}
}

// recordPanic ends a run whose collaborator panicked so watchers see a
// terminal snapshot instead of the last in-flight one.
func (s *workflowService) recordPanic(last models.Snapshot, r any) {
	stage := stageOf(last.State)
	last.State = models.StateErrored
	last.Stage = stage
	last.ErrorCode = string(utils.CodeInternal)
	last.ErrorKind = ""
	last.Error = fmt.Sprintf("internal error during %s", stage)
	last.UpdatedAt = time.Now().UTC()

	s.log.WithFields(logrus.Fields{"workflow_id": last.ID, "stage": stage, "panic": r}).Error("workflow panicked")
	s.record(last)
}

// stageOf names the step a workflow in state st was executing.
func stageOf(st models.WorkflowState) models.Stage {
	switch st {
	case models.StateSubmitting:
		return models.StageSubmit
	case models.StatePolling:
		return models.StageTranscribe
	case models.StateFetching:
		return models.StageFetch
	default:
		return models.StageUpload
	}
}

func (s *workflowService) forget(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}
