// Package workflow drives one recorded clip through upload, transcription
// job submission, status polling and result retrieval.
//
// Each Run owns its state; an Orchestrator holds only immutable
// collaborators and can serve any number of concurrent runs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

const DefaultPollInterval = 5 * time.Second

var ErrPollLimit = errors.New("poll limit reached")

type Store interface {
	Store(ctx context.Context, clip models.AudioClip) (models.Locator, error)
}

type Jobs interface {
	Submit(ctx context.Context, locator models.Locator, opts models.JobOptions) (models.JobHandle, error)
	Status(ctx context.Context, handle models.JobHandle) (models.JobStatus, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, locator models.Locator) (string, error)
}

// Observer receives a copy of the snapshot after every transition and
// every pending poll tick. It runs on the workflow goroutine.
type Observer func(models.Snapshot)

type Config struct {
	PollInterval time.Duration
	MaxAttempts  int           // 0 polls until the job is terminal
	MaxDuration  time.Duration // 0 polls until the job is terminal
	Defaults     models.JobOptions
}

// JobFailedError is the cause recorded when the provider reports a failed job.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string { return e.Reason }

type Option func(*Orchestrator)

func WithScheduler(s Scheduler) Option {
	return func(o *Orchestrator) { o.sched = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(l *logrus.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

type Orchestrator struct {
	store   Store
	jobs    Jobs
	fetcher Fetcher
	cfg     Config
	sched   Scheduler
	now     func() time.Time
	log     *logrus.Logger
}

func New(store Store, jobs Jobs, fetcher Fetcher, cfg Config, opts ...Option) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	o := &Orchestrator{
		store:   store,
		jobs:    jobs,
		fetcher: fetcher,
		cfg:     cfg,
		sched:   TimerScheduler{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logrus.New()
	}
	return o
}

// NewSnapshot returns the Idle snapshot a Run for clip starts from.
func (o *Orchestrator) NewSnapshot(id string, clip models.AudioClip) models.Snapshot {
	now := o.now().UTC()
	return models.Snapshot{
		ID:        id,
		State:     models.StateIdle,
		MediaType: clip.MediaType,
		Size:      clip.Size(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Run drives clip to Done, Errored or Cancelled and returns the final
// snapshot. The error is nil only for Done.
//
// Cancelling ctx stops the workflow at the next step boundary or during a
// poll wait. Upload, submit, status and fetch calls are not interrupted.
func (o *Orchestrator) Run(ctx context.Context, id string, clip models.AudioClip, opts models.JobOptions, observe Observer) (models.Snapshot, error) {
	r := &run{
		o:       o,
		clip:    clip,
		opts:    opts.WithDefaults(o.cfg.Defaults),
		snap:    o.NewSnapshot(id, clip),
		observe: observe,
		log:     o.log.WithField("workflow_id", id),
	}

	for !r.snap.State.Terminal() {
		if ctx.Err() != nil {
			r.cancel()
			break
		}
		r.step(ctx)
	}
	return r.snap, r.cause
}

type run struct {
	o         *Orchestrator
	clip      models.AudioClip
	opts      models.JobOptions
	snap      models.Snapshot
	observe   Observer
	log       *logrus.Entry
	cause     error
	pollStart time.Time
}

func (r *run) step(ctx context.Context) {
	once := context.WithoutCancel(ctx)

	switch r.snap.State {
	case models.StateIdle:
		r.transition(models.StateUploading)

	case models.StateUploading:
		loc, err := r.o.store.Store(once, r.clip)
		if err != nil {
			r.fail(models.StageUpload, err)
			return
		}
		r.snap.Locator = loc
		r.transition(models.StateSubmitting)

	case models.StateSubmitting:
		h, err := r.o.jobs.Submit(once, r.snap.Locator, r.opts)
		if err != nil {
			r.fail(models.StageSubmit, err)
			return
		}
		r.snap.Handle = h
		r.pollStart = r.o.now()
		r.transition(models.StatePolling)

	case models.StatePolling:
		r.poll(ctx)

	case models.StateFetching:
		text, err := r.o.fetcher.Fetch(once, r.snap.ResultLocator)
		if err != nil {
			r.fail(models.StageFetch, err)
			return
		}
		r.snap.Transcript = text
		r.transition(models.StateDone)

	default:
		r.fail(models.StageUpload, fmt.Errorf("workflow entered unknown state %q", r.snap.State))
	}
}

// poll performs one status query and either stays in Polling after the
// scheduled delay or leaves it for good.
func (r *run) poll(ctx context.Context) {
	r.snap.PollAttempts++
	st, err := r.o.jobs.Status(context.WithoutCancel(ctx), r.snap.Handle)
	if err != nil {
		r.fail(models.StageTranscribe, err)
		return
	}

	switch st.State {
	case models.JobCompleted:
		r.snap.ResultLocator = st.ResultLocator
		r.transition(models.StateFetching)
	case models.JobFailed:
		r.fail(models.StageTranscribe, &JobFailedError{Reason: st.Reason})
	case models.JobPending:
		if err := r.checkLimits(); err != nil {
			r.fail(models.StageTranscribe, err)
			return
		}
		r.touch()
		r.log.WithFields(logrus.Fields{"job": r.snap.Handle, "attempt": r.snap.PollAttempts}).Debug("transcription pending")
		if err := r.o.sched.Wait(ctx, r.o.cfg.PollInterval); err != nil {
			r.cancel()
		}
	default:
		r.fail(models.StageTranscribe, fmt.Errorf("unknown job state %q", st.State))
	}
}

func (r *run) checkLimits() error {
	const op = "Workflow.poll"

	if limit := r.o.cfg.MaxAttempts; limit > 0 && r.snap.PollAttempts >= limit {
		return utils.E(utils.CodeTimeout, op, fmt.Sprintf("job still pending after %d status checks", r.snap.PollAttempts), ErrPollLimit)
	}
	if limit := r.o.cfg.MaxDuration; limit > 0 && r.o.now().Sub(r.pollStart) >= limit {
		return utils.E(utils.CodeTimeout, op, fmt.Sprintf("job still pending after %s", limit), ErrPollLimit)
	}
	return nil
}

func (r *run) transition(to models.WorkflowState) {
	from := r.snap.State
	r.snap.State = to
	r.touch()

	entry := r.log.WithFields(logrus.Fields{"from": from, "to": to})
	if r.snap.Locator != "" {
		entry = entry.WithField("locator", r.snap.Locator)
	}
	if r.snap.Handle != "" {
		entry = entry.WithField("job", r.snap.Handle)
	}
	entry.Info("workflow transition")
}

func (r *run) fail(stage models.Stage, err error) {
	r.cause = err
	r.snap.Stage = stage
	r.snap.Error = err.Error()

	var jf *JobFailedError
	switch {
	case errors.As(err, &jf):
		r.snap.ErrorCode = "TRANSCRIPTION_FAILED"
	default:
		r.snap.ErrorCode = string(utils.CodeOf(err))
		r.snap.ErrorKind = string(utils.KindOf(err))
	}

	r.log.WithError(err).WithField("stage", stage).Warn("workflow errored")
	r.transition(models.StateErrored)
}

func (r *run) cancel() {
	r.cause = context.Canceled
	r.snap.ErrorCode = string(utils.CodeCancelled)
	r.transition(models.StateCancelled)
}

// touch stamps the snapshot and hands a copy to the observer.
func (r *run) touch() {
	r.snap.UpdatedAt = r.o.now().UTC()
	if r.observe != nil {
		r.observe(r.snap)
	}
}
