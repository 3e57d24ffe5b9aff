package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/medscribe/config"
	"github.com/yoockh/medscribe/internal/api/handlers"
	"github.com/yoockh/medscribe/internal/api/middleware"
	"github.com/yoockh/medscribe/internal/api/routes"
	"github.com/yoockh/medscribe/internal/cache"
	"github.com/yoockh/medscribe/internal/events"
	"github.com/yoockh/medscribe/internal/logger"
	"github.com/yoockh/medscribe/internal/providers/stt"
	"github.com/yoockh/medscribe/internal/services"
	"github.com/yoockh/medscribe/internal/storage"
	"github.com/yoockh/medscribe/internal/transcript"
	"github.com/yoockh/medscribe/internal/workers"
	"github.com/yoockh/medscribe/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
}

type backend struct {
	bucket storage.Bucket
	jobs   stt.JobClient
	close  func()
}

// newBackend wires the object store and job client of the configured
// provider. Result documents are read back through the same bucket client.
func newBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		gcsStore, err := storage.NewGCSStore(ctx, cfg.AudioBucket)
		if err != nil {
			return nil, err
		}
		speech, err := stt.NewGoogleSpeech(ctx, cfg.SampleRateHz)
		if err != nil {
			_ = gcsStore.Close()
			return nil, err
		}
		return &backend{
			bucket: gcsStore,
			jobs:   speech,
			close: func() {
				_ = speech.Close()
				_ = gcsStore.Close()
			},
		}, nil

	default:
		awsCfg, err := config.NewAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			bucket: storage.NewS3Store(config.NewS3Client(awsCfg, cfg), cfg.AudioBucket),
			jobs:   stt.NewAWSMedical(config.NewTranscribeClient(awsCfg)),
			close:  func() {},
		}, nil
	}
}

func newStateStores(ctx context.Context, cfg config.Config, log *logrus.Logger) (cache.Cache, events.Bus, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, keeping workflow state in memory")
		return cache.NewMemoryCache(), events.NewMemoryBus(), func() {}, nil
	}
	rdb, err := config.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("Redis connected")
	return cache.NewRedisCache(rdb), events.NewRedisBus(rdb, log), func() { _ = rdb.Close() }, nil
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	be, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()
	log.WithFields(logrus.Fields{"provider": be.jobs.Name(), "bucket": be.bucket.Name()}).Info("transcription backend ready")

	stateCache, bus, closeState, err := newStateStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeState()

	clips := storage.NewClipStore(be.bucket, cfg.ObjectPrefix)
	fetcher := transcript.NewFetcher(
		transcript.WithOpener(be.bucket.Scheme(), be.bucket),
		transcript.WithBuckets(cfg.OutputBucket),
		transcript.WithMaxBytes(cfg.MaxResultBytes),
	)

	orch := workflow.New(clips, be.jobs, fetcher, workflow.Config{
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
		MaxDuration:  cfg.PollMaxDuration,
		Defaults:     cfg.JobDefaults(),
	}, workflow.WithLogger(log))

	pool := &workers.WorkflowPool{NumWorkers: cfg.Workers, QueueSize: cfg.QueueSize, Logger: log}
	if err := pool.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	recordings := services.NewTranscriptionService(clips, be.jobs, fetcher, cfg.JobDefaults())
	workflows := services.NewWorkflowService(orch, pool, stateCache, bus, cfg.SnapshotTTL, log)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Recording: handlers.NewRecordingHandler(recordings, cfg.MaxUploadBytes),
		Workflow:  handlers.NewWorkflowHandler(workflows, cfg.MaxUploadBytes),
		WS:        handlers.NewWSHandler(workflows),
		StaticDir: cfg.StaticDir,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	workflows.CancelAll()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("workflows still running at exit")
	}
	return nil
}
