package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/medscribe/internal/models"
)

const (
	ProviderAWS    = "aws"
	ProviderGoogle = "google"
)

type Config struct {
	Port     string
	LogLevel string
	Provider string

	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	AWSEndpoint  string

	AudioBucket  string
	OutputBucket string
	ObjectPrefix string

	LanguageCode     string
	Specialty        string
	ConversationType string
	SampleRateHz     int32

	PollInterval    time.Duration
	PollMaxAttempts int
	PollMaxDuration time.Duration

	MaxUploadBytes int64
	MaxResultBytes int64

	Workers     int
	QueueSize   int
	SnapshotTTL time.Duration

	RedisAddr       string
	StaticDir       string
	ShutdownTimeout time.Duration
}

// JobDefaults are the recognition options applied when a request leaves
// them empty.
func (c Config) JobDefaults() models.JobOptions {
	return models.JobOptions{
		LanguageCode:     c.LanguageCode,
		DomainSpecialty:  c.Specialty,
		ConversationType: c.ConversationType,
		OutputLocation:   c.OutputBucket,
	}
}

// Load reads the process environment. Call godotenv.Load first to pick up
// a .env file.
func Load() (Config, error) {
	var errs []error

	c := Config{
		Port:             envOr("PORT", "8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		Provider:         strings.ToLower(envOr("TRANSCRIBE_PROVIDER", ProviderAWS)),
		AWSRegion:        envOr("AWS_REGION", "us-east-1"),
		AWSAccessKey:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSEndpoint:      os.Getenv("AWS_ENDPOINT"),
		AudioBucket:      os.Getenv("AUDIO_BUCKET"),
		OutputBucket:     os.Getenv("OUTPUT_BUCKET"),
		ObjectPrefix:     os.Getenv("OBJECT_PREFIX"),
		LanguageCode:     envOr("TRANSCRIBE_LANGUAGE_CODE", "en-US"),
		Specialty:        envOr("TRANSCRIBE_SPECIALTY", "PRIMARYCARE"),
		ConversationType: envOr("TRANSCRIBE_TYPE", "CONVERSATION"),
		RedisAddr:        RedisAddr(),
		StaticDir:        os.Getenv("STATIC_DIR"),
	}

	if rate := envInt("GOOGLE_SAMPLE_RATE_HZ", 0, &errs); rate < 0 || rate > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("GOOGLE_SAMPLE_RATE_HZ %d is out of range", rate))
	} else {
		c.SampleRateHz = int32(rate)
	}
	c.PollInterval = envDuration("POLL_INTERVAL", 5*time.Second, &errs)
	c.PollMaxAttempts = envInt("POLL_MAX_ATTEMPTS", 0, &errs)
	c.PollMaxDuration = envDuration("POLL_MAX_DURATION", 0, &errs)
	c.MaxUploadBytes = int64(envInt("MAX_UPLOAD_BYTES", 10<<20, &errs))
	c.MaxResultBytes = int64(envInt("MAX_RESULT_BYTES", 20<<20, &errs))
	c.Workers = envInt("WORKFLOW_WORKERS", 4, &errs)
	c.QueueSize = envInt("WORKFLOW_QUEUE_SIZE", 64, &errs)
	c.SnapshotTTL = envDuration("SNAPSHOT_TTL", 24*time.Hour, &errs)
	c.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", 15*time.Second, &errs)

	errs = append(errs, c.validate()...)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return c, nil
}

func (c Config) validate() []error {
	var errs []error
	switch c.Provider {
	case ProviderAWS, ProviderGoogle:
	default:
		errs = append(errs, fmt.Errorf("TRANSCRIBE_PROVIDER must be %q or %q, got %q", ProviderAWS, ProviderGoogle, c.Provider))
	}
	if c.AudioBucket == "" {
		errs = append(errs, errors.New("AUDIO_BUCKET environment variable is not set"))
	}
	if c.OutputBucket == "" {
		errs = append(errs, errors.New("OUTPUT_BUCKET environment variable is not set"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.PollMaxAttempts < 0 || c.PollMaxDuration < 0 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS and POLL_MAX_DURATION must not be negative"))
	}
	if c.MaxUploadBytes <= 0 || c.MaxResultBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES and MAX_RESULT_BYTES must be positive"))
	}
	if c.Workers <= 0 || c.QueueSize <= 0 {
		errs = append(errs, errors.New("WORKFLOW_WORKERS and WORKFLOW_QUEUE_SIZE must be positive"))
	}
	return errs
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// envDuration accepts Go durations ("5s") or a bare number of seconds.
func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
