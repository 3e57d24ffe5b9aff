package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	for _, k := range []string{
		"PORT", "TRANSCRIBE_PROVIDER", "AWS_REGION", "AWS_ENDPOINT", "POLL_INTERVAL", "POLL_MAX_ATTEMPTS",
		"POLL_MAX_DURATION", "MAX_UPLOAD_BYTES", "WORKFLOW_WORKERS", "TRANSCRIBE_LANGUAGE_CODE",
		"TRANSCRIBE_SPECIALTY", "TRANSCRIBE_TYPE", "REDIS_ADDR", "REDIS_URI", "REDIS_URL",
		"GOOGLE_SAMPLE_RATE_HZ",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("AUDIO_BUCKET", "audio")
	t.Setenv("OUTPUT_BUCKET", "out")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, ProviderAWS, c.Provider)
	assert.Equal(t, 5*time.Second, c.PollInterval)
	assert.Zero(t, c.PollMaxAttempts)
	assert.Zero(t, c.PollMaxDuration)
	assert.Equal(t, int64(10<<20), c.MaxUploadBytes)
	assert.Equal(t, 4, c.Workers)

	def := c.JobDefaults()
	assert.Equal(t, "en-US", def.LanguageCode)
	assert.Equal(t, "PRIMARYCARE", def.DomainSpecialty)
	assert.Equal(t, "CONVERSATION", def.ConversationType)
	assert.Equal(t, "out", def.OutputLocation)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TRANSCRIBE_PROVIDER", "Google")
	t.Setenv("POLL_INTERVAL", "2")
	t.Setenv("POLL_MAX_DURATION", "10m")
	t.Setenv("POLL_MAX_ATTEMPTS", "30")
	t.Setenv("GOOGLE_SAMPLE_RATE_HZ", "48000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, c.Provider)
	assert.Equal(t, 2*time.Second, c.PollInterval)
	assert.Equal(t, 10*time.Minute, c.PollMaxDuration)
	assert.Equal(t, 30, c.PollMaxAttempts)
	assert.Equal(t, int32(48000), c.SampleRateHz)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisAddr)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("AUDIO_BUCKET", "")
	t.Setenv("OUTPUT_BUCKET", "")
	t.Setenv("TRANSCRIBE_PROVIDER", "azure")
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUDIO_BUCKET")
	assert.Contains(t, err.Error(), "OUTPUT_BUCKET")
	assert.Contains(t, err.Error(), "TRANSCRIBE_PROVIDER")
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoadSampleRate(t *testing.T) {
	setRequired(t)
	t.Setenv("GOOGLE_SAMPLE_RATE_HZ", "16000")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int32(16000), c.SampleRateHz)

	for _, v := range []string{"4294967296", "2147483648", "-8000"} {
		t.Setenv("GOOGLE_SAMPLE_RATE_HZ", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "GOOGLE_SAMPLE_RATE_HZ", v)
	}
}

func TestRedisAddrPrecedence(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URI", "uri:6379")
	t.Setenv("REDIS_URL", "url:6379")
	assert.Equal(t, "uri:6379", RedisAddr())

	t.Setenv("REDIS_ADDR", "addr:6379")
	assert.Equal(t, "addr:6379", RedisAddr())
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()

	rdb2, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer rdb2.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(context.Background(), addr)
	assert.Error(t, err)
}

func TestNewS3ClientEndpoint(t *testing.T) {
	setRequired(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	c, err := Load()
	require.NoError(t, err)

	awsCfg, err := NewAWSConfig(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", awsCfg.Region)

	client := NewS3Client(awsCfg, c)
	assert.Equal(t, "http://localhost:4566", *client.Options().BaseEndpoint)
	assert.True(t, client.Options().UsePathStyle)
}
