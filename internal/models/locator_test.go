package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorParse(t *testing.T) {
	tests := []struct {
		name string
		in   Locator
		want ObjectRef
	}{
		{"s3", "s3://audio/audio_1.wav", ObjectRef{Store: StoreS3, Bucket: "audio", Key: "audio_1.wav"}},
		{"gcs nested key", "gs://out/jobs/a.json", ObjectRef{Store: StoreGCS, Bucket: "out", Key: "jobs/a.json"}},
		{"s3 path style", "https://s3.us-east-1.amazonaws.com/out/medical/job.json", ObjectRef{Store: StoreS3, Bucket: "out", Key: "medical/job.json"}},
		{"s3 virtual host", "https://out.s3.eu-west-1.amazonaws.com/medical/job.json", ObjectRef{Store: StoreS3, Bucket: "out", Key: "medical/job.json"}},
		{"gcs https", "https://storage.googleapis.com/out/a.json", ObjectRef{Store: StoreGCS, Bucket: "out", Key: "a.json"}},
		{"plain https", "https://example.com/result.json", ObjectRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Parse()
			require.NoError(t, err)
			tt.want.URL = string(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocatorParseRejectsMalformed(t *testing.T) {
	for _, in := range []Locator{"", "s3://bucket-only", "s3:///key", "ftp://x/y", "https://"} {
		_, err := in.Parse()
		assert.ErrorIs(t, err, ErrMalformedLocator, "locator %q", in)
	}
}

func TestNewAudioClipNormalizesMediaType(t *testing.T) {
	c := NewAudioClip([]byte{1}, "audio/webm; codecs=opus")
	assert.Equal(t, "audio/webm", c.MediaType)
	assert.Equal(t, ".webm", c.Extension())

	c = NewAudioClip([]byte{1}, "")
	assert.Equal(t, DefaultMediaType, c.MediaType)
	assert.NoError(t, c.Validate())

	assert.Error(t, NewAudioClip(nil, "audio/wav").Validate())
	assert.Error(t, NewAudioClip([]byte{1}, "text/plain").Validate())
}

func TestJobOptionsWithDefaults(t *testing.T) {
	def := JobOptions{LanguageCode: "en-US", DomainSpecialty: "PRIMARYCARE", ConversationType: "CONVERSATION", OutputLocation: "out"}
	got := JobOptions{ConversationType: "DICTATION"}.WithDefaults(def)
	assert.Equal(t, "DICTATION", got.ConversationType)
	assert.Equal(t, "en-US", got.LanguageCode)
	assert.Equal(t, "out", got.OutputLocation)
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []WorkflowState{StateDone, StateErrored, StateCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []WorkflowState{StateIdle, StateUploading, StateSubmitting, StatePolling, StateFetching} {
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, Failed("x", nil).Terminal())
	assert.False(t, Pending(nil).Terminal())
}

func TestSnapshotNewer(t *testing.T) {
	polling := Snapshot{State: StatePolling, PollAttempts: 1}

	assert.True(t, Snapshot{State: StatePolling, PollAttempts: 2}.Newer(polling))
	assert.True(t, Snapshot{State: StateCancelled, PollAttempts: 1}.Newer(polling))
	assert.False(t, polling.Newer(polling))
	assert.False(t, Snapshot{State: StateSubmitting}.Newer(polling))
	assert.True(t, Snapshot{State: StateUploading}.Newer(Snapshot{State: StateIdle}))
}
