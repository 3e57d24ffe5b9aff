package stt

import (
	"context"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

const GoogleSpeechName = "google-speech"

// SpeechAPI is the part of the long-running recognition client used here.
type SpeechAPI interface {
	Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (string, error)
	// Poll refreshes the named operation. A returned error means the
	// operation could not be read; a failed operation sets Err instead.
	Poll(ctx context.Context, name string) (SpeechOperation, error)
	Close() error
}

type SpeechOperation struct {
	Done     bool
	Err      error
	Response *speechpb.LongRunningRecognizeResponse
	Metadata *speechpb.LongRunningRecognizeMetadata
}

type speechClient struct {
	c *speech.Client
}

func (s speechClient) Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (string, error) {
	lro, err := s.c.LongRunningRecognize(ctx, req)
	if err != nil {
		return "", err
	}
	return lro.Name(), nil
}

func (s speechClient) Poll(ctx context.Context, name string) (SpeechOperation, error) {
	lro := s.c.LongRunningRecognizeOperation(name)
	resp, err := lro.Poll(ctx)
	meta, _ := lro.Metadata()
	op := SpeechOperation{Done: lro.Done(), Response: resp, Metadata: meta}
	if err != nil {
		if op.Done {
			op.Err = err
			return op, nil
		}
		return op, err
	}
	return op, nil
}

func (s speechClient) Close() error { return s.c.Close() }

// GoogleSpeech runs long-running recognition with the transcript written to GCS.
// The job handle is the operation name.
type GoogleSpeech struct {
	c SpeechAPI

	// zero values let the service read both from the WAV/FLAC header
	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32

	now func() time.Time
}

func NewGoogleSpeech(ctx context.Context, sampleRateHz int32, opts ...option.ClientOption) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            speechClient{c: c},
		Encoding:     speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
		SampleRateHz: sampleRateHz,
		now:          time.Now,
	}, nil
}

func (g *GoogleSpeech) Name() string { return GoogleSpeechName }

func (g *GoogleSpeech) Close() error {
	if g.c == nil {
		return nil
	}
	return g.c.Close()
}

func (g *GoogleSpeech) Submit(ctx context.Context, locator models.Locator, opts models.JobOptions) (models.JobHandle, error) {
	const op = "GoogleSpeech.Submit"

	ref, err := locator.Parse()
	if err != nil || ref.Store != models.StoreGCS || !strings.HasPrefix(ref.URL, "gs://") {
		return "", utils.ValidationError(op, "invalid GCS URI", err)
	}
	if opts.OutputLocation == "" {
		return "", utils.ValidationError(op, "output bucket is required", nil)
	}

	language := opts.LanguageCode
	if language == "" {
		language = "en-US"
	}
	output := models.GCSLocator(opts.OutputLocation, jobName("transcript", g.now())+".json")

	name, err := g.c.Recognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			Model:                      googleModel(opts),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: string(locator)},
		},
		OutputConfig: &speechpb.TranscriptOutputConfig{
			OutputType: &speechpb.TranscriptOutputConfig_GcsUri{GcsUri: string(output)},
		},
	})
	if err != nil {
		return "", utils.SubmissionError(op, "provider rejected job: "+status.Code(err).String(), err)
	}
	return models.JobHandle(name), nil
}

func (g *GoogleSpeech) Status(ctx context.Context, handle models.JobHandle) (models.JobStatus, error) {
	const op = "GoogleSpeech.Status"

	if handle == "" {
		return models.JobStatus{}, utils.LookupError(op, "operation name is required", nil)
	}

	lro, err := g.c.Poll(ctx, string(handle))
	if err != nil {
		if status.Code(err) == codes.NotFound || status.Code(err) == codes.InvalidArgument {
			return models.JobStatus{}, utils.LookupError(op, "operation not found", err)
		}
		return models.JobStatus{}, utils.K(utils.KindLookup, utils.CodeUnavailable, op, "status lookup failed", err)
	}
	desc := describeOperation(handle, lro.Metadata, lro.Done)

	if !lro.Done {
		return models.Pending(desc), nil
	}
	if lro.Err != nil {
		desc.TranscriptionJobStatus = string(models.JobFailed)
		desc.FailureReason = lro.Err.Error()
		return models.Failed(lro.Err.Error(), desc), nil
	}

	resp := lro.Response
	if oe := resp.GetOutputError(); oe != nil {
		desc.TranscriptionJobStatus = string(models.JobFailed)
		desc.FailureReason = oe.GetMessage()
		return models.Failed(oe.GetMessage(), desc), nil
	}
	uri := resp.GetOutputConfig().GetGcsUri()
	if uri == "" {
		desc.TranscriptionJobStatus = string(models.JobFailed)
		desc.FailureReason = "completed without a transcript output location"
		return models.Failed(desc.FailureReason, desc), nil
	}
	desc.Transcript = &models.JobTranscript{TranscriptFileUri: uri}
	return models.Completed(models.Locator(uri), desc), nil
}

func describeOperation(handle models.JobHandle, meta *speechpb.LongRunningRecognizeMetadata, done bool) *models.JobDescriptor {
	d := &models.JobDescriptor{
		TranscriptionJobName:   string(handle),
		TranscriptionJobStatus: "IN_PROGRESS",
	}
	if done {
		d.TranscriptionJobStatus = string(models.JobCompleted)
	}
	if meta == nil {
		return d
	}
	progress := meta.GetProgressPercent()
	d.ProgressPercent = &progress
	if meta.GetUri() != "" {
		d.Media = &models.JobMedia{MediaFileUri: meta.GetUri()}
	}
	if ts := meta.GetStartTime(); ts != nil {
		t := ts.AsTime()
		d.StartTime = &t
	}
	if ts := meta.GetLastUpdateTime(); ts != nil && done {
		t := ts.AsTime()
		d.CompletionTime = &t
	}
	return d
}

// googleModel picks the medical model when a specialty is requested.
func googleModel(opts models.JobOptions) string {
	if opts.DomainSpecialty == "" {
		return ""
	}
	if opts.ConversationType == "DICTATION" {
		return "medical_dictation"
	}
	return "medical_conversation"
}

var _ JobClient = (*GoogleSpeech)(nil)
