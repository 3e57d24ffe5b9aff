package stt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/aws/smithy-go"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

const AWSMedicalName = "aws-transcribe-medical"

// TranscribeAPI is the subset of *transcribe.Client used here.
type TranscribeAPI interface {
	StartMedicalTranscriptionJob(ctx context.Context, in *transcribe.StartMedicalTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartMedicalTranscriptionJobOutput, error)
	GetMedicalTranscriptionJob(ctx context.Context, in *transcribe.GetMedicalTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetMedicalTranscriptionJobOutput, error)
}

type AWSMedical struct {
	c   TranscribeAPI
	now func() time.Time
}

func NewAWSMedical(c TranscribeAPI) *AWSMedical {
	return &AWSMedical{c: c, now: time.Now}
}

func (a *AWSMedical) Name() string { return AWSMedicalName }
func (a *AWSMedical) Close() error { return nil }

func (a *AWSMedical) Submit(ctx context.Context, locator models.Locator, opts models.JobOptions) (models.JobHandle, error) {
	const op = "AWSMedical.Submit"

	if !strings.HasPrefix(string(locator), "s3://") {
		return "", utils.ValidationError(op, "invalid S3 URI", nil)
	}
	if _, err := locator.Parse(); err != nil {
		return "", utils.ValidationError(op, "invalid S3 URI", err)
	}
	if opts.OutputLocation == "" {
		return "", utils.ValidationError(op, "output bucket is required", nil)
	}

	name := jobName("MedicalTranscriptionJob", a.now())
	_, err := a.c.StartMedicalTranscriptionJob(ctx, &transcribe.StartMedicalTranscriptionJobInput{
		MedicalTranscriptionJobName: aws.String(name),
		LanguageCode:                types.LanguageCode(opts.LanguageCode),
		Media:                       &types.Media{MediaFileUri: aws.String(string(locator))},
		Specialty:                   types.Specialty(opts.DomainSpecialty),
		Type:                        types.Type(opts.ConversationType),
		OutputBucketName:            aws.String(opts.OutputLocation),
	})
	if err != nil {
		return "", utils.SubmissionError(op, "provider rejected job: "+apiErrorCode(err), err)
	}
	return models.JobHandle(name), nil
}

func (a *AWSMedical) Status(ctx context.Context, handle models.JobHandle) (models.JobStatus, error) {
	const op = "AWSMedical.Status"

	if handle == "" {
		return models.JobStatus{}, utils.LookupError(op, "job name is required", nil)
	}

	out, err := a.c.GetMedicalTranscriptionJob(ctx, &transcribe.GetMedicalTranscriptionJobInput{
		MedicalTranscriptionJobName: aws.String(string(handle)),
	})
	if err != nil {
		var nf *types.NotFoundException
		var br *types.BadRequestException
		if errors.As(err, &nf) || errors.As(err, &br) {
			return models.JobStatus{}, utils.LookupError(op, "job not found", err)
		}
		return models.JobStatus{}, utils.K(utils.KindLookup, utils.CodeUnavailable, op, "status lookup failed: "+apiErrorCode(err), err)
	}
	if out.MedicalTranscriptionJob == nil {
		return models.JobStatus{}, utils.LookupError(op, "job not found", nil)
	}

	job := out.MedicalTranscriptionJob
	desc := describeMedicalJob(job)

	switch job.TranscriptionJobStatus {
	case types.TranscriptionJobStatusCompleted:
		if job.Transcript == nil || aws.ToString(job.Transcript.TranscriptFileUri) == "" {
			return models.Failed("completed without a transcript file", desc), nil
		}
		return models.Completed(models.Locator(aws.ToString(job.Transcript.TranscriptFileUri)), desc), nil
	case types.TranscriptionJobStatusFailed:
		return models.Failed(aws.ToString(job.FailureReason), desc), nil
	default:
		return models.Pending(desc), nil
	}
}

func describeMedicalJob(job *types.MedicalTranscriptionJob) *models.JobDescriptor {
	d := &models.JobDescriptor{
		TranscriptionJobName:   aws.ToString(job.MedicalTranscriptionJobName),
		TranscriptionJobStatus: string(job.TranscriptionJobStatus),
		LanguageCode:           string(job.LanguageCode),
		MediaFormat:            string(job.MediaFormat),
		Specialty:              string(job.Specialty),
		Type:                   string(job.Type),
		FailureReason:          aws.ToString(job.FailureReason),
		CreationTime:           job.CreationTime,
		StartTime:              job.StartTime,
		CompletionTime:         job.CompletionTime,
	}
	if job.Media != nil {
		d.Media = &models.JobMedia{MediaFileUri: aws.ToString(job.Media.MediaFileUri)}
	}
	if job.Transcript != nil {
		d.Transcript = &models.JobTranscript{TranscriptFileUri: aws.ToString(job.Transcript.TranscriptFileUri)}
	}
	return d
}

func apiErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return "unknown"
}

var _ JobClient = (*AWSMedical)(nil)
