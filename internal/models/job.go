package models

import "time"

// JobHandle identifies a submitted transcription job at the provider.
type JobHandle string

func (h JobHandle) String() string { return string(h) }

// JobOptions selects the recognition model the provider uses.
type JobOptions struct {
	LanguageCode     string `json:"languageCode,omitempty"`
	DomainSpecialty  string `json:"domainSpecialty,omitempty"`  // PRIMARYCARE
	ConversationType string `json:"conversationType,omitempty"` // CONVERSATION|DICTATION
	OutputLocation   string `json:"outputLocation,omitempty"`   // bucket name
}

// WithDefaults fills zero fields from def.
func (o JobOptions) WithDefaults(def JobOptions) JobOptions {
	if o.LanguageCode == "" {
		o.LanguageCode = def.LanguageCode
	}
	if o.DomainSpecialty == "" {
		o.DomainSpecialty = def.DomainSpecialty
	}
	if o.ConversationType == "" {
		o.ConversationType = def.ConversationType
	}
	if o.OutputLocation == "" {
		o.OutputLocation = def.OutputLocation
	}
	return o
}

type JobState string

const (
	JobPending   JobState = "PENDING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
)

// JobStatus is the result of one status query. ResultLocator is set only
// when Completed, Reason only when Failed.
type JobStatus struct {
	State         JobState
	ResultLocator Locator
	Reason        string
	Job           *JobDescriptor
}

func Pending(job *JobDescriptor) JobStatus {
	return JobStatus{State: JobPending, Job: job}
}

func Completed(result Locator, job *JobDescriptor) JobStatus {
	return JobStatus{State: JobCompleted, ResultLocator: result, Job: job}
}

func Failed(reason string, job *JobDescriptor) JobStatus {
	return JobStatus{State: JobFailed, Reason: reason, Job: job}
}

func (s JobStatus) Terminal() bool {
	return s.State == JobCompleted || s.State == JobFailed
}

// JobDescriptor mirrors the provider's job description. Field names follow
// the Transcribe Medical API so browser clients written against it keep working.
type JobDescriptor struct {
	TranscriptionJobName   string         `json:"TranscriptionJobName"`
	TranscriptionJobStatus string         `json:"TranscriptionJobStatus"`
	LanguageCode           string         `json:"LanguageCode,omitempty"`
	MediaFormat            string         `json:"MediaFormat,omitempty"`
	Media                  *JobMedia      `json:"Media,omitempty"`
	Transcript             *JobTranscript `json:"Transcript,omitempty"`
	Specialty              string         `json:"Specialty,omitempty"`
	Type                   string         `json:"Type,omitempty"`
	FailureReason          string         `json:"FailureReason,omitempty"`
	ProgressPercent        *int32         `json:"ProgressPercent,omitempty"`
	CreationTime           *time.Time     `json:"CreationTime,omitempty"`
	StartTime              *time.Time     `json:"StartTime,omitempty"`
	CompletionTime         *time.Time     `json:"CompletionTime,omitempty"`
}

type JobMedia struct {
	MediaFileUri string `json:"MediaFileUri"`
}

type JobTranscript struct {
	TranscriptFileUri string `json:"TranscriptFileUri"`
}
