package models

import "time"

type WorkflowState string

const (
	StateIdle       WorkflowState = "idle"
	StateUploading  WorkflowState = "uploading"
	StateSubmitting WorkflowState = "submitting"
	StatePolling    WorkflowState = "polling"
	StateFetching   WorkflowState = "fetching"
	StateDone       WorkflowState = "done"
	StateErrored    WorkflowState = "errored"
	StateCancelled  WorkflowState = "cancelled"
)

// Terminal reports whether no transition can leave s.
func (s WorkflowState) Terminal() bool {
	return s == StateDone || s == StateErrored || s == StateCancelled
}

// Stage names the step an Errored workflow failed in.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageSubmit     Stage = "submit"
	StageTranscribe Stage = "transcribe"
	StageFetch      Stage = "fetch"
)

// Snapshot is the externally visible state of one workflow instance.
type Snapshot struct {
	ID            string        `json:"id"`
	State         WorkflowState `json:"state"`
	Stage         Stage         `json:"stage,omitempty"`
	MediaType     string        `json:"media_type,omitempty"`
	Size          int           `json:"size,omitempty"`
	Locator       Locator       `json:"locator,omitempty"`
	Handle        JobHandle     `json:"job,omitempty"`
	ResultLocator Locator       `json:"result_locator,omitempty"`
	Transcript    string        `json:"transcript,omitempty"`
	ErrorCode     string        `json:"error_code,omitempty"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	PollAttempts  int           `json:"poll_attempts"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (s Snapshot) Terminal() bool { return s.State.Terminal() }

func (s WorkflowState) rank() int {
	switch s {
	case StateIdle:
		return 0
	case StateUploading:
		return 1
	case StateSubmitting:
		return 2
	case StatePolling:
		return 3
	case StateFetching:
		return 4
	default:
		return 5
	}
}

// Newer reports whether s is a later point of the same run than o. Each
// observed snapshot of a run is Newer than the one before it.
func (s Snapshot) Newer(o Snapshot) bool {
	if s.State.rank() != o.State.rank() {
		return s.State.rank() > o.State.rank()
	}
	return s.PollAttempts > o.PollAttempts
}
