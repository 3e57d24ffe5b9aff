package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeTooLarge        Code = "PAYLOAD_TOO_LARGE"
	CodeBadGateway      Code = "BAD_GATEWAY"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodeCancelled       Code = "CANCELLED"
	CodeInternal        Code = "INTERNAL"
)

// Kind classifies which collaborator produced an error.
type Kind string

const (
	KindStorage    Kind = "STORAGE"
	KindValidation Kind = "VALIDATION"
	KindSubmission Kind = "SUBMISSION"
	KindLookup     Kind = "LOOKUP"
	KindFetch      Kind = "FETCH"
	KindFormat     Kind = "FORMAT"
)

// AppError is the unified error contract across layers.
type AppError struct {
	Code    Code
	Kind    Kind   // empty for errors raised outside the cloud adapters
	Op      string // operation name, ex: "S3Store.Upload"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "error"
	}
}

func (e *AppError) Unwrap() error { return e.Err }

func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// K builds a kinded error with an explicit code.
func K(kind Kind, code Code, op, msg string, err error) error {
	return &AppError{Code: code, Kind: kind, Op: op, Message: msg, Err: err}
}

func StorageError(op, msg string, err error) error {
	return K(KindStorage, CodeUnavailable, op, msg, err)
}

func ValidationError(op, msg string, err error) error {
	return K(KindValidation, CodeInvalidArgument, op, msg, err)
}

func SubmissionError(op, msg string, err error) error {
	return K(KindSubmission, CodeBadGateway, op, msg, err)
}

func LookupError(op, msg string, err error) error {
	return K(KindLookup, CodeNotFound, op, msg, err)
}

func FetchError(op, msg string, err error) error {
	return K(KindFetch, CodeBadGateway, op, msg, err)
}

func FormatError(op, msg string, err error) error {
	return K(KindFormat, CodeBadGateway, op, msg, err)
}

func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsKind reports whether any AppError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Kind == kind {
			return true
		}
		err = ae.Err
	}
	return false
}

// KindOf returns the outermost kind in err's chain, or "".
func KindOf(err error) Kind {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			return ""
		}
		if ae.Kind != "" {
			return ae.Kind
		}
		err = ae.Err
	}
	return ""
}

// CodeOf returns the outermost AppError code, or CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		case CodeTooLarge:
			return http.StatusRequestEntityTooLarge
		case CodeBadGateway:
			return http.StatusBadGateway
		case CodeUnavailable:
			return http.StatusServiceUnavailable
		case CodeTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusInternalServerError
		}
	}
	// fallback
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Backward-compatible sentinel errors
var (
	ErrNotFound = errors.New("not found")
)
