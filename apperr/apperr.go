package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the error category a caller reacts to.
type Kind string

const (
	// KindRejection is a policy rejection (score below threshold, insufficient sources).
	KindRejection Kind = "rejection"
	// KindTransient is an external provider failure that may succeed on retry.
	KindTransient Kind = "transient_provider"
	// KindValidation is a draft that failed a hard self-audit constraint.
	KindValidation Kind = "validation"
	// KindConflict is an illegal or stale state transition.
	KindConflict Kind = "concurrency_conflict"
	KindNotFound Kind = "not_found"
	KindInvalid  Kind = "invalid_request"
)

// Stable error codes.
const (
	CodeScoreBelowThreshold     = "SCORE_BELOW_THRESHOLD"
	CodeInsufficientSources     = "INSUFFICIENT_SOURCES"
	CodeTopicRejected           = "TOPIC_REJECTED"
	CodeProviderUnavailable     = "PROVIDER_UNAVAILABLE"
	CodeSelfAuditFailed         = "SELF_AUDIT_FAILED"
	CodeReadingLevelOutOfBand   = "READING_LEVEL_OUT_OF_BAND"
	CodeMissingAttribution      = "MISSING_ATTRIBUTION"
	CodeArticleAlreadyPublished = "ARTICLE_ALREADY_PUBLISHED"
	CodeArticleNotApproved      = "ARTICLE_NOT_APPROVED"
	CodeEmptyArticle            = "EMPTY_ARTICLE"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeStaleVersion            = "STALE_ARTICLE_VERSION"
	CodeNoOutstandingReply      = "NO_OUTSTANDING_REPLY"
	CodeStageBusy               = "STAGE_BUSY"
	CodeNotFound                = "NOT_FOUND"
	CodeInvalidRequest          = "INVALID_REQUEST"
)

// Error is the typed error used across the pipeline.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf(format, args...)}
}

func Rejection(code, format string, args ...any) *Error {
	return newf(KindRejection, code, format, args...)
}

func Transient(code, format string, args ...any) *Error {
	return newf(KindTransient, code, format, args...)
}

func Validation(code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newf(KindConflict, code, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, CodeNotFound, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return newf(KindInvalid, CodeInvalidRequest, format, args...)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or "" when err is untyped.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// CodeOf reports the code of err, or "" when err is untyped.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

func IsTransient(err error) bool { return KindOf(err) == KindTransient }
func IsConflict(err error) bool  { return KindOf(err) == KindConflict }
func IsNotFound(err error) bool  { return KindOf(err) == KindNotFound }

// HTTPStatus maps err to the status the review API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindRejection, KindValidation:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
