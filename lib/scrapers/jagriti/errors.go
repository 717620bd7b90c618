package jagriti

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"jagriti-backend/lib/textutil"
)

// Code classifies every failure the package returns.
type Code string

const (
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	CodeCaptcha    Code = "captcha_detected"
	CodeTimeout    Code = "timeout"
	CodeNetwork    Code = "network_error"
	CodeParse      Code = "parse_error"
	CodeUpstream   Code = "upstream_error"
)

// Stage is the step of a search that failed.
type Stage string

const (
	StageResolve   Stage = "resolve_identifiers"
	StageBuild     Stage = "build_request"
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
)

// Sentinels for errors.Is, every *Error matches the sentinel of its Code.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrCaptcha    = errors.New("captcha detected")
	ErrTimeout    = errors.New("timeout")
	ErrNetwork    = errors.New("network error")
	ErrParse      = errors.New("parse error")
	ErrUpstream   = errors.New("upstream error")
)

var sentinels = map[Code]error{
	CodeValidation: ErrValidation,
	CodeNotFound:   ErrNotFound,
	CodeCaptcha:    ErrCaptcha,
	CodeTimeout:    ErrTimeout,
	CodeNetwork:    ErrNetwork,
	CodeParse:      ErrParse,
	CodeUpstream:   ErrUpstream,
}

type Error struct {
	Code    Code
	Stage   Stage
	Message string

	// Name and Suggestions are set on not_found errors.
	Name        string
	Suggestions []string

	// Status is the upstream HTTP status, when there was one.
	Status int
	// Snippet is the start of the offending body, set on parse and captcha
	// errors.
	Snippet string
	// IncidentID identifies a captcha occurrence in logs and alerts.
	IncidentID string

	Err error

	retryAfter time.Duration
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(string(e.Stage))
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && sentinel == target
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// CodeOf returns the code of the outermost *Error in err's chain or "".
func CodeOf(err error) Code {
	e, ok := AsError(err)
	if !ok {
		return ""
	}
	return e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

func parseError(body []byte, format string, args ...any) *Error {
	e := newError(CodeParse, format, args...)
	e.Snippet = snippet(body)
	return e
}

// withStage tags err with the stage it surfaced in, errors that already
// carry a stage keep it. the error is copied since errors from the
// identifier cache are shared between concurrent callers.
func withStage(stage Stage, err error) error {
	e, ok := err.(*Error)
	if !ok {
		return fmt.Errorf("%s: %w", stage, err)
	}
	if e.Stage != "" {
		return e
	}
	staged := *e
	staged.Stage = stage
	return &staged
}

const maxSnippetBytes = 256

// snippet returns at most maxSnippetBytes of body, whitespace collapsed and
// cut on a rune boundary.
func snippet(body []byte) string {
	limit := len(body)
	if limit > maxSnippetBytes*4 {
		limit = maxSnippetBytes * 4
	}
	s := textutil.NormalizeSpace(strings.ToValidUTF8(string(body[:limit]), ""))
	if len(s) <= maxSnippetBytes {
		return s
	}
	cut := maxSnippetBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
