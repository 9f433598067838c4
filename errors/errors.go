package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/livepeer/transcode-engine/log"
	"github.com/xeipuuv/gojsonschema"
)

type APIError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) APIError {
	w.WriteHeader(status)

	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return APIError{msg, status, err}
}

// HTTP Errors
func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) APIError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, sb.String(), http.StatusBadRequest, nil)
}

// Pipeline error taxonomy. These wrap whatever underlying status the codec
// or reader collaborator returned, using the errors.As-based predicate
// style rather than sentinel equality checks.

type InvalidArgumentError struct{ msg string }

func NewInvalidArgumentError(msg string) error { return InvalidArgumentError{msg} }
func (e InvalidArgumentError) Error() string    { return "InvalidArgument: " + e.msg }
func IsInvalidArgument(err error) bool {
	return errors.As(err, &InvalidArgumentError{})
}

type UnsupportedError struct{ msg string }

func NewUnsupportedError(msg string) error { return UnsupportedError{msg} }
func (e UnsupportedError) Error() string    { return "Unsupported: " + e.msg }
func IsUnsupported(err error) bool {
	return errors.As(err, &UnsupportedError{})
}

// CodecError wraps any status returned by the codec collaborator.
type CodecError struct {
	msg    string
	status error
}

func NewCodecError(msg string, status error) error {
	return CodecError{msg: msg, status: status}
}
func (e CodecError) Error() string {
	if e.status != nil {
		return fmt.Sprintf("CodecError: %s: %s", e.msg, e.status)
	}
	return "CodecError: " + e.msg
}
func (e CodecError) Unwrap() error { return e.status }
func IsCodecError(err error) bool {
	return errors.As(err, &CodecError{})
}

// ReaderError wraps a failure returned by the SampleReader collaborator.
type ReaderError struct{ cause error }

func NewReaderError(cause error) error { return ReaderError{cause} }
func (e ReaderError) Error() string     { return "ReaderError: " + e.cause.Error() }
func (e ReaderError) Unwrap() error     { return e.cause }
func IsReaderError(err error) bool {
	return errors.As(err, &ReaderError{})
}

// EndOfStream is not an error condition; it's the normal reader exhaustion
// signal from GetSampleInfoForTrack.
var EndOfStream = errors.New("EndOfStream")

// Cancelled is returned by the pipeline run loop when it was stopped before
// the encoder reached end-of-stream and no other error was latched, to
// disambiguate an aborted run from a clean completion.
var Cancelled = errors.New("Cancelled")
