package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidURL          Kind = "invalid_url"
	KindRead                Kind = "read_error"
	KindExtraction          Kind = "extraction_error"
	KindOCR                 Kind = "ocr_error"
	KindNetwork             Kind = "network_error"
	KindTimeout             Kind = "timeout"
	KindHTTPStatus          Kind = "http_status"
	KindEmptyContent        Kind = "empty_content"
	KindAllTransportsFailed Kind = "all_transports_failed"
	KindInternal            Kind = "internal"
)

// Error is the typed failure surfaced at component boundaries. Status is only
// meaningful for KindHTTPStatus and carries the upstream response code.
type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Status(op string, code int) *Error {
	return &Error{Kind: KindHTTPStatus, Op: op, Msg: fmt.Sprintf("HTTP %d", code), Status: code}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the first upstream HTTP status found in err's chain.
func StatusOf(err error) int {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return 0
		}
		if e.Status != 0 {
			return e.Status
		}
		err = e.Err
	}
	return 0
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify maps a raw transport error onto Timeout or Network.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, op, "request timed out", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Wrap(KindTimeout, op, "request timed out", err)
	}
	return Wrap(KindNetwork, op, "network request failed", err)
}

// HTTPStatus picks the response code the server uses for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindInvalidURL:
		return http.StatusBadRequest
	case KindRead, KindExtraction, KindEmptyContent:
		return http.StatusUnprocessableEntity
	case KindOCR:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork, KindHTTPStatus, KindAllTransportsFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CauseKind returns the kind of the innermost typed error in err's chain,
// which for composite failures is the last underlying transport error.
func CauseKind(err error) Kind {
	kind := KindOf(err)
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		kind = e.Kind
		err = e.Err
	}
	return kind
}
