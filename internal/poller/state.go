package poller

import (
	"errors"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/practicum"
)

// ErrorKind classifies a reported cycle error.
type ErrorKind string

const (
	KindFetch           ErrorKind = "fetch"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindMissingField    ErrorKind = "missing_field"
	KindUnknownStatus   ErrorKind = "unknown_status"
	KindInternal        ErrorKind = "internal"
)

// ErrorMemo is the last reported error. The zero value means "none".
// Two memos are the same error when they compare equal.
type ErrorMemo struct {
	Kind ErrorKind
	Text string
}

func (m ErrorMemo) IsZero() bool { return m == ErrorMemo{} }

func memoOf(err error) ErrorMemo {
	var (
		fe  *practicum.FetchError
		ire *homework.InvalidResponseError
		mfe *homework.MissingFieldError
		use *homework.UnknownStatusError
	)
	kind := KindInternal
	switch {
	case errors.As(err, &fe):
		kind = KindFetch
	case errors.As(err, &mfe):
		kind = KindMissingField
	case errors.As(err, &use):
		kind = KindUnknownStatus
	case errors.As(err, &ire):
		kind = KindInvalidResponse
	}
	return ErrorMemo{Kind: kind, Text: err.Error()}
}

// State is the loop memory carried from one cycle to the next.
// It is owned by a single goroutine and never shared.
type State struct {
	LastStatus homework.Status
	HaveStatus bool
	LastError  ErrorMemo
	// Since is the from_date sent with the next request (unix seconds).
	Since int64
}

// NewState starts polling lookback before now.
func NewState(now time.Time, lookback time.Duration) *State {
	return &State{Since: now.Add(-lookback).Unix()}
}
