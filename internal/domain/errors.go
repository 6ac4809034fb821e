package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors used across layers.
var (
	ErrNotFound         = errors.New("not found")
	ErrSampleOutOfOrder = errors.New("sample out of order")
	ErrSampleMalformed  = errors.New("sample malformed")
	ErrInsufficientData = errors.New("insufficient data")
	ErrSynthesisFailed  = errors.New("synthesis failed")
	ErrSpeechCancelled  = errors.New("speech cancelled")
	ErrConfigInvalid    = errors.New("config invalid")
	ErrSourceConsumed   = errors.New("sample source already consumed")
	ErrSessionEnded     = errors.New("session ended")
)

// SampleRejectedError reports a sample the estimator refused. The loop
// logs it and keeps the prior pacing state.
type SampleRejectedError struct {
	At     time.Time
	Reason error // ErrSampleOutOfOrder or ErrSampleMalformed
	Detail string
}

func (e *SampleRejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("sample at %s rejected: %v (%s)", e.At.Format(time.TimeOnly), e.Reason, e.Detail)
	}
	return fmt.Sprintf("sample at %s rejected: %v", e.At.Format(time.TimeOnly), e.Reason)
}

// Unwrap exposes the rejection reason to errors.Is.
func (e *SampleRejectedError) Unwrap() error { return e.Reason }

// SynthesisError wraps a speech backend failure with the provider name.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error { return e.Err }

// Is makes every SynthesisError match ErrSynthesisFailed.
func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesisFailed }
