// Package resilience defines the pipeline's error taxonomy, batch failure
// isolation helpers and retry for the storage adapters.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// AssessmentError wraps an unexpected failure while assessing one page.
type AssessmentError struct {
	URL string
	Err error
}

func (e *AssessmentError) Error() string {
	return fmt.Sprintf("assess %s: %v", e.URL, e.Err)
}

func (e *AssessmentError) Unwrap() error {
	return e.Err
}

// NewAssessmentError wraps err with the URL of the page being assessed.
func NewAssessmentError(url string, err error) *AssessmentError {
	return &AssessmentError{URL: url, Err: err}
}

// ScoringError wraps an unexpected failure while scoring one contact.
type ScoringError struct {
	ContactID string
	Err       error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score contact %s: %v", e.ContactID, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// NewScoringError wraps err with the ID of the contact being scored.
func NewScoringError(contactID string, err error) *ScoringError {
	return &ScoringError{ContactID: contactID, Err: err}
}

// BatchItemError records one item excluded from a batch result.
type BatchItemError struct {
	Stage string
	Index int
	Key   string
	Err   error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("%s item %d (%s): %v", e.Stage, e.Index, e.Key, e.Err)
}

func (e *BatchItemError) Unwrap() error {
	return e.Err
}

// Guard runs fn and converts a panic into an error so that one malformed
// item cannot abort a batch.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// SuccessRate returns the fraction of items that completed.
func SuccessRate(total int, failures []*BatchItemError) float64 {
	if total == 0 {
		return 1
	}
	return float64(total-len(failures)) / float64(total)
}

// TransientError wraps an error that is safe to retry (e.g. a dropped
// database connection).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, busy databases).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"database is locked",
		"sqlite_busy",
		"too many connections",
		"conn closed",
		"server closed the connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
