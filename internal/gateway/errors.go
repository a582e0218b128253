package gateway

import (
	"errors"
	"fmt"
)

// Phase names the step of a submission that produced an event or failed.
type Phase string

const (
	PhasePersist    Phase = "persist"
	PhaseIssueToken Phase = "issue_token"
	PhaseStoreToken Phase = "store_token"
)

// Sentinels matched with errors.Is against a *SubmissionError.
var (
	ErrPersistence   = errors.New("contest could not be saved")
	ErrTokenIssuance = errors.New("contest token could not be issued")
	ErrTokenStorage  = errors.New("contest token could not be stored")
)

// ErrKeyNotFound is returned by KeyValueStore.Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// SubmissionError reports which phase of a submission failed. ContestID is
// set once an identifier was generated, so a failure after persistence
// names the contest left behind on the backend.
type SubmissionError struct {
	Phase     Phase
	ContestID string
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.ContestID == "" {
		return fmt.Sprintf("%v: %v", e.sentinel(), e.Err)
	}
	return fmt.Sprintf("%v (contest %s): %v", e.sentinel(), e.ContestID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failed phase.
func (e *SubmissionError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *SubmissionError) sentinel() error {
	switch e.Phase {
	case PhasePersist:
		return ErrPersistence
	case PhaseIssueToken:
		return ErrTokenIssuance
	case PhaseStoreToken:
		return ErrTokenStorage
	default:
		return errors.New("submission failed")
	}
}

// Orphaned reports whether the contest was persisted but left without a
// usable token.
func (e *SubmissionError) Orphaned() bool {
	return e.ContestID != "" && (e.Phase == PhaseIssueToken || e.Phase == PhaseStoreToken)
}
