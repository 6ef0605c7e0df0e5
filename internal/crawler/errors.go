package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying pipeline failures. Implementations wrap them
// with %w so callers can branch on errors.Is.
var (
	// ErrNetwork means a static fetch failed: non-2xx, timeout, or connection error.
	ErrNetwork = errors.New("network error")
	// ErrRender means the headless renderer could not load a page.
	ErrRender = errors.New("render error")
	// ErrParse means markup or a table grid could not be parsed.
	ErrParse = errors.New("parse error")
	// ErrReferenceLookup means enrichment data for a seed was unavailable.
	ErrReferenceLookup = errors.New("reference lookup error")
	// ErrConfigMissing means a persisted state file does not exist yet.
	ErrConfigMissing = errors.New("config missing")
	// ErrQueueClosed is returned by Dequeue once the queue is closed and drained.
	ErrQueueClosed = errors.New("queue closed")
)

// Stage is a step of the per-seed state machine.
type Stage string

// Per-seed stages, in traversal order. StageFailed is terminal and reachable
// from every other stage; StagePersisting runs after StageDone.
const (
	StagePending                Stage = "PENDING"
	StageFetchingRoot           Stage = "FETCHING_ROOT"
	StageDiscoveringSites       Stage = "DISCOVERING_SITES"
	StageDiscoveringDirectories Stage = "DISCOVERING_DIRECTORIES"
	StageExtracting             Stage = "EXTRACTING"
	StageNormalizing            Stage = "NORMALIZING"
	StageEnriching              Stage = "ENRICHING"
	StageDone                   Stage = "DONE"
	StagePersisting             Stage = "PERSISTING"
	StageFailed                 Stage = "FAILED"
)

// StageError records the stage at which a seed failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", strings.ToLower(string(e.Stage)), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the failing stage from err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
