package zonaltools

import (
	"errors"
	"fmt"
)

// ErrNoQualifyingAcquisitions is returned by a Retriever when no acquisition in
// the requested time range meets the quality threshold.
var ErrNoQualifyingAcquisitions = errors.New("no qualifying acquisitions")

// AlignmentError reports a cube and mask that do not share a grid.
type AlignmentError struct {
	Field string
	Got   string
	Want  string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("grid mismatch on %s: got %s, want %s", e.Field, e.Got, e.Want)
}

// RetrievalError wraps a failure of the imagery collaborator for one site.
type RetrievalError struct {
	Site string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving imagery for site %q: %v", e.Site, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// ConfigError aborts a run before any feature is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// SkipReason classifies why a feature contributed no rows.
type SkipReason string

const (
	SkipAlignment      SkipReason = "alignment"
	SkipNoAcquisitions SkipReason = "no-acquisitions"
	SkipRetrieval      SkipReason = "retrieval"
	SkipAggregation    SkipReason = "aggregation"
)

func classifySkip(err error) SkipReason {
	var alignErr *AlignmentError
	switch {
	case errors.Is(err, ErrNoQualifyingAcquisitions):
		return SkipNoAcquisitions
	case errors.As(err, &alignErr):
		return SkipAlignment
	default:
		var retrErr *RetrievalError
		if errors.As(err, &retrErr) {
			return SkipRetrieval
		}
		return SkipAggregation
	}
}
