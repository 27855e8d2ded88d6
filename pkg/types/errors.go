package types

import "fmt"

// Error taxonomy. Every component wraps lower-layer failures in the typed
// error for its stage so callers can branch on the stage that failed while
// errors.Unwrap still reaches the root cause.

// RecordingError reports a capture-time failure, e.g. starting a
// recording while one is already active.
type RecordingError struct {
	Op  string
	Err error
}

func (e *RecordingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recording: %s", e.Op)
	}
	return fmt.Sprintf("recording: %s: %v", e.Op, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }

// PayloadGenerationError reports a mutation-time failure, e.g. the
// referenced baseline request is missing.
type PayloadGenerationError struct {
	Op  string
	Err error
}

func (e *PayloadGenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payload generation: %s", e.Op)
	}
	return fmt.Sprintf("payload generation: %s: %v", e.Op, e.Err)
}

func (e *PayloadGenerationError) Unwrap() error { return e.Err }

// ReplayError reports a replay-time failure: transport errors, timeouts,
// or a missing original request.
type ReplayError struct {
	Op         string
	TestCaseID int64
	Err        error
}

func (e *ReplayError) Error() string {
	msg := fmt.Sprintf("replay: %s", e.Op)
	if e.TestCaseID != 0 {
		msg = fmt.Sprintf("replay: %s (test case %d)", e.Op, e.TestCaseID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReplayError) Unwrap() error { return e.Err }

// AnalysisError reports a classification-time failure, e.g. the
// referenced request or test case is missing.
type AnalysisError struct {
	Op         string
	TestCaseID int64
	Err        error
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("analysis: %s", e.Op)
	if e.TestCaseID != 0 {
		msg = fmt.Sprintf("analysis: %s (test case %d)", e.Op, e.TestCaseID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ConfigurationError reports a configuration load, save or validation failure.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration: key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DatabaseError reports a store-layer failure. Components above the store
// wrap it again in their own stage error with operation context.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// BatchOutcome is the result of a batch operation over many items. A
// per-item failure never aborts the batch; callers decide how to treat
// partial results.
type BatchOutcome struct {
	Succeeded []int64     `json:"succeeded"`
	Failed    []BatchItem `json:"failed,omitempty"`
}

// BatchItem records one failed item of a batch.
type BatchItem struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// Ok reports whether every item in the batch succeeded.
func (b *BatchOutcome) Ok() bool { return len(b.Failed) == 0 }

// Attempted returns the number of items actually attempted, successful
// or not. Items never dispatched (e.g. after cancellation) are not counted.
func (b *BatchOutcome) Attempted() int { return len(b.Succeeded) + len(b.Failed) }
