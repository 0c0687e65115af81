package motivation

import "fmt"

// ValidationError reports a context or seed field holding a value outside
// its enum. The profile is never modified when it is returned.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// PipelineError wraps an unexpected failure in one of the stages after Sense.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
