package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("no matching characters found")
	ErrGeneration = errors.New("generation failed")

	ErrNoResponse = fmt.Errorf("%w: no response generated", ErrGeneration)
	ErrNoInsights = fmt.Errorf("%w: no insights generated", ErrGeneration)
)

// UpstreamError is a failure talking to the query engine.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
