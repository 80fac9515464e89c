package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a malformed registry, manifest or request. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrCacheCorruption marks an unexpected entry found in a cache scope.
	ErrCacheCorruption = errors.New("cache corruption")
	// ErrMissingSource marks an absent raw source file for a requested view.
	ErrMissingSource = errors.New("missing source")
)

type Stage string

const (
	StageSource    Stage = "source"
	StageResolve   Stage = "resolve"
	StageFilter    Stage = "filter"
	StageAggregate Stage = "aggregate"
	StageJoin      Stage = "join"
	StageCache     Stage = "cache"
)

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage Stage
	View  View
	Err   error
}

func (e *StageError) Error() string {
	if e.View != "" {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.View, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage returns nil for a nil err, and never wraps an error twice.
func WrapStage(stage Stage, view View, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, View: view, Err: err}
}

func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
