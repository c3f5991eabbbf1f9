package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that an engine could not locate the requested
// template. Wrapper errors returned by engines unwrap to it so callers can
// branch with errors.Is.
var ErrNotFound = errors.New("engine: template not found")

// ErrFilterExists reports a RegisterFilter call for a name the engine
// already knows. Callers that want idempotent registration skip it with
// errors.Is.
var ErrFilterExists = errors.New("engine: filter already registered")

// NotFoundError carries the template name that failed to resolve.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("engine: template %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RenderError wraps a failure that happened while executing a template that
// did resolve, keeping the template name attached for logs and messages.
type RenderError struct {
	Name string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("engine: render template %q: %v", e.Name, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
