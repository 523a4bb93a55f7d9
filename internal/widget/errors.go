package widget

import "fmt"

// InitializationError reports a widget library load or instantiation
// failure. The session terminates in its error state; initialization is
// never retried automatically.
type InitializationError struct {
	Stage string // "load" or "create"
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("widget: initialization failed during %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}
