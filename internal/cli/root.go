package cli

import (
	"fmt"

	"github.com/matzehuels/aurgrab/pkg/engine"
)

// ExitError carries a process exit status. Err may be nil when the
// failures behind the status were already reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// partial is the status of a run where some targets failed or came back
// empty.
var partial = &ExitError{Code: 1}

// status returns partial if any target of res failed or produced nothing.
func status(res *engine.Result) error {
	if len(res.Failed) > 0 || len(res.Empty) > 0 {
		return partial
	}
	return nil
}
