package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotSynced    = errors.New("strategy not synced")
	ErrWSDisconnect = errors.New("websocket disconnected")
)

// SyncFailure is returned when a strategy exhausts its retry budget during
// history replay. The engine excludes the strategy from live dispatch;
// running on an unsynced snapshot is never acceptable.
type SyncFailure struct {
	Strategy string
	Err      error
}

func (f *SyncFailure) Error() string {
	return fmt.Sprintf("sync failed for strategy %s: %v", f.Strategy, f.Err)
}

func (f *SyncFailure) Unwrap() error { return f.Err }

// ExecutionFailure is an expected business failure reported by an executor
// (underpriced transaction, expired deadline, known revert). It is logged
// by the engine and never halts dispatch. Retryable hints whether
// resubmitting the same action could succeed.
type ExecutionFailure struct {
	ActionID  string
	Reason    string
	Retryable bool
	Err       error
}

func (f *ExecutionFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("execution failed (%s): %s: %v", f.ActionID, f.Reason, f.Err)
	}
	return fmt.Sprintf("execution failed (%s): %s", f.ActionID, f.Reason)
}

func (f *ExecutionFailure) Unwrap() error { return f.Err }
