package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/state"
)

func TestStore_Acquire(t *testing.T) {
	t.Parallel()

	s := newStore(0)
	guard, err := s.Acquire(state.TaskScrapeLogs)
	require.NoError(t, err)

	_, err = s.Acquire(state.TaskScrapeLogs)
	require.ErrorIs(t, err, state.ErrAlreadyActive)

	other, err := s.Acquire(state.TaskProcessLogs)
	require.NoError(t, err)
	require.ElementsMatch(t, []state.Task{state.TaskScrapeLogs, state.TaskProcessLogs}, s.ActiveTasks())

	guard.Release()
	guard.Release()
	other.Release()
	require.Empty(t, s.ActiveTasks())

	guard, err = s.Acquire(state.TaskScrapeLogs)
	require.NoError(t, err)
	guard.Release()
}

func TestStore_Acquire_ReleasedOnPanic(t *testing.T) {
	t.Parallel()

	s := newStore(0)
	func() {
		defer func() {
			require.NotNil(t, recover())
		}()
		guard, err := s.Acquire(state.TaskExecuteJobs)
		require.NoError(t, err)
		defer guard.Release()
		panic("holder failed")
	}()

	guard, err := s.Acquire(state.TaskExecuteJobs)
	require.NoError(t, err)
	guard.Release()
}
