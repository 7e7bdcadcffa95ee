package stats

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetOrCreateReturnsSameInstance tests per-id identity
func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	tr := NewTracker()
	a := tr.GetOrCreate("cpu")
	b := tr.GetOrCreate("cpu")
	c := tr.GetOrCreate("mem")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, tr.All(), 2)

	tr.Remove("cpu")
	assert.Len(t, tr.All(), 1)
	assert.NotSame(t, a, tr.GetOrCreate("cpu"))
}

// TestCollectorRecordsOutcome tests success and failure records
func TestCollectorRecordsOutcome(t *testing.T) {
	tr := NewTracker()

	c := tr.CreateCollector("cpu")
	cause := errors.New("dial tcp: refused")
	require.True(t, c.Failure("download failed", cause))

	c = tr.CreateCollector("cpu")
	require.True(t, c.Success())

	s := tr.GetOrCreate("cpu")
	history := s.History()
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.Equal(t, "download failed", history[0].Message)
	assert.Equal(t, "dial tcp: refused", history[0].CauseText())
	assert.True(t, history[1].Success)
	assert.Empty(t, history[1].CauseText())

	failed, ok := s.LastFailedRun()
	require.True(t, ok)
	assert.Equal(t, "download failed", failed.Message)

	succeeded, ok := s.LastSuccessfulRun()
	require.True(t, ok)
	assert.True(t, succeeded.Success)

	last, ok := s.LastRun()
	require.True(t, ok)
	assert.True(t, last.Success)
}

// TestCollectorFinalizesOnce tests that a second finalization is ignored
func TestCollectorFinalizesOnce(t *testing.T) {
	tr := NewTracker()
	c := tr.CreateCollector("cpu")

	assert.True(t, c.Success())
	assert.False(t, c.Failure("late", nil))
	assert.False(t, c.Success())
	assert.Len(t, tr.GetOrCreate("cpu").History(), 1)
}

// TestHistoryIsBounded tests eviction of the oldest records
func TestHistoryIsBounded(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < MaxRunHistory+5; i++ {
		c := tr.CreateCollector("cpu")
		c.Failure(fmt.Sprintf("run-%d", i), nil)
	}

	history := tr.GetOrCreate("cpu").History()
	require.Len(t, history, MaxRunHistory)
	assert.Equal(t, "run-5", history[0].Message)
	assert.Equal(t, fmt.Sprintf("run-%d", MaxRunHistory+4), history[MaxRunHistory-1].Message)
}

// TestActionsAreRecorded tests named sub-timings
func TestActionsAreRecorded(t *testing.T) {
	tr := NewTracker()
	c := tr.CreateCollector("jira")

	a := c.StartAction("query", "project = OPS")
	time.Sleep(5 * time.Millisecond)
	a.Done()
	a.Done()
	c.AddAction("render", "", time.Millisecond)
	c.Success()

	last, ok := tr.GetOrCreate("jira").LastRun()
	require.True(t, ok)
	require.Len(t, last.Actions, 2)
	assert.Equal(t, "query", last.Actions[0].Name)
	assert.Equal(t, "project = OPS", last.Actions[0].Detail)
	assert.GreaterOrEqual(t, last.Actions[0].Duration, 5*time.Millisecond)
	assert.Equal(t, "render", last.Actions[1].Name)
}

// TestAutoStartedCopiedIntoRun tests the flag snapshot at collector creation
func TestAutoStartedCopiedIntoRun(t *testing.T) {
	tr := NewTracker()
	tr.GetOrCreate("cpu").SetAutoStarted(true)

	c := tr.CreateCollector("cpu")
	tr.GetOrCreate("cpu").SetAutoStarted(false)
	c.Success()

	last, _ := tr.GetOrCreate("cpu").LastRun()
	assert.True(t, last.AutoStarted)
	assert.False(t, tr.GetOrCreate("cpu").AutoStarted())
}

// TestConcurrentReadsDuringWrites exercises the per-statistics lock
func TestConcurrentReadsDuringWrites(t *testing.T) {
	tr := NewTracker()
	s := tr.GetOrCreate("cpu")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			tr.CreateCollector("cpu").Success()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.LessOrEqual(t, len(s.History()), MaxRunHistory)
			s.LastRun()
		}
	}()
	wg.Wait()

	assert.Len(t, s.History(), MaxRunHistory)
}
