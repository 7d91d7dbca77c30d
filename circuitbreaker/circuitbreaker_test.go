package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_StaysClosedBelowVolumeThreshold(t *testing.T) {
	cb := New("q", 50, 1, time.Minute, 0, 10)
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "closed", cb.GetState(), "below request volume threshold, breaker must stay closed")
}

func TestExecute_OpensWhenErrorRateExceedsThreshold(t *testing.T) {
	cb := New("q", 50, 1, time.Minute, 0, 4)
	boom := errors.New("boom")

	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return boom })
	}

	assert.Equal(t, "open", cb.GetState())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpenState)
}

func TestExecute_HalfOpensAfterTimeoutAndRecoversOnSuccess(t *testing.T) {
	cb := New("q", 50, 1, 10*time.Millisecond, 0, 2)
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })
	require.Equal(t, "open", cb.GetState())

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState(), "a success while half-open must close the breaker")
}

func TestExecute_FailureWhileHalfOpenReopens(t *testing.T) {
	cb := New("q", 50, 1, 10*time.Millisecond, 0, 2)
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })
	require.Equal(t, "open", cb.GetState())

	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(func() error { return boom })
	assert.Equal(t, "open", cb.GetState())
}

func TestExecute_RejectsTooManyConcurrentRequests(t *testing.T) {
	cb := New("q", 50, 1, time.Minute, 1, 10)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyConcurrentRequests)
	close(release)
}

func TestExecute_NilFunctionIsRejected(t *testing.T) {
	cb := New("q", 50, 1, time.Minute, 0, 10)
	assert.Error(t, cb.Execute(nil))
}

func TestExecute_RecoversFromPanicAsFailure(t *testing.T) {
	cb := New("q", 50, 1, time.Minute, 0, 1)
	err := cb.Execute(func() error { panic("boom") })
	assert.Error(t, err)
	assert.Equal(t, uint64(1), cb.GetStats().TotalFailure)
}

func TestGetStats_ReportsRequestsAndFailures(t *testing.T) {
	cb := New("q", 100, 1, time.Minute, 0, 100)
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errors.New("x") })

	stats := cb.GetStats()
	assert.Equal(t, uint64(2), stats.Requests)
	assert.Equal(t, uint64(1), stats.TotalSuccess)
	assert.Equal(t, uint64(1), stats.TotalFailure)
}
