package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecheckRunnerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var runs atomic.Int32

	r := newRecheckRunner(func() {
		runs.Add(1)
		started <- struct{}{}
		<-release
	})

	assert.True(t, r.Trigger())
	<-started
	assert.False(t, r.Trigger(), "a second run waits for the first")

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	assert.False(t, r.Trigger(), "no run starts once stopping")
	close(release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
	assert.False(t, r.Trigger())
	assert.Equal(t, int32(1), runs.Load())
}
