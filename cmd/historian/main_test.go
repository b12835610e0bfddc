// cmd/historian/main_test.go
package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kernel-games/popcorn/internal/cache"
)

func TestFlushLoopTicksWithoutQueueTraffic(t *testing.T) {
	hs := NewHistorianService()
	defer hs.cancelFn()
	hs.flushDelay = 10 * time.Millisecond

	var flushes int32
	hs.flushFn = func() { atomic.AddInt32(&flushes, 1) }

	go hs.flushLoop()
	time.Sleep(150 * time.Millisecond)

	// The flush cadence must not depend on queue reads; an idle BLPop would
	// otherwise quantize it to the pop timeout.
	assert.GreaterOrEqual(t, atomic.LoadInt32(&flushes), int32(3))
}

func TestAppendToBatchHoldsBelowThreshold(t *testing.T) {
	hs := NewHistorianService()
	defer hs.cancelFn()
	hs.batchSize = 100

	for i := 0; i < 3; i++ {
		hs.appendToBatch(cache.GameActionRecord{GameID: uuid.New(), ActionIndex: i})
	}

	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	assert.Len(t, hs.batch, 3)
}
