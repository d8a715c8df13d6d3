package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScopeLocks_SerializesSameKey(t *testing.T) {
	locks := NewScopeLocks()
	var active, maxActive int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("r1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Zero(t, locks.Len())
}

func TestScopeLocks_DifferentKeysRunInParallel(t *testing.T) {
	locks := NewScopeLocks()
	unlock := locks.Lock("r1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("r2")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on r2 blocked by r1")
	}
}

func TestScopeLocks_ExclusiveWaitsForMutations(t *testing.T) {
	locks := NewScopeLocks()
	unlock := locks.Lock("r1")

	acquired := make(chan struct{})
	go func() {
		release := locks.Exclusive()
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("exclusive acquired while a mutation holds the gate")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("exclusive never acquired")
	}
}
