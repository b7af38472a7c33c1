package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/blockpreventer/bridge/internal/model"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	var km keyedMutex
	id := uuid.New()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(id)
			defer unlock()

			cur := atomic.AddInt32(&inFlight, 1)
			for {
				seen := atomic.LoadInt32(&maxInFlight)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var km unlockRace
	km.run(t)
}

// unlockRace checks two distinct profiles never block each other: the second
// Lock must return while the first key is still held.
type unlockRace struct{ km keyedMutex }

func (u *unlockRace) run(t *testing.T) {
	unlockA := u.km.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := u.km.Lock(uuid.New())
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
}

func TestPackageSemaphoreCapsConcurrency(t *testing.T) {
	var sems packageSemaphores
	pkg := &model.Package{MaxConcurrentSends: 2}
	pkg.ID = uuid.New()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := sems.acquire(pkg)
			defer release()

			cur := atomic.AddInt32(&inFlight, 1)
			for {
				seen := atomic.LoadInt32(&maxInFlight)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestPackageSemaphoreZeroCapDefaultsToOne(t *testing.T) {
	var sems packageSemaphores
	pkg := &model.Package{MaxConcurrentSends: 0}
	pkg.ID = uuid.New()

	release := sems.acquire(pkg)
	acquired := make(chan struct{})
	go func() {
		r := sems.acquire(pkg)
		r()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while first slot held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked")
	}
}

func TestPackageSemaphoreCapChangeSwapsChannel(t *testing.T) {
	var sems packageSemaphores
	pkg := &model.Package{MaxConcurrentSends: 1}
	pkg.ID = uuid.New()

	release := sems.acquire(pkg)

	// Raising the cap mid-flight gives new acquirers the wider channel; the
	// held slot still releases cleanly into the old one.
	pkg.MaxConcurrentSends = 3
	r2 := sems.acquire(pkg)
	r3 := sems.acquire(pkg)
	release()
	r2()
	r3()
}
