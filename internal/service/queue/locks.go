package queue

import (
	"sync"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

// keyedMutex serializes work per profile without holding a global lock.
type keyedMutex struct {
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

func (k *keyedMutex) Lock(id uuid.UUID) func() {
	v, _ := k.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// packageSemaphores caps concurrent in-flight sends per package at the
// package's configured limit.
type packageSemaphores struct {
	mu   sync.Mutex
	sems map[uuid.UUID]chan struct{}
}

func (p *packageSemaphores) acquire(pkg *model.Package) func() {
	limit := pkg.MaxConcurrentSends
	if limit <= 0 {
		limit = 1
	}

	p.mu.Lock()
	if p.sems == nil {
		p.sems = make(map[uuid.UUID]chan struct{})
	}
	sem, ok := p.sems[pkg.ID]
	if !ok || cap(sem) != limit {
		// First sight of this package, or its cap changed. In-flight sends
		// release into the channel they acquired from, so swapping is safe.
		sem = make(chan struct{}, limit)
		p.sems[pkg.ID] = sem
	}
	p.mu.Unlock()

	sem <- struct{}{}
	return func() { <-sem }
}
