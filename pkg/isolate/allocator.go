// Copyright 2026 The Isobox Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package isolate

import (
	"container/list"
	"context"
	"sync"

	"github.com/arborjudge/isobox/internal/metrics"
)

// Slot is a handle to one exclusively-owned box_id. It is returned by
// BoxAllocator.Acquire and must be passed back to Release exactly once;
// Release is idempotent on a Slot that was already released.
type Slot struct {
	id        int
	allocator *BoxAllocator
	mu        sync.Mutex
	released  bool
}

// ID returns the numeric box id this slot owns.
func (s *Slot) ID() int { return s.id }

// Release returns the slot to its allocator's free pool. Safe to call
// more than once; only the first call has an effect.
func (s *Slot) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.allocator.release(s.id)
}

// BoxAllocator grants exclusive ownership of numeric box ids in [0, N)
// to concurrent callers, with FIFO fairness among waiters and cancel-safe
// waiting. It is process-wide shared state: one instance should back
// every worker on a host.
type BoxAllocator struct {
	mu      sync.Mutex
	size    int
	held    map[int]bool
	waiters *list.List // of *waiter

	metrics *metrics.Collector
}

type waiter struct {
	id   int // specific id requested, or -1 for "any"
	ch   chan int
	done bool
}

// NewBoxAllocator returns an allocator managing box ids [0, n).
func NewBoxAllocator(n int) *BoxAllocator {
	return &BoxAllocator{
		size:    n,
		held:    make(map[int]bool, n),
		waiters: list.New(),
	}
}

// SetMetrics attaches a Collector that tracks held-slot and waiter-queue
// depth as callers acquire and release slots. Safe to call once before
// the allocator is shared across goroutines; nil disables reporting.
func (a *BoxAllocator) SetMetrics(c *metrics.Collector) {
	a.mu.Lock()
	a.metrics = c
	a.mu.Unlock()
}

// reportLocked pushes the current held-slot and waiter-queue depth to
// the attached Collector, if any. Callers must hold a.mu.
func (a *BoxAllocator) reportLocked() {
	if a.metrics == nil {
		return
	}
	a.metrics.SetHeldSlots(len(a.held))
	a.metrics.SetWaiters(a.waiters.Len())
}

// Acquire blocks until any free slot is available, or ctx is canceled.
// Fairness: waiters are served FIFO relative to other Acquire/AcquireSpecific
// calls already blocked when a slot is released.
func (a *BoxAllocator) Acquire(ctx context.Context) (*Slot, error) {
	return a.acquire(ctx, -1)
}

// AcquireSpecific blocks until box id is free, or ctx is canceled. Fails
// immediately with InvalidSlotError if id is outside [0, N).
func (a *BoxAllocator) AcquireSpecific(ctx context.Context, id int) (*Slot, error) {
	if id < 0 || id >= a.size {
		return nil, &InvalidSlotError{BoxID: id, Why: "out of range"}
	}
	return a.acquire(ctx, id)
}

func (a *BoxAllocator) acquire(ctx context.Context, want int) (*Slot, error) {
	a.mu.Lock()

	if id, ok := a.tryTakeLocked(want); ok {
		a.reportLocked()
		a.mu.Unlock()
		return &Slot{id: id, allocator: a}, nil
	}

	w := &waiter{id: want, ch: make(chan int, 1)}
	elem := a.waiters.PushBack(w)
	a.reportLocked()
	a.mu.Unlock()

	select {
	case id := <-w.ch:
		return &Slot{id: id, allocator: a}, nil
	case <-ctx.Done():
		a.mu.Lock()
		if !w.done {
			a.waiters.Remove(elem)
			a.reportLocked()
			a.mu.Unlock()
			return nil, &CanceledError{Op: "acquire", Err: ctx.Err()}
		}
		a.mu.Unlock()
		// A release already handed us a slot concurrently with our
		// cancellation; honor the grant rather than leaking it.
		id := <-w.ch
		return &Slot{id: id, allocator: a}, nil
	}
}

// tryTakeLocked returns a free id and marks it held, assuming a.mu is held.
func (a *BoxAllocator) tryTakeLocked(want int) (int, bool) {
	if want >= 0 {
		if a.held[want] {
			return 0, false
		}
		a.held[want] = true
		return want, true
	}
	for id := 0; id < a.size; id++ {
		if !a.held[id] {
			a.held[id] = true
			return id, true
		}
	}
	return 0, false
}

func (a *BoxAllocator) release(id int) {
	a.mu.Lock()
	delete(a.held, id)

	for e := a.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		if w.id >= 0 && w.id != id {
			continue
		}
		a.waiters.Remove(e)
		a.held[id] = true
		w.done = true
		w.ch <- id
		a.reportLocked()
		a.mu.Unlock()
		return
	}
	a.reportLocked()
	a.mu.Unlock()
}
