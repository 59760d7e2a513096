//go:build windows

package core

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// bufferSlot is one reusable reply region together with the kernel event
// the driver signals when it has finished writing into it. A slot is either
// Free (owned by the pool, sitting in the free list) or Leased (owned by
// exactly one pending request); the free-list channel is what enforces that
// no two requests ever share a slot.
type bufferSlot struct {
	index int

	// req stages the request payload; the driver may read it until the
	// completion event fires, so it belongs to the slot, not the caller.
	req []byte

	// reply is where the driver writes the reply structure and echoed
	// payload.
	reply []byte

	// event is the completion signal bound to this slot, manual-reset so
	// concurrent waiters all observe it. Reset when the slot is leased.
	event windows.Handle
}

// BufferPool owns a fixed set of slots sized at construction. It does not
// grow; callers size it for their expected request concurrency.
type BufferPool struct {
	slots        []*bufferSlot
	free         chan *bufferSlot
	slotCapacity int
	block        bool

	// done is closed by Close so an acquire blocked on the free list
	// resolves to ErrPoolClosed instead of waiting forever.
	done chan struct{}

	mu     sync.Mutex
	leased int
	closed bool
}

// NewBufferPool creates a pool of size reply buffer slots of slotCapacity
// bytes each, creating one completion event per slot. block selects the
// exhaustion policy: true blocks acquire until a slot frees, false fails
// fast with ErrNoBufferAvailable.
func NewBufferPool(size, slotCapacity int, block bool) (*BufferPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid pool size %d, must be at least 1", size)
	}
	if slotCapacity < MinSlotCapacity() {
		return nil, fmt.Errorf("invalid slot capacity %d, must be at least %d",
			slotCapacity, MinSlotCapacity())
	}

	p := &BufferPool{
		slots:        make([]*bufferSlot, 0, size),
		free:         make(chan *bufferSlot, size),
		slotCapacity: slotCapacity,
		block:        block,
		done:         make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		event, err := windows.CreateEvent(nil, 1 /* manual reset */, 0, nil)
		if err != nil {
			for _, s := range p.slots {
				windows.CloseHandle(s.event)
			}
			return nil, fmt.Errorf("could not create completion event: %w", err)
		}
		slot := &bufferSlot{
			index: i,
			req:   make([]byte, slotCapacity),
			reply: make([]byte, slotCapacity),
			event: event,
		}
		p.slots = append(p.slots, slot)
		p.free <- slot
	}

	return p, nil
}

// Size returns the fixed number of slots.
func (p *BufferPool) Size() int {
	return len(p.slots)
}

// SlotCapacity returns the byte size of each reply region.
func (p *BufferPool) SlotCapacity() int {
	return p.slotCapacity
}

// InFlight returns how many slots are currently leased.
func (p *BufferPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leased
}

// acquire transitions one slot from Free to Leased and arms its event.
func (p *BufferPool) acquire() (*bufferSlot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	var slot *bufferSlot
	if p.block {
		select {
		case slot = <-p.free:
		case <-p.done:
			return nil, ErrPoolClosed
		}
	} else {
		select {
		case slot = <-p.free:
		default:
			return nil, ErrNoBufferAvailable
		}
	}

	// Close may have won the race after the check above; a slot taken from
	// a closed pool goes straight back so Close can reclaim it.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.free <- slot
		return nil, ErrPoolClosed
	}
	p.leased++
	p.mu.Unlock()

	if err := windows.ResetEvent(slot.event); err != nil {
		p.release(slot)
		return nil, fmt.Errorf("could not reset completion event: %w", err)
	}

	return slot, nil
}

// release transitions a slot back to Free. Callers guarantee the driver has
// finished with the slot's buffers before releasing it.
func (p *BufferPool) release(slot *bufferSlot) {
	p.mu.Lock()
	p.leased--
	p.mu.Unlock()

	p.free <- slot
}

// Close waits for every leased slot to return Free, then releases the
// completion events. A slot retired to a background waiter keeps Close
// blocked until the driver truly finished with it.
func (p *BufferPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)

	for range p.slots {
		<-p.free
	}

	var firstErr error
	for _, slot := range p.slots {
		if err := windows.CloseHandle(slot.event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
