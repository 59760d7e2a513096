//go:build windows

package core

import (
	"sync"

	"golang.org/x/sys/windows"
)

// EchoHandle owns one open conversation with the ICMP helper driver. It is
// created once per pinger and family, shared by every request issued
// against it, and closed exactly once: Close is guarded so a second call is
// a no-op and any use after Close fails with ErrHandleClosed instead of
// touching a stale kernel handle.
type EchoHandle struct {
	raw    windows.Handle
	family Family

	mu     sync.Mutex
	closed bool
}

// OpenEchoHandle opens a helper-driver conversation for the given address
// family.
func OpenEchoHandle(family Family) (*EchoHandle, error) {
	raw, err := icmpCreateFile(family)
	if err != nil {
		return nil, err
	}
	return &EchoHandle{raw: raw, family: family}, nil
}

// Family returns the address family this handle serves.
func (h *EchoHandle) Family() Family {
	return h.family
}

// use hands out the raw handle for one driver call.
func (h *EchoHandle) use() (windows.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return windows.InvalidHandle, ErrHandleClosed
	}
	return h.raw, nil
}

// Close releases the driver handle. The first call closes it, later calls
// return nil. Callers must not close a handle while requests issued against
// it are still in flight.
func (h *EchoHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	return icmpCloseHandle(h.raw)
}
