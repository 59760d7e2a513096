//go:build windows

package core

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// completionGrace bounds how long Wait keeps blocking past the request's
// own timeout. The driver signals the completion event at the timeout
// itself, so the grace only matters when the driver is overdue; in that
// case the request resolves ErrTimeout and its slot is retired until the
// driver truly lets go of it.
const completionGrace = 100 * time.Millisecond

// PendingPing is the awaitable handle for one in-flight echo request. It
// owns its leased buffer slot until completion is observed, after which the
// slot has returned to the pool and the decoded result is held here. The
// result is delivered exactly once regardless of how many Ready/Wait/Cancel
// calls race.
type PendingPing struct {
	logger  *log.Logger
	pool    *BufferPool
	slot    *bufferSlot
	family  Family
	dst     Address
	reqLen  int
	issued  time.Time
	timeout time.Duration

	mu    sync.Mutex
	done  bool
	reply *EchoReply
	err   error
}

// SendEchoAsync issues one non-blocking echo request against h using a slot
// leased from pool, with default request options. The returned PendingPing
// resolves once the driver signals the slot's completion event.
func SendEchoAsync(h *EchoHandle, pool *BufferPool, dst Address, payload []byte, timeout time.Duration) (*PendingPing, error) {
	opts := ipOptionInformation{TTL: defaultTTL}
	return sendEchoAsync(log.StandardLogger(), h, pool, Address{}, dst, payload, &opts, timeout)
}

// SendEchoAsyncFrom is SendEchoAsync pinned to the local source address src.
func SendEchoAsyncFrom(h *EchoHandle, pool *BufferPool, src, dst Address, payload []byte, timeout time.Duration) (*PendingPing, error) {
	opts := ipOptionInformation{TTL: defaultTTL}
	return sendEchoAsync(log.StandardLogger(), h, pool, src, dst, payload, &opts, timeout)
}

func sendEchoAsync(logger *log.Logger, h *EchoHandle, pool *BufferPool, src, dst Address, payload []byte, opts *ipOptionInformation, timeout time.Duration) (*PendingPing, error) {
	if !dst.IsValid() {
		return nil, ErrInvalidAddress
	}
	if dst.Family() != h.Family() {
		return nil, fmt.Errorf("%w: %s does not match %s handle", ErrInvalidAddress, dst, h.Family())
	}
	if src.IsValid() && src.Family() != dst.Family() {
		return nil, fmt.Errorf("%w: source %s does not match target family %s", ErrInvalidAddress, src, dst.Family())
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %s, must be positive", timeout)
	}
	if replyBufferSize(dst.Family(), len(payload)) > pool.SlotCapacity() {
		return nil, ErrPayloadTooLarge
	}

	raw, err := h.use()
	if err != nil {
		return nil, err
	}

	slot, err := pool.acquire()
	if err != nil {
		return nil, err
	}

	// The driver may read the request bytes until completion, so they are
	// staged in the slot rather than borrowed from the caller.
	copy(slot.req, payload)

	logger.Debugf("issuing async echo to %s on slot %d, timeout %s", dst, slot.index, timeout)

	p := &PendingPing{
		logger:  logger,
		pool:    pool,
		slot:    slot,
		family:  dst.Family(),
		dst:     dst,
		reqLen:  len(payload),
		issued:  time.Now(),
		timeout: timeout,
	}

	if dst.IsIPv4() {
		if src.IsValid() {
			err = icmpSendEchoEx(raw, slot.event, src.v4Arg(), dst.v4Arg(), slot.req[:len(payload)], opts, slot.reply, timeoutMs(timeout))
		} else {
			err = icmpSendEchoAsync(raw, slot.event, dst.v4Arg(), slot.req[:len(payload)], opts, slot.reply, timeoutMs(timeout))
		}
	} else {
		srcSA := sockAddrIn6{Family: afInet6}
		if src.IsValid() {
			srcSA = sockAddrFor(src)
		}
		dstSA := sockAddrFor(dst)
		err = icmp6SendEcho(raw, slot.event, &srcSA, &dstSA, slot.req[:len(payload)], opts, slot.reply, timeoutMs(timeout))
	}
	if err != nil {
		// The driver rejected the request before taking ownership of the
		// buffer, so the slot can go straight back to Free.
		pool.release(slot)
		logger.Debugf("async echo to %s failed on send: %v", dst, err)
		return nil, err
	}

	return p, nil
}

// Target returns the address this request was issued to.
func (p *PendingPing) Target() Address {
	return p.dst
}

// Ready polls the completion signal without blocking, decoding the reply
// and freeing the slot if the driver has finished. It reports whether the
// request has resolved; once true, Wait returns immediately.
func (p *PendingPing) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return true
	}

	ev, err := windows.WaitForSingleObject(p.slot.event, 0)
	switch {
	case err != nil:
		p.retireLocked(&OsError{Code: errnoCode(err)})
	case ev == windows.WAIT_OBJECT_0:
		p.completeLocked()
	default:
		return false
	}
	return true
}

// Wait blocks until the driver completes the request, up to the request
// timeout plus a small grace, and returns the decoded outcome. Safe to call
// from multiple goroutines; all callers observe the same result.
func (p *PendingPing) Wait() (*EchoReply, error) {
	p.mu.Lock()
	if p.done {
		reply, err := p.reply, p.err
		p.mu.Unlock()
		return reply, err
	}
	event := p.slot.event
	p.mu.Unlock()

	remaining := p.timeout - time.Since(p.issued)
	if remaining < 0 {
		remaining = 0
	}

	ev, waitErr := windows.WaitForSingleObject(event, timeoutMs(remaining+completionGrace))

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return p.reply, p.err
	}

	switch {
	case waitErr != nil:
		p.retireLocked(&OsError{Code: errnoCode(waitErr)})
	case ev == windows.WAIT_OBJECT_0:
		p.completeLocked()
	case ev == uint32(windows.WAIT_TIMEOUT):
		// The driver is overdue past its own timeout. The buffer must not
		// be reused while the driver may still write to it.
		p.retireLocked(ErrTimeout)
	default:
		p.retireLocked(&OsError{Code: ev})
	}

	return p.reply, p.err
}

// Cancel abandons the request. If completion is already observable the slot
// is recycled immediately; otherwise it is retired until the driver signals,
// so no future request can lease a buffer the driver still owns. After
// Cancel, Wait returns ErrCanceled.
func (p *PendingPing) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}

	ev, err := windows.WaitForSingleObject(p.slot.event, 0)
	if err == nil && ev == windows.WAIT_OBJECT_0 {
		p.completeLocked()
		p.reply, p.err = nil, ErrCanceled
		return
	}

	p.retireLocked(ErrCanceled)
}

// completeLocked parses and decodes the reply buffer, returns the slot to
// the pool and stores the result. Caller holds p.mu and has observed the
// completion event.
func (p *PendingPing) completeLocked() {
	slot := p.slot
	p.slot = nil

	var err error
	if p.family == FamilyV6 {
		err = icmp6ParseReplies(slot.reply)
	} else {
		err = icmpParseReplies(slot.reply)
	}

	var reply *EchoReply
	if err == nil {
		reply, err = decodeReply(slot.reply, p.family, true, p.reqLen)
	}

	p.pool.release(slot)

	p.done, p.reply, p.err = true, reply, err

	if err != nil {
		p.logger.Debugf("echo to %s completed on slot %d: %v", p.dst, slot.index, err)
	} else {
		p.logger.Debugf("echo to %s completed on slot %d: rtt %s", p.dst, slot.index, reply.RTT)
	}
}

// retireLocked resolves the request with err while the driver still owns
// the slot. The slot only returns to Free once the completion event finally
// fires; until then the pool runs one slot short rather than risk the
// driver writing into a recycled buffer.
func (p *PendingPing) retireLocked(err error) {
	slot := p.slot
	p.slot = nil
	p.done, p.err = true, err

	p.logger.Warnf("retiring slot %d for %s until driver completion: %v", slot.index, p.dst, err)

	pool := p.pool
	go func() {
		windows.WaitForSingleObject(slot.event, windows.INFINITE)
		pool.release(slot)
	}()
}

// timeoutMs converts a duration to the millisecond argument the driver
// expects, clamping to at least 1ms.
func timeoutMs(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return uint32(ms)
}
