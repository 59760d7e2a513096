//go:build windows

package core

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// defaultTTL matches the helper driver's conventional default.
	defaultTTL = 255

	// ipFlagDF is the IP_FLAG_DF bit of IP_OPTION_INFORMATION.Flags.
	ipFlagDF = 0x2
)

// Pinger issues ICMP echo requests through the Windows helper driver. It
// opens one conversation handle per address family and owns a fixed reply
// buffer pool for async requests. A Pinger is safe for concurrent use; the
// driver serializes work on the handles internally.
type Pinger struct {
	settings *Settings
	logger   *log.Logger

	// v4/v6 are nil when that family's handle could not be created; the
	// pinger stays usable for the surviving family.
	v4 *EchoHandle
	v6 *EchoHandle

	pool *BufferPool

	mu     sync.Mutex
	closed bool
}

// NewPinger opens the v4 and v6 helper handles and builds the reply buffer
// pool. If only one family's handle can be created the pinger is still
// returned, with requests to the other family failing with ErrNoHandle; if
// neither can, the *CreateError carries both causes.
func NewPinger(settings *Settings) (*Pinger, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := NewLogger(settings.LoggingLevel)

	logger.Debug("creating ICMP conversation handles")

	v4, err4 := OpenEchoHandle(FamilyV4)
	v6, err6 := OpenEchoHandle(FamilyV6)
	if err4 != nil && err6 != nil {
		return nil, &CreateError{V4: err4, V6: err6}
	}
	if err4 != nil || err6 != nil {
		logger.Warnf("continuing with one address family: %v", &CreateError{V4: err4, V6: err6})
	}

	pool, err := NewBufferPool(settings.PoolSize, settings.SlotCapacity, settings.BlockOnExhaustion)
	if err != nil {
		if v4 != nil {
			v4.Close()
		}
		if v6 != nil {
			v6.Close()
		}
		return nil, err
	}

	logger.Debugf("pinger ready: pool of %d slots x %d bytes, blocking=%t",
		pool.Size(), pool.SlotCapacity(), settings.BlockOnExhaustion)

	return &Pinger{
		settings: settings,
		logger:   logger,
		v4:       v4,
		v6:       v6,
		pool:     pool,
	}, nil
}

// Ping issues one blocking echo request to dst and returns its decoded
// outcome. The OS call suspends the calling goroutine's thread until the
// driver completes in place; the buffer pool is not involved.
func (p *Pinger) Ping(dst Address, payload []byte) (*EchoReply, error) {
	h, err := p.handleFor(dst)
	if err != nil {
		return nil, err
	}
	opts := p.ipOptions()
	return sendEchoSync(p.logger, h, Address{}, dst, payload, &opts, p.settings.Timeout)
}

// PingFrom issues one blocking echo request to dst pinned to the local
// source address src, which must share dst's address family.
func (p *Pinger) PingFrom(src, dst Address, payload []byte) (*EchoReply, error) {
	h, err := p.handleFor(dst)
	if err != nil {
		return nil, err
	}
	opts := p.ipOptions()
	return sendEchoSync(p.logger, h, src, dst, payload, &opts, p.settings.Timeout)
}

// PingAsync issues one non-blocking echo request to dst against the
// pinger's pool and returns its pending handle.
func (p *Pinger) PingAsync(dst Address, payload []byte) (*PendingPing, error) {
	h, err := p.handleFor(dst)
	if err != nil {
		return nil, err
	}
	opts := p.ipOptions()
	return sendEchoAsync(p.logger, h, p.pool, Address{}, dst, payload, &opts, p.settings.Timeout)
}

// PingAsyncFrom is PingAsync pinned to the local source address src.
func (p *Pinger) PingAsyncFrom(src, dst Address, payload []byte) (*PendingPing, error) {
	h, err := p.handleFor(dst)
	if err != nil {
		return nil, err
	}
	opts := p.ipOptions()
	return sendEchoAsync(p.logger, h, p.pool, src, dst, payload, &opts, p.settings.Timeout)
}

// Pool exposes the pinger's reply buffer pool.
func (p *Pinger) Pool() *BufferPool {
	return p.pool
}

// Close drains the buffer pool, waiting for in-flight requests to finish,
// then closes the conversation handles. The first call tears down, later
// calls return nil.
func (p *Pinger) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Debug("closing pinger")

	firstErr := p.pool.Close()
	if p.v4 != nil {
		if err := p.v4.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.v6 != nil {
		if err := p.v6.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pinger) handleFor(dst Address) (*EchoHandle, error) {
	if !dst.IsValid() {
		return nil, ErrInvalidAddress
	}
	h := p.v4
	if !dst.IsIPv4() {
		h = p.v6
	}
	if h == nil {
		return nil, ErrNoHandle
	}
	return h, nil
}

func (p *Pinger) ipOptions() ipOptionInformation {
	opts := ipOptionInformation{TTL: uint8(p.settings.TTL)}
	if p.settings.DontFragment {
		opts.Flags = ipFlagDF
	}
	return opts
}

// SendEcho issues one blocking echo request against h with default request
// options. The reply buffer is transient and owned by this call alone.
func SendEcho(h *EchoHandle, dst Address, payload []byte, timeout time.Duration) (*EchoReply, error) {
	opts := ipOptionInformation{TTL: defaultTTL}
	return sendEchoSync(log.StandardLogger(), h, Address{}, dst, payload, &opts, timeout)
}

// SendEchoFrom is SendEcho pinned to the local source address src.
func SendEchoFrom(h *EchoHandle, src, dst Address, payload []byte, timeout time.Duration) (*EchoReply, error) {
	opts := ipOptionInformation{TTL: defaultTTL}
	return sendEchoSync(log.StandardLogger(), h, src, dst, payload, &opts, timeout)
}

func sendEchoSync(logger *log.Logger, h *EchoHandle, src, dst Address, payload []byte, opts *ipOptionInformation, timeout time.Duration) (*EchoReply, error) {
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

	raw, err := h.use()
	if err != nil {
		return nil, err
	}

	logger.Debugf("issuing blocking echo to %s, timeout %s", dst, timeout)

	buf := make([]byte, replyBufferSize(dst.Family(), len(payload)))

	if dst.IsIPv4() {
		if src.IsValid() {
			err = icmpSendEchoEx(raw, 0, src.v4Arg(), dst.v4Arg(), payload, opts, buf, timeoutMs(timeout))
		} else {
			err = icmpSendEchoBlocking(raw, dst.v4Arg(), payload, opts, buf, timeoutMs(timeout))
		}
	} else {
		srcSA := sockAddrIn6{Family: afInet6}
		if src.IsValid() {
			srcSA = sockAddrFor(src)
		}
		dstSA := sockAddrFor(dst)
		err = icmp6SendEcho(raw, 0, &srcSA, &dstSA, payload, opts, buf, timeoutMs(timeout))
	}
	if err != nil {
		return nil, err
	}

	return decodeReply(buf, dst.Family(), false, len(payload))
}
