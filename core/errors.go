package core

import (
	"errors"
	"fmt"
)

// Per-request sentinel errors. A timed-out or unreachable ping is a normal
// outcome and must be as easy to inspect as a success; match these with
// errors.Is.
var (
	// ErrTimeout means the driver reported IP_REQ_TIMED_OUT, or the
	// completion event never fired within the request timeout plus grace.
	ErrTimeout = errors.New("echo request timed out")

	// ErrNoBufferAvailable is returned by the fail-fast pool policy when
	// every slot is leased.
	ErrNoBufferAvailable = errors.New("no free reply buffer available")

	// ErrInvalidAddress marks a target that is not a valid IPv4 or IPv6
	// address, or whose family does not match the handle.
	ErrInvalidAddress = errors.New("invalid target address")

	// ErrMalformedReply marks a reply buffer too short or inconsistent to
	// decode safely.
	ErrMalformedReply = errors.New("malformed echo reply buffer")

	// ErrPayloadTooLarge means the payload plus reply header does not fit
	// the pool's slot capacity.
	ErrPayloadTooLarge = errors.New("payload does not fit reply buffer slot")

	// ErrHandleClosed marks use of an EchoHandle after Close.
	ErrHandleClosed = errors.New("echo handle is closed")

	// ErrNoHandle means the pinger has no usable handle for the target's
	// address family.
	ErrNoHandle = errors.New("no echo handle for address family")

	// ErrPoolClosed marks an acquire against a closed BufferPool.
	ErrPoolClosed = errors.New("buffer pool is closed")

	// ErrCanceled resolves a PendingPing whose caller gave up on it.
	ErrCanceled = errors.New("echo request canceled")
)

// CreateError reports failure to open the helper-driver conversation
// handles. Either field may be nil when only one family failed.
type CreateError struct {
	V4 error
	V6 error
}

func (e *CreateError) Error() string {
	switch {
	case e.V4 != nil && e.V6 != nil:
		return fmt.Sprintf("could not create ICMP v4 handle (%v) nor v6 handle (%v)", e.V4, e.V6)
	case e.V4 != nil:
		return fmt.Sprintf("could not create ICMP v4 handle: %v", e.V4)
	case e.V6 != nil:
		return fmt.Sprintf("could not create ICMP v6 handle: %v", e.V6)
	default:
		return "could not create ICMP handle"
	}
}

// UnreachableError is a driver-reported destination-unreachable outcome.
type UnreachableError struct {
	// Code is the raw IP_STATUS or Windows error code.
	Code uint32
	// Reason is the human-readable unreachable cause.
	Reason string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("destination unreachable: %s (code %d)", e.Reason, e.Code)
}

// OsError carries any other IP_STATUS or Windows error code reported by the
// driver or a syscall.
type OsError struct {
	Code uint32
}

func (e *OsError) Error() string {
	if e.Code >= ipStatusBase && e.Code <= maxIPStatus {
		return fmt.Sprintf("echo failed: %s (status %d)", ipStatusString(e.Code), e.Code)
	}
	return fmt.Sprintf("echo failed: system error %d", e.Code)
}

// Windows IP_STATUS codes written into the reply Status field (ipexport.h).
const (
	ipStatusBase = 11000
	maxIPStatus  = 11050

	ipSuccess             = 0
	ipBufTooSmall         = 11001
	ipDestNetUnreachable  = 11002
	ipDestHostUnreachable = 11003
	ipDestProtUnreachable = 11004
	ipDestPortUnreachable = 11005
	ipNoResources         = 11006
	ipBadOption           = 11007
	ipHWError             = 11008
	ipPacketTooBig        = 11009
	ipReqTimedOut         = 11010
	ipBadReq              = 11011
	ipBadRoute            = 11012
	ipTTLExpiredTransit   = 11013
	ipTTLExpiredReassem   = 11014
	ipParamProblem        = 11015
	ipSourceQuench        = 11016
	ipOptionTooBig        = 11017
	ipBadDestination      = 11018
)

// Windows winerror codes a blocking send can fail with directly.
const (
	winErrNetUnreachable  = 1231
	winErrHostUnreachable = 1232
	winErrProtUnreachable = 1233
)

// statusToError maps a reply Status into the error taxonomy. ipSuccess must
// be handled by the caller before getting here.
func statusToError(status uint32) error {
	switch status {
	case ipReqTimedOut:
		return ErrTimeout
	case ipDestNetUnreachable, ipDestHostUnreachable,
		ipDestProtUnreachable, ipDestPortUnreachable,
		ipBadRoute, ipBadDestination:
		return &UnreachableError{Code: status, Reason: ipStatusString(status)}
	default:
		return &OsError{Code: status}
	}
}

// winErrorToError maps a GetLastError value, which for the blocking echo
// calls may be either an IP_STATUS or a plain winerror.
func winErrorToError(code uint32) error {
	if code >= ipStatusBase && code <= maxIPStatus {
		return statusToError(code)
	}
	switch code {
	case winErrNetUnreachable:
		return &UnreachableError{Code: code, Reason: "destination network unreachable"}
	case winErrHostUnreachable:
		return &UnreachableError{Code: code, Reason: "destination host unreachable"}
	case winErrProtUnreachable:
		return &UnreachableError{Code: code, Reason: "destination protocol unreachable"}
	default:
		return &OsError{Code: code}
	}
}

// ipStatusString converts an IP_STATUS code to a human-readable string.
func ipStatusString(status uint32) string {
	switch status {
	case ipSuccess:
		return "success"
	case ipBufTooSmall:
		return "reply buffer too small"
	case ipDestNetUnreachable:
		return "destination network unreachable"
	case ipDestHostUnreachable:
		return "destination host unreachable"
	case ipDestProtUnreachable:
		return "destination protocol unreachable"
	case ipDestPortUnreachable:
		return "destination port unreachable"
	case ipNoResources:
		return "insufficient IP resources"
	case ipBadOption:
		return "bad IP option"
	case ipHWError:
		return "hardware error"
	case ipPacketTooBig:
		return "packet too big"
	case ipReqTimedOut:
		return "request timed out"
	case ipBadReq:
		return "bad request"
	case ipBadRoute:
		return "bad route"
	case ipTTLExpiredTransit:
		return "TTL expired in transit"
	case ipTTLExpiredReassem:
		return "TTL expired during reassembly"
	case ipParamProblem:
		return "parameter problem"
	case ipSourceQuench:
		return "source quench"
	case ipOptionTooBig:
		return "IP option too big"
	case ipBadDestination:
		return "bad destination"
	default:
		return fmt.Sprintf("unknown status %d", status)
	}
}
