//go:build windows

package core

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	iphlpapi = windows.NewLazySystemDLL("iphlpapi.dll")

	procIcmpCreateFile    = iphlpapi.NewProc("IcmpCreateFile")
	procIcmp6CreateFile   = iphlpapi.NewProc("Icmp6CreateFile")
	procIcmpCloseHandle   = iphlpapi.NewProc("IcmpCloseHandle")
	procIcmpSendEcho      = iphlpapi.NewProc("IcmpSendEcho")
	procIcmpSendEcho2     = iphlpapi.NewProc("IcmpSendEcho2")
	procIcmpSendEcho2Ex   = iphlpapi.NewProc("IcmpSendEcho2Ex")
	procIcmp6SendEcho2    = iphlpapi.NewProc("Icmp6SendEcho2")
	procIcmpParseReplies  = iphlpapi.NewProc("IcmpParseReplies")
	procIcmp6ParseReplies = iphlpapi.NewProc("Icmp6ParseReplies")
)

const (
	invalidHandleValue = ^uintptr(0)
	afInet6            = 23
)

// sockAddrIn6 matches the Windows SOCKADDR_IN6 structure.
type sockAddrIn6 struct {
	Family   uint16
	Port     uint16
	FlowInfo uint32
	Addr     [16]byte
	ScopeID  uint32
}

func sockAddrFor(a Address) sockAddrIn6 {
	sa := sockAddrIn6{Family: afInet6}
	copy(sa.Addr[:], a.IP().To16())
	return sa
}

func icmpCreateFile(family Family) (windows.Handle, error) {
	proc := procIcmpCreateFile
	if family == FamilyV6 {
		proc = procIcmp6CreateFile
	}
	ret, _, err := proc.Call()
	if ret == invalidHandleValue {
		return windows.InvalidHandle, errnoToError(err)
	}
	return windows.Handle(ret), nil
}

func icmpCloseHandle(h windows.Handle) error {
	ret, _, err := procIcmpCloseHandle.Call(uintptr(h))
	if ret == 0 {
		return errnoToError(err)
	}
	return nil
}

// dataPtr returns a pointer usable as the RequestData argument. The driver
// accepts a zero size but still wants a readable pointer.
var zeroByte [1]byte

func dataPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return unsafe.Pointer(&zeroByte[0])
	}
	return unsafe.Pointer(&b[0])
}

// icmpSendEchoBlocking issues a synchronous IPv4 echo. The calling thread
// is suspended inside the driver until the reply, timeout or error is
// written into reply.
func icmpSendEchoBlocking(h windows.Handle, dst uint32, req []byte, opts *ipOptionInformation, reply []byte, timeoutMs uint32) error {
	ret, _, err := procIcmpSendEcho.Call(
		uintptr(h),
		uintptr(dst),
		uintptr(dataPtr(req)),
		uintptr(len(req)),
		uintptr(unsafe.Pointer(opts)),
		uintptr(unsafe.Pointer(&reply[0])),
		uintptr(len(reply)),
		uintptr(timeoutMs),
	)
	if ret == 0 {
		return winErrorToError(errnoCode(err))
	}
	return nil
}

// icmpSendEchoAsync issues a non-blocking IPv4 echo. The driver signals
// event once it has written the outcome into reply.
func icmpSendEchoAsync(h windows.Handle, event windows.Handle, dst uint32, req []byte, opts *ipOptionInformation, reply []byte, timeoutMs uint32) error {
	ret, _, err := procIcmpSendEcho2.Call(
		uintptr(h),
		uintptr(event),
		0, // ApcRoutine
		0, // ApcContext
		uintptr(dst),
		uintptr(dataPtr(req)),
		uintptr(len(req)),
		uintptr(unsafe.Pointer(opts)),
		uintptr(unsafe.Pointer(&reply[0])),
		uintptr(len(reply)),
		uintptr(timeoutMs),
	)
	return checkAsyncSend(ret, err)
}

// icmpSendEchoEx issues an IPv4 echo pinned to a local source address. A
// zero event makes the call blocking, mirroring the driver's own contract.
func icmpSendEchoEx(h windows.Handle, event windows.Handle, src, dst uint32, req []byte, opts *ipOptionInformation, reply []byte, timeoutMs uint32) error {
	ret, _, err := procIcmpSendEcho2Ex.Call(
		uintptr(h),
		uintptr(event),
		0, // ApcRoutine
		0, // ApcContext
		uintptr(src),
		uintptr(dst),
		uintptr(dataPtr(req)),
		uintptr(len(req)),
		uintptr(unsafe.Pointer(opts)),
		uintptr(unsafe.Pointer(&reply[0])),
		uintptr(len(reply)),
		uintptr(timeoutMs),
	)
	if event == 0 {
		if ret == 0 {
			return winErrorToError(errnoCode(err))
		}
		return nil
	}
	return checkAsyncSend(ret, err)
}

// icmp6SendEcho issues an IPv6 echo. A zero event makes the call blocking,
// mirroring the driver's own contract.
func icmp6SendEcho(h windows.Handle, event windows.Handle, src, dst *sockAddrIn6, req []byte, opts *ipOptionInformation, reply []byte, timeoutMs uint32) error {
	ret, _, err := procIcmp6SendEcho2.Call(
		uintptr(h),
		uintptr(event),
		0, // ApcRoutine
		0, // ApcContext
		uintptr(unsafe.Pointer(src)),
		uintptr(unsafe.Pointer(dst)),
		uintptr(dataPtr(req)),
		uintptr(len(req)),
		uintptr(unsafe.Pointer(opts)),
		uintptr(unsafe.Pointer(&reply[0])),
		uintptr(len(reply)),
		uintptr(timeoutMs),
	)
	if event == 0 {
		if ret == 0 {
			return winErrorToError(errnoCode(err))
		}
		return nil
	}
	return checkAsyncSend(ret, err)
}

// checkAsyncSend interprets the return convention of the event-based send
// calls: a zero return with ERROR_IO_PENDING means the request is in
// flight, a non-zero return means the driver completed it inline (the
// event is already signaled). Anything else failed before the driver took
// ownership of the buffer.
func checkAsyncSend(ret uintptr, err error) error {
	if ret != 0 {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok && errno == windows.ERROR_IO_PENDING {
		return nil
	}
	return winErrorToError(errnoCode(err))
}

// icmpParseReplies converts the raw completion data of an async IPv4 echo
// into reply structures, in place.
func icmpParseReplies(reply []byte) error {
	ret, _, err := procIcmpParseReplies.Call(
		uintptr(unsafe.Pointer(&reply[0])),
		uintptr(len(reply)),
	)
	if ret == 0 {
		return winErrorToError(errnoCode(err))
	}
	return nil
}

// icmp6ParseReplies is the IPv6 counterpart of icmpParseReplies.
func icmp6ParseReplies(reply []byte) error {
	ret, _, err := procIcmp6ParseReplies.Call(
		uintptr(unsafe.Pointer(&reply[0])),
		uintptr(len(reply)),
	)
	if ret == 0 {
		return winErrorToError(errnoCode(err))
	}
	return nil
}

func errnoCode(err error) uint32 {
	if errno, ok := err.(syscall.Errno); ok {
		return uint32(errno)
	}
	return 0
}

func errnoToError(err error) error {
	if code := errnoCode(err); code != 0 {
		return winErrorToError(code)
	}
	return err
}
