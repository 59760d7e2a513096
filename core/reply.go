package core

import (
	"encoding/binary"
	"net"
	"time"
	"unsafe"
)

// Mirrors of the iphlpapi reply structures (ipexport.h). The decoder never
// dereferences driver memory through these types; it reads the buffer at
// offsets taken with unsafe.Offsetof, so a short buffer can never cause an
// out-of-bounds access.

type ipOptionInformation struct {
	TTL         uint8
	TOS         uint8
	Flags       uint8
	OptionsSize uint8
	OptionsData uintptr
}

// icmpEchoReply matches ICMP_ECHO_REPLY at the native pointer width. The
// blocking IcmpSendEcho path fills the buffer with this layout.
type icmpEchoReply struct {
	Address       uint32
	Status        uint32
	RoundTripTime uint32
	DataSize      uint16
	Reserved      uint16
	Data          uintptr
	Options       ipOptionInformation
}

type ipOptionInformation32 struct {
	TTL         uint8
	TOS         uint8
	Flags       uint8
	OptionsSize uint8
	OptionsData uint32
}

// icmpEchoReply32 matches ICMP_ECHO_REPLY32. IcmpParseReplies rewrites the
// reply buffer to this layout in 64-bit processes, but leaves the echoed
// payload where the driver put it, after a native-width ICMP_ECHO_REPLY.
type icmpEchoReply32 struct {
	Address       uint32
	Status        uint32
	RoundTripTime uint32
	DataSize      uint16
	Reserved      uint16
	Data          uint32
	Options       ipOptionInformation32
}

// ipv6AddressEx matches IPV6_ADDRESS_EX (packed to 4-byte boundaries, which
// is also the natural Go layout here).
type ipv6AddressEx struct {
	Port     uint16
	FlowInfo uint32
	Addr     [8]uint16
	ScopeID  uint32
}

// icmpv6EchoReply matches ICMPV6_ECHO_REPLY.
type icmpv6EchoReply struct {
	Address       ipv6AddressEx
	Status        uint32
	RoundTripTime uint32
}

const (
	sizeofEchoReply   = int(unsafe.Sizeof(icmpEchoReply{}))
	sizeofEchoReply32 = int(unsafe.Sizeof(icmpEchoReply32{}))
	sizeofEchoReply6  = int(unsafe.Sizeof(icmpv6EchoReply{}))

	offReply4Status   = int(unsafe.Offsetof(icmpEchoReply{}.Status))
	offReply4RTT      = int(unsafe.Offsetof(icmpEchoReply{}.RoundTripTime))
	offReply4DataSize = int(unsafe.Offsetof(icmpEchoReply{}.DataSize))
	offReply4TTL      = int(unsafe.Offsetof(icmpEchoReply{}.Options) +
		unsafe.Offsetof(ipOptionInformation{}.TTL))
	offReply32TTL = int(unsafe.Offsetof(icmpEchoReply32{}.Options) +
		unsafe.Offsetof(ipOptionInformation32{}.TTL))

	offReply6Status = int(unsafe.Offsetof(icmpv6EchoReply{}.Status))
	offReply6RTT    = int(unsafe.Offsetof(icmpv6EchoReply{}.RoundTripTime))
	offReply6Addr   = int(unsafe.Offsetof(icmpv6EchoReply{}.Address) +
		unsafe.Offsetof(ipv6AddressEx{}.Addr))

	// replyErrorSpace is room the driver may need past the reply struct:
	// an ICMP error (8 bytes) plus an IO_STATUS_BLOCK (up to 16 bytes).
	replyErrorSpace = 8 + 16
)

// MinSlotCapacity is the smallest reply buffer that can hold a zero-payload
// reply for either address family.
func MinSlotCapacity() int {
	hdr := sizeofEchoReply
	if sizeofEchoReply6 > hdr {
		hdr = sizeofEchoReply6
	}
	return hdr + replyErrorSpace
}

// replyBufferSize is the reply region a request with the given payload
// needs, per family.
func replyBufferSize(family Family, payloadLen int) int {
	hdr := sizeofEchoReply
	if family == FamilyV6 {
		hdr = sizeofEchoReply6
	}
	return hdr + replyErrorSpace + payloadLen
}

// EchoReply is the decoded outcome of one successful echo request. It is
// immutable once produced and carries no reference into the reply buffer.
type EchoReply struct {
	// From is the address the reply came from.
	From Address

	// RTT is the round-trip time as reported by the driver, in whole
	// milliseconds.
	RTT time.Duration

	// TTL is the IP Time to Live of the reply. The v6 reply structure does
	// not carry one, so it is zero for IPv6 targets.
	TTL uint8

	// Data is the echoed payload, copied out of the reply buffer.
	Data []byte
}

// decodeReply interprets the bytes the driver wrote into a reply buffer.
// parsed selects the ICMP_ECHO_REPLY32 field layout left behind by
// IcmpParseReplies in 64-bit processes; reqLen is the request payload length,
// which the v6 reply does not record on its own.
func decodeReply(buf []byte, family Family, parsed bool, reqLen int) (*EchoReply, error) {
	if family == FamilyV6 {
		return decodeReply6(buf, reqLen)
	}
	return decodeReply4(buf, parsed)
}

func decodeReply4(buf []byte, parsed bool) (*EchoReply, error) {
	hdrSize, ttlOff := sizeofEchoReply, offReply4TTL
	if parsed {
		hdrSize, ttlOff = sizeofEchoReply32, offReply32TTL
	}
	if len(buf) < hdrSize {
		return nil, ErrMalformedReply
	}

	// Status, RTT and DataSize share offsets between the two layouts.
	status := binary.LittleEndian.Uint32(buf[offReply4Status:])
	if status != ipSuccess {
		return nil, statusToError(status)
	}

	dataSize := int(binary.LittleEndian.Uint16(buf[offReply4DataSize:]))

	// The payload sits after a native-width ICMP_ECHO_REPLY regardless of
	// whether IcmpParseReplies shrank the header fields.
	if sizeofEchoReply+dataSize > len(buf) {
		return nil, ErrMalformedReply
	}

	data := make([]byte, dataSize)
	copy(data, buf[sizeofEchoReply:sizeofEchoReply+dataSize])

	from, err := AddressFromIP(net.IPv4(buf[0], buf[1], buf[2], buf[3]))
	if err != nil {
		return nil, ErrMalformedReply
	}

	return &EchoReply{
		From: from,
		RTT:  time.Duration(binary.LittleEndian.Uint32(buf[offReply4RTT:])) * time.Millisecond,
		TTL:  buf[ttlOff],
		Data: data,
	}, nil
}

func decodeReply6(buf []byte, reqLen int) (*EchoReply, error) {
	if len(buf) < sizeofEchoReply6 {
		return nil, ErrMalformedReply
	}

	status := binary.LittleEndian.Uint32(buf[offReply6Status:])
	if status != ipSuccess {
		return nil, statusToError(status)
	}

	// The v6 reply does not carry a payload length; the driver echoes
	// exactly what was sent, right after the reply structure.
	if reqLen < 0 || sizeofEchoReply6+reqLen > len(buf) {
		return nil, ErrMalformedReply
	}

	data := make([]byte, reqLen)
	copy(data, buf[sizeofEchoReply6:sizeofEchoReply6+reqLen])

	ip := make(net.IP, net.IPv6len)
	copy(ip, buf[offReply6Addr:offReply6Addr+net.IPv6len])
	from, err := AddressFromIP(ip)
	if err != nil {
		return nil, ErrMalformedReply
	}

	return &EchoReply{
		From: from,
		RTT:  time.Duration(binary.LittleEndian.Uint32(buf[offReply6RTT:])) * time.Millisecond,
		Data: data,
	}, nil
}
