package core

import (
	"encoding/binary"
	"net"
)

// Family selects the IP address family of an echo conversation.
type Family int

const (
	// FamilyV4 is an IPv4 conversation, served by IcmpCreateFile.
	FamilyV4 Family = iota
	// FamilyV6 is an IPv6 conversation, served by Icmp6CreateFile.
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "ipv6"
	}
	return "ipv4"
}

// Address is a validated echo target, always held in its canonical 4-byte
// (IPv4) or 16-byte (IPv6) form. The zero Address is not valid; construct
// one through ParseAddress or AddressFromIP.
type Address struct {
	ip net.IP
	v4 bool
}

// ParseAddress validates a textual IP address. Hostname resolution is the
// caller's job.
func ParseAddress(s string) (Address, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return Address{}, ErrInvalidAddress
	}
	return AddressFromIP(ip)
}

// AddressFromIP validates a net.IP. IPv4-mapped IPv6 addresses collapse to
// their 4-byte form.
func AddressFromIP(ip net.IP) (Address, error) {
	if v4 := ip.To4(); v4 != nil {
		return Address{ip: v4, v4: true}, nil
	}
	if v6 := ip.To16(); v6 != nil {
		return Address{ip: v6, v4: false}, nil
	}
	return Address{}, ErrInvalidAddress
}

// IsIPv4 reports whether the address is in the IPv4 family.
func (a Address) IsIPv4() bool {
	return a.v4
}

// Family returns the address family the target belongs to.
func (a Address) Family() Family {
	if a.v4 {
		return FamilyV4
	}
	return FamilyV6
}

// IP returns the underlying address bytes.
func (a Address) IP() net.IP {
	return a.ip
}

// IsValid reports whether the address was produced by a constructor.
func (a Address) IsValid() bool {
	return a.ip != nil
}

func (a Address) String() string {
	if a.ip == nil {
		return "<invalid>"
	}
	return a.ip.String()
}

// v4Arg encodes the address as the in_addr DWORD IcmpSendEcho expects.
// Windows reads it in memory order, so the octets go in little-endian.
func (a Address) v4Arg() uint32 {
	return binary.LittleEndian.Uint32(a.ip)
}
