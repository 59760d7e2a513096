package core

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddressIPv4(t *testing.T) {
	addr, err := ParseAddress("127.0.0.1")
	require.NoError(t, err)
	assert.True(t, addr.IsIPv4())
	assert.Equal(t, FamilyV4, addr.Family())
	assert.Equal(t, "127.0.0.1", addr.String())
	assert.Len(t, addr.IP(), net.IPv4len)
}

func TestParseAddressIPv6(t *testing.T) {
	addr, err := ParseAddress("::1")
	require.NoError(t, err)
	assert.False(t, addr.IsIPv4())
	assert.Equal(t, FamilyV6, addr.Family())
	assert.Equal(t, "::1", addr.String())
	assert.Len(t, addr.IP(), net.IPv6len)
}

func TestParseAddressGarbage(t *testing.T) {
	_, err := ParseAddress("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestParseAddressEmpty(t *testing.T) {
	_, err := ParseAddress("")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressFromIPMappedV4(t *testing.T) {
	addr, err := ParseAddress("::ffff:192.0.2.1")
	require.NoError(t, err)
	assert.True(t, addr.IsIPv4())
	assert.Equal(t, "192.0.2.1", addr.String())
}

func TestAddressFromIPNil(t *testing.T) {
	_, err := AddressFromIP(nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressZeroValueInvalid(t *testing.T) {
	var addr Address
	assert.False(t, addr.IsValid())
	assert.Equal(t, "<invalid>", addr.String())
}

func TestAddressV4ArgMemoryOrder(t *testing.T) {
	addr, err := ParseAddress("127.0.0.1")
	require.NoError(t, err)

	// in_addr is read in memory order, so 127.0.0.1 becomes 0x0100007f.
	assert.Equal(t, uint32(0x0100007f), addr.v4Arg())
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "ipv4", FamilyV4.String())
	assert.Equal(t, "ipv6", FamilyV6.String())
}
