package core

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthesizeReply4 builds the byte image the driver leaves behind after a
// successful IPv4 echo: the reply structure followed by the echoed payload.
func synthesizeReply4(status uint32, rttMs uint32, ttl uint8, payload []byte, parsed bool) []byte {
	buf := make([]byte, sizeofEchoReply+len(payload))

	buf[0], buf[1], buf[2], buf[3] = 127, 0, 0, 1
	binary.LittleEndian.PutUint32(buf[offReply4Status:], status)
	binary.LittleEndian.PutUint32(buf[offReply4RTT:], rttMs)
	binary.LittleEndian.PutUint16(buf[offReply4DataSize:], uint16(len(payload)))
	if parsed {
		buf[offReply32TTL] = ttl
	} else {
		buf[offReply4TTL] = ttl
	}

	// The payload sits after the native-width struct in both layouts.
	copy(buf[sizeofEchoReply:], payload)
	return buf
}

func synthesizeReply6(status uint32, rttMs uint32, payload []byte) []byte {
	buf := make([]byte, sizeofEchoReply6+len(payload))

	// ::1
	buf[offReply6Addr+15] = 1
	binary.LittleEndian.PutUint32(buf[offReply6Status:], status)
	binary.LittleEndian.PutUint32(buf[offReply6RTT:], rttMs)

	copy(buf[sizeofEchoReply6:], payload)
	return buf
}

func TestDecodeReply4Success(t *testing.T) {
	payload := []byte("hello echo")
	buf := synthesizeReply4(ipSuccess, 23, 57, payload, false)

	reply, err := decodeReply(buf, FamilyV4, false, len(payload))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", reply.From.String())
	assert.Equal(t, 23*time.Millisecond, reply.RTT)
	assert.Equal(t, uint8(57), reply.TTL)
	assert.Equal(t, payload, reply.Data)
}

func TestDecodeReply4ParsedLayout(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := synthesizeReply4(ipSuccess, 1, 128, payload, true)

	reply, err := decodeReply(buf, FamilyV4, true, len(payload))
	require.NoError(t, err)
	assert.Equal(t, uint8(128), reply.TTL)
	assert.Equal(t, payload, reply.Data)
}

func TestDecodeReply4EmptyPayload(t *testing.T) {
	buf := synthesizeReply4(ipSuccess, 0, 64, nil, false)

	reply, err := decodeReply(buf, FamilyV4, false, 0)
	require.NoError(t, err)
	assert.Empty(t, reply.Data)
}

func TestDecodeReply4PayloadRoundTripLength(t *testing.T) {
	for _, n := range []int{1, 32, 255} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		buf := synthesizeReply4(ipSuccess, 5, 64, payload, false)

		reply, err := decodeReply(buf, FamilyV4, false, n)
		require.NoError(t, err)
		assert.Len(t, reply.Data, n)
		assert.Equal(t, payload, reply.Data)
	}
}

func TestDecodeReply4CopiesPayloadOut(t *testing.T) {
	payload := []byte{1, 2, 3}
	buf := synthesizeReply4(ipSuccess, 5, 64, payload, false)

	reply, err := decodeReply(buf, FamilyV4, false, len(payload))
	require.NoError(t, err)

	// Scribbling over the reply buffer must not change the decoded result.
	for i := range buf {
		buf[i] = 0xff
	}
	assert.Equal(t, payload, reply.Data)
}

func TestDecodeReply4ShortBuffer(t *testing.T) {
	_, err := decodeReply(make([]byte, 10), FamilyV4, false, 0)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeReply4EmptyBuffer(t *testing.T) {
	_, err := decodeReply(nil, FamilyV4, false, 0)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeReply4DataSizeOverrun(t *testing.T) {
	buf := synthesizeReply4(ipSuccess, 1, 64, []byte("abc"), false)
	// Claim more payload than the buffer holds.
	binary.LittleEndian.PutUint16(buf[offReply4DataSize:], uint16(len(buf)))

	_, err := decodeReply(buf, FamilyV4, false, 3)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeReply4Timeout(t *testing.T) {
	buf := synthesizeReply4(ipReqTimedOut, 0, 0, nil, false)

	_, err := decodeReply(buf, FamilyV4, false, 0)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecodeReply4Unreachable(t *testing.T) {
	buf := synthesizeReply4(ipDestHostUnreachable, 0, 0, nil, false)

	_, err := decodeReply(buf, FamilyV4, false, 0)
	var unreach *UnreachableError
	require.ErrorAs(t, err, &unreach)
	assert.Equal(t, uint32(ipDestHostUnreachable), unreach.Code)
}

func TestDecodeReply6Success(t *testing.T) {
	payload := []byte("sixth sense")
	buf := synthesizeReply6(ipSuccess, 7, payload)

	reply, err := decodeReply(buf, FamilyV6, true, len(payload))
	require.NoError(t, err)
	assert.Equal(t, "::1", reply.From.String())
	assert.Equal(t, 7*time.Millisecond, reply.RTT)
	assert.Equal(t, uint8(0), reply.TTL)
	assert.Equal(t, payload, reply.Data)
}

func TestDecodeReply6ShortBuffer(t *testing.T) {
	_, err := decodeReply(make([]byte, sizeofEchoReply6-1), FamilyV6, true, 0)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeReply6RequestLengthOverrun(t *testing.T) {
	buf := synthesizeReply6(ipSuccess, 1, []byte("ab"))

	_, err := decodeReply(buf, FamilyV6, true, 1000)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeReply6Timeout(t *testing.T) {
	buf := synthesizeReply6(ipReqTimedOut, 0, nil)

	_, err := decodeReply(buf, FamilyV6, true, 0)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMinSlotCapacityCoversBothFamilies(t *testing.T) {
	min := MinSlotCapacity()
	assert.GreaterOrEqual(t, min, sizeofEchoReply+replyErrorSpace)
	assert.GreaterOrEqual(t, min, sizeofEchoReply6+replyErrorSpace)
}

func TestReplyBufferSizeGrowsWithPayload(t *testing.T) {
	base := replyBufferSize(FamilyV4, 0)
	assert.Equal(t, base+100, replyBufferSize(FamilyV4, 100))
	assert.Equal(t, sizeofEchoReply6+replyErrorSpace, replyBufferSize(FamilyV6, 0))
}
