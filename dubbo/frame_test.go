package dubbo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRequestHeaderLayout(t *testing.T) {
	h := EncodeRequestHeader(7, 42)
	require.Len(t, h, HeaderLength)
	require.Equal(t, []byte{0xDA, 0xBB, 0xC2, 0x00}, h[:4])
	require.Equal(t, int64(7), int64(h[4])<<56|int64(h[5])<<48|int64(h[6])<<40|int64(h[7])<<32|
		int64(h[8])<<24|int64(h[9])<<16|int64(h[10])<<8|int64(h[11]))
	require.Equal(t, int32(42), int32(h[12])<<24|int32(h[13])<<16|int32(h[14])<<8|int32(h[15]))
}

func TestParseHeaderRoundTrip(t *testing.T) {
	h := EncodeRequestHeader(123, 10)
	parsed, err := ParseHeader(h)
	require.NoError(t, err)
	require.Equal(t, KindNormalResponse, parsed.Kind)
	require.Equal(t, int64(123), parsed.InvocationID)
	require.Equal(t, int32(10), parsed.BodyLength)
}

func TestParseHeaderHeartbeatRequest(t *testing.T) {
	h := EncodeHeartbeatRequest(5)
	parsed, err := ParseHeader(h)
	require.NoError(t, err)
	require.Equal(t, KindHeartbeatRequest, parsed.Kind)
	require.Equal(t, int64(5), parsed.InvocationID)
	require.Equal(t, int32(0), parsed.BodyLength)
}

func TestParseHeaderHeartbeatResponse(t *testing.T) {
	frame := EncodeHeartbeatResponse(9)
	parsed, err := ParseHeader(frame[:HeaderLength])
	require.NoError(t, err)
	require.Equal(t, KindHeartbeatResponse, parsed.Kind)
	require.Equal(t, int32(1), parsed.BodyLength)
	require.Equal(t, byte('N'), frame[HeaderLength])
}

func TestParseHeaderBadMagic(t *testing.T) {
	h := EncodeRequestHeader(1, 0)
	h[0] = 0x00
	_, err := ParseHeader(h)
	require.Error(t, err)
}

func TestParseHeaderWrongLength(t *testing.T) {
	_, err := ParseHeader([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseHeaderNegativeBodyLength(t *testing.T) {
	h := EncodeRequestHeader(1, 0)
	h[2] = Hessian2 // response, not heartbeat
	binary.BigEndian.PutUint32(h[12:16], uint32(-1))
	_, err := ParseHeader(h)
	require.Error(t, err)
}

func TestParseHeaderNonOKStatus(t *testing.T) {
	h := EncodeRequestHeader(1, 0)
	h[2] = Hessian2 // response, not heartbeat, not request
	h[3] = StatusServiceNotFound
	parsed, err := ParseHeader(h)
	require.NoError(t, err)
	require.Equal(t, KindNormalResponse, parsed.Kind)
	require.Equal(t, byte(StatusServiceNotFound), parsed.Status)
}
