package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []Frame{
		{Version: 0, Type: Data, Flags: SYN, StreamID: 1, Length: 128},
		{Version: 0, Type: WindowUpdate, Flags: ACK, StreamID: 2, Length: 0},
		{Version: 0, Type: Ping, Flags: SYN, StreamID: 0, Length: 42},
		{Version: 0, Type: GoAway, Flags: 0, StreamID: 0, Length: 1},
		{Version: 0, Type: Data, Flags: FIN | RST, StreamID: 0xFFFFFFFF, Length: 0xFFFFFFFF},
	}
	for _, f := range cases {
		got, err := Decode(Encode(f))
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
}

func TestDecodeShort(t *testing.T) {
	_, err := Decode(make([]byte, 4))
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestDecodeUnknownVersion(t *testing.T) {
	buf := Encode(Frame{Version: 0, Type: Data, StreamID: 1})
	buf[0] = 9
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrUnknownVersion)
}
