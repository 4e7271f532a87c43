package orderid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestID_RoundTrip(t *testing.T) {
	at := time.Date(2024, 11, 14, 22, 13, 20, 0, time.UTC)
	id := New(7, 1700000000123, at)

	raw := id.Bytes()
	require.Len(t, raw, 16)

	decoded, err := FromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(7), decoded.Asset)
	require.Equal(t, uint64(1700000000123), decoded.Nonce)
	// CreatedAt survives at day granularity only.
	require.True(t, decoded.CreatedAt.Equal(at.Truncate(24*time.Hour)),
		"got %s", decoded.CreatedAt)
}

func TestID_HexRoundTrip(t *testing.T) {
	id := New(1, 42, time.Unix(0, 0))

	h := id.Hex()
	require.Len(t, h, 2+32)
	require.Equal(t, h, id.String())

	decoded, err := FromHexString(h)
	require.NoError(t, err)
	require.Equal(t, id.Asset, decoded.Asset)
	require.Equal(t, id.Nonce, decoded.Nonce)

	// The prefix is optional on the way in.
	decoded, err = FromHexString(h[2:])
	require.NoError(t, err)
	require.Equal(t, id.Nonce, decoded.Nonce)
}

func TestFromBytes_Errors(t *testing.T) {
	_, err := FromBytes(make([]byte, 15))
	require.ErrorIs(t, err, ErrBadLength)

	raw := New(3, 99, time.Now()).Bytes()
	raw[5] ^= 0xff
	_, err = FromBytes(raw)
	require.ErrorIs(t, err, ErrIncorrectChecksum)
}

func TestFromHexString_Errors(t *testing.T) {
	_, err := FromHexString("0xzz")
	require.Error(t, err)

	_, err = FromHexString("0xdeadbeef")
	require.ErrorIs(t, err, ErrBadLength)
}
