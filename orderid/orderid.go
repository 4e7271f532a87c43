// Package orderid generates checksummed correlation ids for order
// submissions, so a submission can be matched across logs, results and the
// state surface.
package orderid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/howeyc/crc16"
)

var (
	ErrBadLength         = errors.New("orderid: want 16 bytes")
	ErrIncorrectChecksum = errors.New("orderid: checksum does not match")
)

// ID identifies one submission attempt.
//
// Its 16-byte encoding is BigEndian throughout:
// 2 bytes days since epoch (UTC), 4 bytes asset index, 8 bytes nonce,
// 2 bytes CRC16 of the preceding bytes.
type ID struct {
	CreatedAt time.Time
	Asset     uint32
	Nonce     uint64
}

// New builds an ID for a submission at the given time.
func New(asset uint32, nonce uint64, at time.Time) ID {
	return ID{CreatedAt: at, Asset: asset, Nonce: nonce}
}

func (id ID) String() string { return id.Hex() }

// Hex returns the 0x-prefixed encoding.
func (id ID) Hex() string {
	return "0x" + hex.EncodeToString(id.Bytes())
}

// Bytes returns the 16-byte encoding. The day granularity of CreatedAt is
// deliberate: it keeps the id compact while still letting old ids be binned
// by date.
func (id ID) Bytes() []byte {
	out := make([]byte, 0, 16)

	days := id.CreatedAt.UTC().Unix() / 86400
	out = binary.BigEndian.AppendUint16(out, uint16(days))
	out = binary.BigEndian.AppendUint32(out, id.Asset)
	out = binary.BigEndian.AppendUint64(out, id.Nonce)
	out = binary.BigEndian.AppendUint16(out, crc16.Checksum(out, crc16.IBMTable))

	return out
}

// FromBytes decodes and verifies a 16-byte id.
func FromBytes(v []byte) (ID, error) {
	if len(v) != 16 {
		return ID{}, ErrBadLength
	}
	if crc16.Checksum(v[0:14], crc16.IBMTable) != binary.BigEndian.Uint16(v[14:16]) {
		return ID{}, ErrIncorrectChecksum
	}

	days := binary.BigEndian.Uint16(v[0:2])
	return ID{
		CreatedAt: time.Unix(int64(days)*86400, 0).UTC(),
		Asset:     binary.BigEndian.Uint32(v[2:6]),
		Nonce:     binary.BigEndian.Uint64(v[6:14]),
	}, nil
}

// FromHexString decodes an id from hex, tolerating a 0x prefix.
func FromHexString(s string) (ID, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("orderid: decode hex: %w", err)
	}
	return FromBytes(b)
}
