package orders

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrBadSignatureLength rejects signer output that is not 65 bytes.
var ErrBadSignatureLength = errors.New("orders: signature must be 65 bytes")

// Signature is the canonical decomposition of a 65-byte typed-data
// signature. R and S are 0x-prefixed 32-byte hex strings, V the recovery id;
// this is the shape the exchange expects on the wire.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// SplitSignature decomposes sig at fixed byte offsets: r is the first 32
// bytes, s the next 32, v the final byte. The layout is a wire contract with
// the signer and the exchange, not a choice.
func SplitSignature(sig []byte) (Signature, error) {
	if len(sig) != 65 {
		return Signature{}, fmt.Errorf("%w: got %d", ErrBadSignatureLength, len(sig))
	}
	return Signature{
		R: hexutil.Encode(sig[0:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64],
	}, nil
}
