package orders

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer is the external capability that signs typed data. Implementations
// return the raw 65-byte (r||s||v) signature with v in {27, 28}.
type Signer interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// SignerError wraps a failure of the signer capability; it aborts the
// submission it occurred in.
type SignerError struct {
	Err error
}

func (e *SignerError) Error() string { return fmt.Sprintf("orders: signer: %v", e.Err) }
func (e *SignerError) Unwrap() error { return e.Err }

// LocalWallet signs typed data with an in-process ECDSA key. It exists for
// headless operation; browser-wallet deployments plug their own Signer in.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalWallet parses a hex private key, tolerating a 0x prefix.
func NewLocalWallet(hexKey string) (*LocalWallet, error) {
	key := strings.TrimSpace(hexKey)
	key = strings.TrimPrefix(key, "0x")

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("orders: could not load private key: %w", err)
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("orders: error casting public key to ECDSA")
	}

	return &LocalWallet{
		key:     privateKey,
		address: crypto.PubkeyToAddress(*pub),
	}, nil
}

// Address returns the wallet's account address.
func (w *LocalWallet) Address() common.Address { return w.address }

// SignTypedData hashes data per EIP-712 and signs it, normalizing the
// recovery id to 27/28 as wallets do.
func (w *LocalWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
