package ledger

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs transactions with an in-memory secp256k1 private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Compile-time check that KeySigner implements Signer.
var _ Signer = (*KeySigner)(nil)

// NewKeySigner wraps an already-decrypted private key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// SignerFromHex builds a signer from a hex-encoded private key, with or
// without a 0x prefix. Intended for service configuration, not end users.
func SignerFromHex(hexKey string) (*KeySigner, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// SignerFromKeystore decrypts a go-ethereum keystore file with the given
// passphrase. The decrypted key lives only in process memory.
func SignerFromKeystore(path, passphrase string) (*KeySigner, error) {
	encrypted, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}
	key, err := keystore.DecryptKey(encrypted, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return NewKeySigner(key.PrivateKey), nil
}

// Address returns the account the signer controls.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignerFn returns a bind-compatible signing function for the given chain.
func (s *KeySigner) SignerFn(chainID *big.Int) bind.SignerFn {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return func(common.Address, *types.Transaction) (*types.Transaction, error) {
			return nil, err
		}
	}
	return opts.Signer
}
