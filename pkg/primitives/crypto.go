package primitives

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignatureRecovery is returned when recovering a signer address
// fails because the signature's v/s values are out of range, per
// spec §4.1.
var ErrSignatureRecovery = errors.New("primitives: signature recovery failed")

// signaturePrefix is prepended to messages signed with SignMessage, the
// standard Ethereum "personal message" convention.
const signaturePrefix = "\x19Ethereum Signed Message:\n"

// Keccak256 hashes the concatenation of data with keccak-256.
func Keccak256(data ...[]byte) Hash {
	return crypto.Keccak256Hash(data...)
}

// Sign signs the 32-byte digest with the given private key, returning a
// 65-byte r||s||v signature.
func Sign(key *ecdsa.PrivateKey, digest Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("primitives: sign: %w", err)
	}
	return sig, nil
}

// SignMessage signs data after prepending the Ethereum personal-message
// prefix, matching the convention used by wallets and the on-chain
// ecrecover precompile for off-chain message signatures.
func SignMessage(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	digest := hashPersonalMessage(data)
	return Sign(key, digest)
}

func hashPersonalMessage(data []byte) Hash {
	prefixed := fmt.Sprintf("%s%d%s", signaturePrefix, len(data), data)
	return Keccak256([]byte(prefixed))
}

// Recover recovers the signer address from a 65-byte r||s||v signature
// over a raw digest (no personal-message prefix).
func Recover(digest Hash, sig []byte) (Address, error) {
	if len(sig) != 65 {
		return Address{}, ErrSignatureRecovery
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrSignatureRecovery, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverMessage recovers the signer address from a signature produced
// by SignMessage.
func RecoverMessage(data []byte, sig []byte) (Address, error) {
	return Recover(hashPersonalMessage(data), sig)
}

// HashBalanceData computes the balance_hash committed to by a balance
// proof: keccak256 over the 32-byte big-endian concatenation of
// transferred amount, locked amount and locksroot (spec §4.1).
func HashBalanceData(transferred, locked *U256, locksroot Hash) Hash {
	return Keccak256(
		leftPad32(transferred),
		leftPad32(locked),
		locksroot.Bytes(),
	)
}

func leftPad32(v *U256) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
