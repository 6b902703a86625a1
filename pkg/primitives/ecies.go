package primitives

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// Encrypt encrypts plaintext to pub using ECIES, for in-band delivery of
// a payment secret to the target node embedded in a locked transfer
// (spec §4.1).
func Encrypt(pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error) {
	eciesPub := ecies.ImportECDSAPublic(pub)
	ct, err := ecies.Encrypt(rngReader(), eciesPub, plaintext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("primitives: ecies encrypt: %w", err)
	}
	return ct, nil
}

// Decrypt reverses Encrypt using the matching private key.
func Decrypt(priv *ecdsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	eciesPriv := ecies.ImportECDSA(priv)
	pt, err := eciesPriv.Decrypt(ciphertext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("primitives: ecies decrypt: %w", err)
	}
	return pt, nil
}
