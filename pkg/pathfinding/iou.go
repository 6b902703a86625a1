// Package pathfinding implements the signing discipline a node needs
// to pay a pathfinding service (PFS) for routes via one-shot IOUs
// (spec §6.4), grounded on original_source's
// raiden/pathfinding/src/lib.rs (PFS::make_iou/update_iou/
// iou_signature_data). The PFS HTTP JSON API itself stays a documented
// interface per spec's Non-goals on outer transport surfaces; this
// package only covers constructing, signing and verifying the IOU
// envelope and the request-authentication signature.
package pathfinding

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// IOU is a one-shot, accumulating payment promise a node gives a PFS
// in exchange for route queries: sender pays receiver up to amount,
// void after expirationBlock.
type IOU struct {
	Sender           primitives.Address
	Receiver         primitives.Address
	OneToNAddress    primitives.Address
	Amount           *primitives.U256
	ExpirationBlock  *primitives.U256
	ChainID          *primitives.U256
	Signature        []byte
}

// packIOU packs the fields an IOU signature commits to: sender,
// receiver, amount, expiration_block, one_to_n_address, chain_id, each
// as a left-padded 32-byte word except the addresses which are 20
// bytes, mirroring the web3 ABI-packed encoding the Python/Rust
// clients both sign.
func packIOU(iou *IOU) []byte {
	var out []byte
	out = append(out, iou.Sender.Bytes()...)
	out = append(out, iou.Receiver.Bytes()...)
	out = append(out, leftPad32(iou.Amount)...)
	out = append(out, leftPad32(iou.ExpirationBlock)...)
	out = append(out, iou.OneToNAddress.Bytes()...)
	out = append(out, leftPad32(iou.ChainID)...)
	return out
}

func leftPad32(v *primitives.U256) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// Sign computes and attaches the IOU's signature under key, overwriting
// any signature already present.
func Sign(iou *IOU, key *ecdsa.PrivateKey) error {
	digest := primitives.Keccak256(packIOU(iou))
	sig, err := primitives.Sign(key, digest)
	if err != nil {
		return fmt.Errorf("pathfinding: signing iou: %w", err)
	}
	iou.Signature = sig
	return nil
}

// Verify reports whether iou.Signature was produced by iou.Sender.
func Verify(iou *IOU) (bool, error) {
	digest := primitives.Keccak256(packIOU(iou))
	signer, err := primitives.Recover(digest, iou.Signature)
	if err != nil {
		return false, err
	}
	return signer == iou.Sender, nil
}

// MakeIOU builds and signs a fresh IOU for a new PFS payment cycle,
// mirroring PFS::make_iou: expiration_block is the current block plus
// the configured IOU timeout.
func MakeIOU(key *ecdsa.PrivateKey, sender, receiver, oneToNAddress primitives.Address, chainID *primitives.U256, blockNumber int64, iouTimeout int64, fee *big.Int) (*IOU, error) {
	iou := &IOU{
		Sender:          sender,
		Receiver:        receiver,
		OneToNAddress:   oneToNAddress,
		Amount:          new(big.Int).Set(fee),
		ExpirationBlock: big.NewInt(blockNumber + iouTimeout),
		ChainID:         new(big.Int).Set(chainID),
	}
	if err := Sign(iou, key); err != nil {
		return nil, err
	}
	return iou, nil
}

// UpdateIOU adds addedAmount to an existing IOU's accumulated amount
// (optionally bumping its expiration) and re-signs it, mirroring
// PFS::update_iou: a PFS query within the same payment cycle tops up
// the same IOU instead of minting a new one.
func UpdateIOU(key *ecdsa.PrivateKey, iou *IOU, addedAmount *big.Int, newExpirationBlock *primitives.U256) error {
	iou.Amount = new(big.Int).Add(iou.Amount, addedAmount)
	if newExpirationBlock != nil {
		iou.ExpirationBlock = newExpirationBlock
	}
	return Sign(iou, key)
}

// RequestAuthSignature signs the (sender, receiver, timestamp) tuple a
// PFS requires to authenticate a GET for a node's last IOU, mirroring
// PFS::iou_signature_data. The timestamp is signed as its UTC RFC3339
// text (timestamp.UTC().Format(time.RFC3339)), so the PFS must format
// it the same way.
func RequestAuthSignature(key *ecdsa.PrivateKey, sender, receiver primitives.Address, timestamp time.Time) ([]byte, error) {
	data := append(append([]byte{}, sender.Bytes()...), receiver.Bytes()...)
	data = append(data, []byte(timestamp.UTC().Format(time.RFC3339))...)
	digest := primitives.Keccak256(data)
	return primitives.Sign(key, digest)
}
