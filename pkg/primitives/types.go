// Package primitives holds the addresses, hashes and byte-packing
// helpers shared by every other package in the module.
package primitives

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte account/contract address.
type Address = common.Address

// Hash is a 32-byte digest.
type Hash = common.Hash

// EmptyAddress is the zero address, used as a sentinel for "no partner yet".
var EmptyAddress = Address{}

// EmptyHash is the zero hash, used as a sentinel for "no secret revealed".
var EmptyHash = Hash{}

// U256 is an arbitrary-precision unsigned integer used for amounts,
// nonces and block numbers that may legitimately overflow int64 on the
// on-chain side (token amounts).
type U256 = big.Int

// NewU256 builds a U256 from an int64, the common case for test fixtures
// and locally-computed amounts.
func NewU256(v int64) *U256 {
	return big.NewInt(v)
}

// CanonicalIdentifier is the (chain_id, token_network_address,
// channel_identifier) triple that globally and uniquely identifies a
// channel, per spec §3.
type CanonicalIdentifier struct {
	ChainID             *U256
	TokenNetworkAddress Address
	ChannelIdentifier   *U256
}

// Equal reports whether two canonical identifiers name the same channel.
func (c CanonicalIdentifier) Equal(o CanonicalIdentifier) bool {
	return c.ChainID.Cmp(o.ChainID) == 0 &&
		c.TokenNetworkAddress == o.TokenNetworkAddress &&
		c.ChannelIdentifier.Cmp(o.ChannelIdentifier) == 0
}

// Key returns a value usable as a map key for a CanonicalIdentifier.
func (c CanonicalIdentifier) Key() string {
	return c.ChainID.String() + ":" + c.TokenNetworkAddress.Hex() + ":" + c.ChannelIdentifier.String()
}

// MessageTypeID distinguishes balance-proof signatures across the
// different on-chain/off-chain contexts they're used in (spec §4.1).
type MessageTypeID uint8

const (
	// MessageTypeIDBalanceProof signs a plain balance proof (locked transfer, unlock, lock expired).
	MessageTypeIDBalanceProof MessageTypeID = 1
	// MessageTypeIDWithdraw signs a withdraw request/confirmation.
	MessageTypeIDWithdraw MessageTypeID = 2
	// MessageTypeIDBalanceProofUpdate signs the non-closing balance proof update.
	MessageTypeIDBalanceProofUpdate MessageTypeID = 3
)

// CmdID is the fixed one-byte command identifier prefixing every wire
// message's hashed payload, per spec §6.2.
type CmdID uint8

const (
	CmdIDProcessed             CmdID = 0
	CmdIDSecretRequest         CmdID = 3
	CmdIDUnlock                CmdID = 4
	CmdIDLockedTransfer        CmdID = 7
	CmdIDRevealSecret          CmdID = 11
	CmdIDDelivered             CmdID = 12
	CmdIDLockExpired           CmdID = 13
	CmdIDWithdrawRequest       CmdID = 15
	CmdIDWithdrawConfirmation CmdID = 16
	CmdIDWithdrawExpired       CmdID = 17
)
