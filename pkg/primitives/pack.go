package primitives

// Exact byte layouts required for wire/on-chain signature compatibility,
// spec §4.1 and §6.2. These are packed (not ABI-encoded) concatenations:
// every integer is a 32-byte big-endian word, addresses are left-padded
// to 32 bytes, and the message-type id is a single byte placed right
// after the chain id.

// PackBalanceProof packs the fields a balance-proof signature is made
// over: nonce, balance_hash, additional (message) hash, the three parts
// of the canonical identifier, and the message-type discriminator.
func PackBalanceProof(
	nonce *U256,
	balanceHash Hash,
	additionalHash Hash,
	canonicalIdentifier CanonicalIdentifier,
	msgTypeID MessageTypeID,
) []byte {
	var out []byte
	out = append(out, leftPad32(canonicalIdentifier.TokenNetworkAddress.Hash().Big())...)
	out = append(out, leftPad32(canonicalIdentifier.ChainID)...)
	out = append(out, byte(msgTypeID))
	out = append(out, leftPad32(canonicalIdentifier.ChannelIdentifier)...)
	out = append(out, leftPad32(nonce)...)
	out = append(out, balanceHash.Bytes()...)
	out = append(out, additionalHash.Bytes()...)
	return out
}

// PackBalanceProofMessage additionally appends the partner's signature,
// used when a node counter-signs a withdraw confirmation style message
// that itself references an earlier balance-proof signature.
func PackBalanceProofMessage(
	nonce *U256,
	balanceHash Hash,
	additionalHash Hash,
	canonicalIdentifier CanonicalIdentifier,
	msgTypeID MessageTypeID,
	partnerSignature []byte,
) []byte {
	out := PackBalanceProof(nonce, balanceHash, additionalHash, canonicalIdentifier, msgTypeID)
	out = append(out, partnerSignature...)
	return out
}

// PackWithdraw packs the fields a withdraw request/confirmation
// signature is made over.
func PackWithdraw(
	canonicalIdentifier CanonicalIdentifier,
	participant Address,
	totalWithdraw *U256,
	expiration *U256,
) []byte {
	var out []byte
	out = append(out, leftPad32(canonicalIdentifier.TokenNetworkAddress.Hash().Big())...)
	out = append(out, leftPad32(canonicalIdentifier.ChainID)...)
	out = append(out, byte(MessageTypeIDWithdraw))
	out = append(out, leftPad32(canonicalIdentifier.ChannelIdentifier)...)
	out = append(out, leftPad32(participant.Hash().Big())...)
	out = append(out, leftPad32(totalWithdraw)...)
	out = append(out, leftPad32(expiration)...)
	return out
}

// PackLock packs a single hash-time-lock's committed bytes: expiration,
// amount and secrethash, fed into the pending-locks locksroot
// commitment (spec §3 HashTimeLockState).
func PackLock(expiration, amount *U256, secretHash Hash) []byte {
	var out []byte
	out = append(out, leftPad32(expiration)...)
	out = append(out, leftPad32(amount)...)
	out = append(out, secretHash.Bytes()...)
	return out
}
