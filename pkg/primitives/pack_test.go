package primitives

import "testing"

func testCanonicalIdentifier() CanonicalIdentifier {
	return CanonicalIdentifier{
		ChainID:             NewU256(1),
		TokenNetworkAddress: Address{0xAB},
		ChannelIdentifier:   NewU256(42),
	}
}

func TestPackBalanceProofDeterministicLength(t *testing.T) {
	ci := testCanonicalIdentifier()
	balanceHash := Keccak256([]byte("balance"))
	additionalHash := Keccak256([]byte("additional"))

	out := PackBalanceProof(NewU256(7), balanceHash, additionalHash, ci, MessageTypeIDBalanceProof)

	// token network (32) + chain id (32) + msg type (1) + channel id (32)
	// + nonce (32) + balance hash (32) + additional hash (32)
	want := 32 + 32 + 1 + 32 + 32 + 32 + 32
	if len(out) != want {
		t.Fatalf("PackBalanceProof length = %d, want %d", len(out), want)
	}

	out2 := PackBalanceProof(NewU256(7), balanceHash, additionalHash, ci, MessageTypeIDBalanceProof)
	if string(out) != string(out2) {
		t.Fatalf("PackBalanceProof not deterministic across identical inputs")
	}
}

func TestPackBalanceProofVariesWithMsgType(t *testing.T) {
	ci := testCanonicalIdentifier()
	balanceHash := Keccak256([]byte("balance"))
	additionalHash := Keccak256([]byte("additional"))

	a := PackBalanceProof(NewU256(7), balanceHash, additionalHash, ci, MessageTypeIDBalanceProof)
	b := PackBalanceProof(NewU256(7), balanceHash, additionalHash, ci, MessageTypeIDBalanceProofUpdate)
	if string(a) == string(b) {
		t.Fatalf("PackBalanceProof produced identical bytes for different message type ids")
	}
}

func TestPackBalanceProofMessageAppendsSignature(t *testing.T) {
	ci := testCanonicalIdentifier()
	balanceHash := Keccak256([]byte("balance"))
	additionalHash := Keccak256([]byte("additional"))
	sig := []byte{1, 2, 3, 4}

	base := PackBalanceProof(NewU256(7), balanceHash, additionalHash, ci, MessageTypeIDBalanceProof)
	withSig := PackBalanceProofMessage(NewU256(7), balanceHash, additionalHash, ci, MessageTypeIDBalanceProof, sig)

	if len(withSig) != len(base)+len(sig) {
		t.Fatalf("PackBalanceProofMessage length = %d, want %d", len(withSig), len(base)+len(sig))
	}
	if string(withSig[:len(base)]) != string(base) {
		t.Fatalf("PackBalanceProofMessage prefix does not match PackBalanceProof")
	}
	if string(withSig[len(base):]) != string(sig) {
		t.Fatalf("PackBalanceProofMessage did not append the partner signature verbatim")
	}
}

func TestPackWithdrawUsesFixedMessageType(t *testing.T) {
	ci := testCanonicalIdentifier()
	participant := Address{0xCD}

	out := PackWithdraw(ci, participant, NewU256(10), NewU256(100))
	want := 32 + 32 + 1 + 32 + 32 + 32 + 32
	if len(out) != want {
		t.Fatalf("PackWithdraw length = %d, want %d", len(out), want)
	}

	msgTypeOffset := 32 + 32
	if MessageTypeID(out[msgTypeOffset]) != MessageTypeIDWithdraw {
		t.Fatalf("PackWithdraw message type byte = %d, want %d", out[msgTypeOffset], MessageTypeIDWithdraw)
	}
}

func TestPackLockDeterministicAndDistinct(t *testing.T) {
	secretHash := Keccak256([]byte("secret"))

	a := PackLock(NewU256(100), NewU256(5), secretHash)
	b := PackLock(NewU256(100), NewU256(5), secretHash)
	if string(a) != string(b) {
		t.Fatalf("PackLock not deterministic")
	}

	c := PackLock(NewU256(101), NewU256(5), secretHash)
	if string(a) == string(c) {
		t.Fatalf("PackLock did not change with expiration")
	}

	wantLen := 32 + 32 + 32
	if len(a) != wantLen {
		t.Fatalf("PackLock length = %d, want %d", len(a), wantLen)
	}
}

func TestCanonicalIdentifierEqualAndKey(t *testing.T) {
	a := testCanonicalIdentifier()
	b := testCanonicalIdentifier()
	if !a.Equal(b) {
		t.Fatalf("identical canonical identifiers not Equal")
	}
	if a.Key() != b.Key() {
		t.Fatalf("identical canonical identifiers produced different keys: %q != %q", a.Key(), b.Key())
	}

	c := testCanonicalIdentifier()
	c.ChannelIdentifier = NewU256(43)
	if a.Equal(c) {
		t.Fatalf("canonical identifiers with different channel identifiers reported Equal")
	}
	if a.Key() == c.Key() {
		t.Fatalf("canonical identifiers with different channel identifiers produced the same key")
	}
}
