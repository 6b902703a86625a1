package pathfinding

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

func TestMakeIOUSignsForSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)
	receiver := primitives.Address{0x02}
	oneToN := primitives.Address{0x03}

	iou, err := MakeIOU(key, sender, receiver, oneToN, primitives.NewU256(1), 100, 500, big.NewInt(1000))
	if err != nil {
		t.Fatalf("MakeIOU: %v", err)
	}
	if iou.ExpirationBlock.Int64() != 600 {
		t.Fatalf("ExpirationBlock = %d, want 600", iou.ExpirationBlock.Int64())
	}

	ok, err := Verify(iou)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("Verify returned false for a freshly signed IOU")
	}
}

func TestVerifyRejectsTamperedAmount(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	iou, err := MakeIOU(key, sender, primitives.Address{0x02}, primitives.Address{0x03}, primitives.NewU256(1), 100, 500, big.NewInt(1000))
	if err != nil {
		t.Fatalf("MakeIOU: %v", err)
	}

	iou.Amount = big.NewInt(999999)
	ok, err := Verify(iou)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("Verify accepted an IOU whose amount was modified after signing")
	}
}

func TestUpdateIOUAccumulatesAndResigns(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	iou, err := MakeIOU(key, sender, primitives.Address{0x02}, primitives.Address{0x03}, primitives.NewU256(1), 100, 500, big.NewInt(1000))
	if err != nil {
		t.Fatalf("MakeIOU: %v", err)
	}
	firstSig := append([]byte{}, iou.Signature...)

	if err := UpdateIOU(key, iou, big.NewInt(500), nil); err != nil {
		t.Fatalf("UpdateIOU: %v", err)
	}

	if iou.Amount.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("Amount after update = %s, want 1500", iou.Amount.String())
	}
	if string(iou.Signature) == string(firstSig) {
		t.Fatalf("UpdateIOU did not produce a fresh signature over the new amount")
	}

	ok, err := Verify(iou)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("Verify rejected the re-signed, updated IOU")
	}
}

func TestRequestAuthSignatureDeterministicPerTimestamp(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)
	receiver := primitives.Address{0x02}
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sig1, err := RequestAuthSignature(key, sender, receiver, ts)
	if err != nil {
		t.Fatalf("RequestAuthSignature: %v", err)
	}
	sig2, err := RequestAuthSignature(key, sender, receiver, ts)
	if err != nil {
		t.Fatalf("RequestAuthSignature: %v", err)
	}
	if string(sig1) != string(sig2) {
		t.Fatalf("RequestAuthSignature not deterministic for identical timestamp")
	}

	sig3, err := RequestAuthSignature(key, sender, receiver, ts.Add(time.Second))
	if err != nil {
		t.Fatalf("RequestAuthSignature: %v", err)
	}
	if string(sig1) == string(sig3) {
		t.Fatalf("RequestAuthSignature did not change with timestamp")
	}
}
