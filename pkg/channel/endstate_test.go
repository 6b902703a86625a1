package channel

import (
	"math/big"
	"testing"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

func TestPendingLocksAddIsIdempotentByContent(t *testing.T) {
	p := NewPendingLocks()
	secretHash := primitives.Keccak256([]byte("secret"))
	l := NewLock(big.NewInt(10), big.NewInt(100), secretHash)

	if !p.Add(l) {
		t.Fatalf("first Add of a fresh lock returned false")
	}
	if p.Add(l) {
		t.Fatalf("second Add of the same secrethash returned true, want idempotent no-op")
	}
	if len(p.Locks()) != 1 {
		t.Fatalf("Locks() has %d entries, want 1", len(p.Locks()))
	}
}

func TestPendingLocksAmountSumsAllLocks(t *testing.T) {
	p := NewPendingLocks()
	p.Add(NewLock(big.NewInt(10), big.NewInt(100), primitives.Keccak256([]byte("a"))))
	p.Add(NewLock(big.NewInt(25), big.NewInt(200), primitives.Keccak256([]byte("b"))))

	if p.Amount().Cmp(big.NewInt(35)) != 0 {
		t.Fatalf("Amount() = %s, want 35", p.Amount().String())
	}
}

func TestPendingLocksLocksrootOrderSensitive(t *testing.T) {
	a := NewLock(big.NewInt(10), big.NewInt(100), primitives.Keccak256([]byte("a")))
	b := NewLock(big.NewInt(25), big.NewInt(200), primitives.Keccak256([]byte("b")))

	p1 := NewPendingLocks()
	p1.Add(a)
	p1.Add(b)

	p2 := NewPendingLocks()
	p2.Add(b)
	p2.Add(a)

	if p1.Locksroot() == p2.Locksroot() {
		t.Fatalf("Locksroot identical despite different insertion order")
	}

	p3 := NewPendingLocks()
	p3.Add(a)
	p3.Add(b)
	if p1.Locksroot() != p3.Locksroot() {
		t.Fatalf("Locksroot not deterministic for identical insertion order")
	}
}

func TestPendingLocksRemove(t *testing.T) {
	p := NewPendingLocks()
	secretHash := primitives.Keccak256([]byte("secret"))
	l := NewLock(big.NewInt(10), big.NewInt(100), secretHash)
	p.Add(l)

	if !p.Remove(secretHash) {
		t.Fatalf("Remove of present lock returned false")
	}
	if p.Remove(secretHash) {
		t.Fatalf("Remove of already-removed lock returned true")
	}
	if len(p.Locks()) != 0 {
		t.Fatalf("Locks() non-empty after removing the only lock")
	}
}

func TestPendingLocksCloneIsIndependent(t *testing.T) {
	p := NewPendingLocks()
	p.Add(NewLock(big.NewInt(10), big.NewInt(100), primitives.Keccak256([]byte("a"))))

	clone := p.Clone()
	clone.Add(NewLock(big.NewInt(99), big.NewInt(100), primitives.Keccak256([]byte("b"))))

	if len(p.Locks()) != 1 {
		t.Fatalf("mutating a clone affected the original: %d locks", len(p.Locks()))
	}
	if len(clone.Locks()) != 2 {
		t.Fatalf("clone has %d locks, want 2", len(clone.Locks()))
	}
}

func TestEndStateNextNonceIsPreviousPlusOne(t *testing.T) {
	e := NewEndState(primitives.Address{0x01})
	if e.NextNonce().Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("NextNonce on a fresh end-state = %s, want 1", e.NextNonce().String())
	}
	e.Nonce = big.NewInt(5)
	if e.NextNonce().Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("NextNonce = %s, want 6", e.NextNonce().String())
	}
}

func TestEndStateTotalWithdrawIsMaxOfOffchainAndOnchain(t *testing.T) {
	e := NewEndState(primitives.Address{0x01})
	e.OnchainTotalWithdraw = big.NewInt(50)
	e.WithdrawsPending["30"] = &PendingWithdraw{TotalWithdraw: big.NewInt(30), Expiration: big.NewInt(10), Nonce: big.NewInt(1)}

	if e.TotalWithdraw().Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("TotalWithdraw() = %s, want 50 (onchain > offchain)", e.TotalWithdraw().String())
	}

	e.WithdrawsPending["80"] = &PendingWithdraw{TotalWithdraw: big.NewInt(80), Expiration: big.NewInt(10), Nonce: big.NewInt(2)}
	if e.TotalWithdraw().Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("TotalWithdraw() = %s, want 80 (offchain > onchain)", e.TotalWithdraw().String())
	}
}

func TestEndStateDistributableAccountsForBothSidesWithdraw(t *testing.T) {
	ours := NewEndState(primitives.Address{0x01})
	ours.ContractBalance = big.NewInt(1000)
	partner := NewEndState(primitives.Address{0x02})
	partner.OnchainTotalWithdraw = big.NewInt(100)

	d := ours.Distributable(partner)
	if d.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("Distributable() = %s, want 900", d.String())
	}

	ours.PendingLocks.Add(NewLock(big.NewInt(200), big.NewInt(10), primitives.Keccak256([]byte("lock"))))
	d2 := ours.Distributable(partner)
	if d2.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("Distributable() after locking 200 = %s, want 700", d2.String())
	}
}

func TestEndStateDistributableNeverNegative(t *testing.T) {
	ours := NewEndState(primitives.Address{0x01})
	ours.ContractBalance = big.NewInt(10)
	partner := NewEndState(primitives.Address{0x02})
	partner.OnchainTotalWithdraw = big.NewInt(1000)

	d := ours.Distributable(partner)
	if d.Sign() != 0 {
		t.Fatalf("Distributable() = %s, want 0 when partner's withdraw exceeds our balance", d.String())
	}
}

func TestRegisterSecretOffchainMovesLockAndIsIdempotent(t *testing.T) {
	e := NewEndState(primitives.Address{0x01})
	secret := primitives.Keccak256([]byte("my-secret"))
	secretHash := primitives.Keccak256(secret.Bytes())
	lock := NewLock(big.NewInt(10), big.NewInt(100), secretHash)
	e.SecretHashesToLockedLocks.Add(lock)

	if !e.RegisterSecretOffchain(secret) {
		t.Fatalf("RegisterSecretOffchain returned false for a genuinely locked secret")
	}
	if e.SecretHashesToLockedLocks.Get(secretHash) != nil {
		t.Fatalf("lock still present in locked set after registering its secret")
	}
	if e.SecretHashesToUnlockedLocks.Get(secretHash) == nil {
		t.Fatalf("lock not moved into the unlocked set")
	}
	if e.Secrets[secretHash] != secret {
		t.Fatalf("secret not recorded under its secrethash")
	}

	if !e.RegisterSecretOffchain(secret) {
		t.Fatalf("RegisterSecretOffchain on an already-unlocked secret should stay idempotent (true), got false")
	}
}

func TestRegisterSecretOffchainUnknownSecretIsNoop(t *testing.T) {
	e := NewEndState(primitives.Address{0x01})
	unknown := primitives.Keccak256([]byte("never locked"))
	if e.RegisterSecretOffchain(unknown) {
		t.Fatalf("RegisterSecretOffchain returned true for a secret that was never locked")
	}
}
