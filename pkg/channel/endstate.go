// Package channel implements the channel end-state algebra (spec §4.2)
// and the per-channel sub-state-machine (spec §4.3/§4.4).
package channel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

var logger = log.New("module", "channel")

// Lock is a hash-time-locked claim: (amount, expiration, secrethash),
// plus the exact bytes committed to the locksroot (spec §3
// HashTimeLockState).
type Lock struct {
	Amount      *big.Int
	Expiration  *big.Int
	SecretHash  primitives.Hash
	EncodedBytes []byte
}

// NewLock builds a Lock and precomputes its encoded commitment bytes.
func NewLock(amount, expiration *big.Int, secretHash primitives.Hash) *Lock {
	return &Lock{
		Amount:       new(big.Int).Set(amount),
		Expiration:   new(big.Int).Set(expiration),
		SecretHash:   secretHash,
		EncodedBytes: primitives.PackLock(expiration, amount, secretHash),
	}
}

// PendingLocks is an ordered, content-addressed collection of locks not
// yet unlocked or expired. Ordering is insertion order, matching spec
// §3 ("ordered, content-addressed").
type PendingLocks struct {
	order []primitives.Hash
	byKey map[primitives.Hash]*Lock
}

// NewPendingLocks returns an empty lock set.
func NewPendingLocks() *PendingLocks {
	return &PendingLocks{byKey: make(map[primitives.Hash]*Lock)}
}

// Clone returns a deep-enough copy safe to mutate independently; Lock
// values themselves are treated as immutable once constructed so are
// shared, not copied.
func (p *PendingLocks) Clone() *PendingLocks {
	out := NewPendingLocks()
	out.order = append(out.order, p.order...)
	for k, v := range p.byKey {
		out.byKey[k] = v
	}
	return out
}

// Add inserts a lock, returning false if its secrethash is already
// present (content-addressed: adding twice is a no-op, not an error, to
// keep the registration operations idempotent per spec §4.2).
func (p *PendingLocks) Add(l *Lock) bool {
	if _, ok := p.byKey[l.SecretHash]; ok {
		return false
	}
	p.order = append(p.order, l.SecretHash)
	p.byKey[l.SecretHash] = l
	return true
}

// Remove drops a lock by secrethash, returning false if absent.
func (p *PendingLocks) Remove(secretHash primitives.Hash) bool {
	if _, ok := p.byKey[secretHash]; !ok {
		return false
	}
	delete(p.byKey, secretHash)
	for i, h := range p.order {
		if h == secretHash {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the lock for secretHash, or nil if absent.
func (p *PendingLocks) Get(secretHash primitives.Hash) *Lock {
	return p.byKey[secretHash]
}

// Locks returns the locks in insertion order.
func (p *PendingLocks) Locks() []*Lock {
	out := make([]*Lock, 0, len(p.order))
	for _, h := range p.order {
		out = append(out, p.byKey[h])
	}
	return out
}

// Amount sums every pending lock's amount.
func (p *PendingLocks) Amount() *big.Int {
	sum := new(big.Int)
	for _, l := range p.byKey {
		sum.Add(sum, l.Amount)
	}
	return sum
}

// Locksroot computes the keccak commitment over the ordered, encoded
// locks (spec §4.2 compute_locksroot).
func (p *PendingLocks) Locksroot() primitives.Hash {
	var buf []byte
	for _, h := range p.order {
		buf = append(buf, p.byKey[h].EncodedBytes...)
	}
	return primitives.Keccak256(buf)
}

// PendingWithdraw is a not-yet-confirmed total-withdraw amount with its
// signed expiration block.
type PendingWithdraw struct {
	TotalWithdraw *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
}

// BalanceProofState is the signed commitment a partner would use
// on-chain to claim channel funds (spec §3).
type BalanceProofState struct {
	Nonce              *big.Int
	TransferredAmount  *big.Int
	LockedAmount       *big.Int
	Locksroot          primitives.Hash
	BalanceHash        primitives.Hash
	MessageHash        primitives.Hash
	Signature          []byte
	Sender             primitives.Address
	CanonicalIdentifier primitives.CanonicalIdentifier
}

// EndState is one participant's view of a channel: what it has
// deposited/withdrawn on-chain, which locks it has extended, and the
// latest balance proof it holds from the other side.
type EndState struct {
	Address              primitives.Address
	ContractBalance      *big.Int
	OnchainTotalWithdraw  *big.Int

	WithdrawsPending map[string]*PendingWithdraw // keyed by total_withdraw.String()
	WithdrawsExpired []*PendingWithdraw

	SecretHashesToLockedLocks         *PendingLocks
	SecretHashesToUnlockedLocks       *PendingLocks
	SecretHashesToOnchainUnlockedLocks *PendingLocks
	Secrets                           map[primitives.Hash]primitives.Hash // secrethash -> secret, once known

	BalanceProof *BalanceProofState
	PendingLocks *PendingLocks
	Nonce        *big.Int
}

// NewEndState returns a fresh, empty end-state for address.
func NewEndState(address primitives.Address) *EndState {
	return &EndState{
		Address:                           address,
		ContractBalance:                   big.NewInt(0),
		OnchainTotalWithdraw:              big.NewInt(0),
		WithdrawsPending:                  make(map[string]*PendingWithdraw),
		SecretHashesToLockedLocks:         NewPendingLocks(),
		SecretHashesToUnlockedLocks:       NewPendingLocks(),
		SecretHashesToOnchainUnlockedLocks: NewPendingLocks(),
		Secrets:                           make(map[primitives.Hash]primitives.Hash),
		PendingLocks:                      NewPendingLocks(),
		Nonce:                             big.NewInt(0),
	}
}

// Clone returns a deep-enough copy of e safe to mutate independently of
// the original: every map and *PendingLocks field gets its own backing
// storage. BalanceProof and the individual Lock/PendingWithdraw values
// are treated as immutable once constructed, so are shared, not copied.
func (e *EndState) Clone() *EndState {
	next := *e
	next.WithdrawsPending = make(map[string]*PendingWithdraw, len(e.WithdrawsPending))
	for k, v := range e.WithdrawsPending {
		next.WithdrawsPending[k] = v
	}
	next.WithdrawsExpired = append([]*PendingWithdraw{}, e.WithdrawsExpired...)
	next.SecretHashesToLockedLocks = e.SecretHashesToLockedLocks.Clone()
	next.SecretHashesToUnlockedLocks = e.SecretHashesToUnlockedLocks.Clone()
	next.SecretHashesToOnchainUnlockedLocks = e.SecretHashesToOnchainUnlockedLocks.Clone()
	next.Secrets = make(map[primitives.Hash]primitives.Hash, len(e.Secrets))
	for k, v := range e.Secrets {
		next.Secrets[k] = v
	}
	next.PendingLocks = e.PendingLocks.Clone()
	return &next
}

// NextNonce returns the nonce our next signed balance proof must carry:
// strictly the previous nonce plus one (spec §3 invariant 1).
func (e *EndState) NextNonce() *big.Int {
	return new(big.Int).Add(e.Nonce, big.NewInt(1))
}

// OffchainTotalWithdraw is the max total_withdraw across all pending
// withdraws (spec §3 invariant 3).
func (e *EndState) OffchainTotalWithdraw() *big.Int {
	max := big.NewInt(0)
	for _, w := range e.WithdrawsPending {
		if w.TotalWithdraw.Cmp(max) > 0 {
			max = w.TotalWithdraw
		}
	}
	return max
}

// TotalWithdraw is max(offchain, onchain) per spec §3 invariant 3.
func (e *EndState) TotalWithdraw() *big.Int {
	off := e.OffchainTotalWithdraw()
	if off.Cmp(e.OnchainTotalWithdraw) > 0 {
		return off
	}
	return e.OnchainTotalWithdraw
}

// LockedAmount is the sum of every still-pending lock's amount.
func (e *EndState) LockedAmount() *big.Int {
	return e.PendingLocks.Amount()
}

// TransferredAmount is the amount our last balance proof committed as
// transferred to the partner, or zero if none yet.
func (e *EndState) TransferredAmount() *big.Int {
	if e.BalanceProof == nil {
		return big.NewInt(0)
	}
	return e.BalanceProof.TransferredAmount
}

// Distributable is contract_balance - total_withdraw - transferred -
// locked: the amount still free to commit to new locks (spec §3
// invariant 5 and §4.5 is_usable_for_new_transfer).
func (e *EndState) Distributable(partner *EndState) *big.Int {
	d := new(big.Int).Set(e.ContractBalance)
	d.Sub(d, e.TotalWithdraw())
	d.Sub(d, e.TransferredAmount())
	d.Sub(d, e.LockedAmount())
	// the partner's total_withdraw also reduces what we may distribute,
	// since settlement splits the contract balance between both sides.
	d.Sub(d, partner.TotalWithdraw())
	if d.Sign() < 0 {
		return big.NewInt(0)
	}
	return d
}

// RegisterSecretOffchain moves a lock from locked to unlocked once its
// secret is known off-chain. Idempotent (spec §4.2).
func (e *EndState) RegisterSecretOffchain(secret primitives.Hash) bool {
	secretHash := primitives.Keccak256(secret.Bytes())
	lock := e.SecretHashesToLockedLocks.Get(secretHash)
	if lock == nil {
		// already unlocked or never locked: idempotent no-op.
		return e.SecretHashesToUnlockedLocks.Get(secretHash) != nil
	}
	e.SecretHashesToLockedLocks.Remove(secretHash)
	e.SecretHashesToUnlockedLocks.Add(lock)
	e.Secrets[secretHash] = secret
	return true
}

// RegisterSecretOnchain moves a lock (from locked or off-chain-unlocked)
// into the on-chain-unlocked set once it has been registered on-chain
// before its expiration. Idempotent (spec §4.2).
func (e *EndState) RegisterSecretOnchain(secret primitives.Hash, expiration *big.Int, block int64) bool {
	if expiration.Cmp(big.NewInt(block)) < 0 {
		return false
	}
	secretHash := primitives.Keccak256(secret.Bytes())
	lock := e.SecretHashesToLockedLocks.Get(secretHash)
	if lock == nil {
		lock = e.SecretHashesToUnlockedLocks.Get(secretHash)
	}
	if lock == nil {
		return e.SecretHashesToOnchainUnlockedLocks.Get(secretHash) != nil
	}
	e.SecretHashesToLockedLocks.Remove(secretHash)
	e.SecretHashesToUnlockedLocks.Remove(secretHash)
	e.SecretHashesToOnchainUnlockedLocks.Add(lock)
	e.Secrets[secretHash] = secret
	return true
}

// IsLockExpired reports whether a lock can safely be dropped: the
// receiver-side confirmation threshold has passed and the secret was
// never registered on-chain (spec §4.2).
func IsLockExpired(e *EndState, lock *Lock, block int64, receiverThreshold *big.Int) bool {
	if big.NewInt(block).Cmp(receiverThreshold) < 0 {
		return false
	}
	return e.SecretHashesToOnchainUnlockedLocks.Get(lock.SecretHash) == nil
}

// GetCurrentBalanceProof returns the values the partner would sign for
// right now: (locksroot, locked, transferred, nonce) (spec §4.2).
func (e *EndState) GetCurrentBalanceProof() (primitives.Hash, *big.Int, *big.Int, *big.Int) {
	return e.PendingLocks.Locksroot(), e.LockedAmount(), e.TransferredAmount(), e.Nonce
}

// GetSafeInitialExpiration computes the expiration block for a new
// outgoing lock (spec §4.2).
func GetSafeInitialExpiration(block int64, revealTimeout int64, lockTimeout *int64) *big.Int {
	timeout := 2 * revealTimeout
	if lockTimeout != nil {
		timeout = *lockTimeout
	}
	return big.NewInt(block + timeout)
}

// ReceiverExpirationThreshold adds the confirmation buffer a receiver
// requires before treating a lock as safely expired (spec §3 invariant
// 6: expiration - block > 2*reveal_timeout is "safe").
func ReceiverExpirationThreshold(expiration *big.Int, confirmedBlockOffset int64) *big.Int {
	return new(big.Int).Add(expiration, big.NewInt(confirmedBlockOffset))
}
