package channel

import (
	"errors"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// Status is the derived lifecycle stage of a channel (spec §3/§4.3).
type Status int

const (
	StatusOpened Status = iota
	StatusClosing
	StatusClosed
	StatusSettling
	StatusSettled
	StatusUnusable
)

func (s Status) String() string {
	switch s {
	case StatusOpened:
		return "opened"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	case StatusSettling:
		return "settling"
	case StatusSettled:
		return "settled"
	case StatusUnusable:
		return "unusable"
	default:
		return "unknown"
	}
}

// TransactionResult records whether an on-chain transaction tied to the
// channel lifecycle (close/settle) has succeeded or failed.
type TransactionResult struct {
	Started     bool
	Finished    bool
	Success     bool
	BlockNumber int64
}

// FeeSchedule is the mediation fee configuration applied when this
// channel is used as a forwarding hop.
type FeeSchedule struct {
	Flat                *big.Int
	ProportionalPercent *big.Int // parts per 10000
	ImbalancePenalty    [][2]*big.Int
}

// State is one channel's full state: both end-states plus the
// transaction records and configuration governing its lifecycle
// (spec §3).
type State struct {
	CanonicalIdentifier        primitives.CanonicalIdentifier
	TokenAddress               primitives.Address
	TokenNetworkRegistryAddress primitives.Address

	RevealTimeout int64
	SettleTimeout int64

	OurState     *EndState
	PartnerState *EndState

	OpenTransaction   *TransactionResult
	CloseTransaction  *TransactionResult
	SettleTransaction *TransactionResult
	UpdateTransaction *TransactionResult

	FeeSchedule *FeeSchedule
}

// ErrInvalidTimeouts is returned by NewState when reveal_timeout is not
// strictly less than settle_timeout (spec §3).
var ErrInvalidTimeouts = errors.New("channel: reveal_timeout must be less than settle_timeout")

// NewState constructs a freshly-opened channel between us and partner.
func NewState(
	canonicalIdentifier primitives.CanonicalIdentifier,
	tokenAddress, tokenNetworkRegistryAddress primitives.Address,
	us, partner primitives.Address,
	revealTimeout, settleTimeout int64,
	openedAtBlock int64,
) (*State, error) {
	if revealTimeout >= settleTimeout {
		return nil, ErrInvalidTimeouts
	}
	return &State{
		CanonicalIdentifier:         canonicalIdentifier,
		TokenAddress:                tokenAddress,
		TokenNetworkRegistryAddress: tokenNetworkRegistryAddress,
		RevealTimeout:               revealTimeout,
		SettleTimeout:               settleTimeout,
		OurState:                    NewEndState(us),
		PartnerState:                NewEndState(partner),
		OpenTransaction:             &TransactionResult{Started: true, Finished: true, Success: true, BlockNumber: openedAtBlock},
		FeeSchedule:                 &FeeSchedule{Flat: big.NewInt(0), ProportionalPercent: big.NewInt(0)},
	}, nil
}

// StatusOf derives the channel's lifecycle stage from its transaction
// records, per the table in spec §4.3.
func (s *State) StatusOf() Status {
	if s.SettleTransaction != nil {
		switch {
		case s.SettleTransaction.Finished && s.SettleTransaction.Success:
			return StatusSettled
		case !s.SettleTransaction.Finished:
			return StatusSettling
		default:
			return StatusUnusable
		}
	}
	if s.CloseTransaction != nil {
		switch {
		case s.CloseTransaction.Finished && s.CloseTransaction.Success:
			return StatusClosed
		case !s.CloseTransaction.Finished:
			return StatusClosing
		default:
			return StatusUnusable
		}
	}
	return StatusOpened
}

// Deposit is the contract balance we (or our partner) have funded,
// used by IsUsableForNewTransfer/Distributable computations.
func (s *State) Deposit() *big.Int {
	return new(big.Int).Add(s.OurState.ContractBalance, s.PartnerState.ContractBalance)
}

// IsUsableForNewTransfer reports whether this channel can carry a new
// outgoing transfer of amount, per spec §4.5
// (is_usable_for_new_transfer): status Opened and enough distributable
// balance. The lock-timeout argument is ignored.
func (s *State) IsUsableForNewTransfer(amount *big.Int, _ *int64) bool {
	if s.StatusOf() != StatusOpened {
		return false
	}
	return s.OurState.Distributable(s.PartnerState).Cmp(amount) >= 0
}
