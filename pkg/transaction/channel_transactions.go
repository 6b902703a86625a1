package transaction

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/contracts"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// Signer builds the per-call bind.TransactOpts a concrete Transaction's
// Submit phase signs with, drawing the nonce from the single-writer
// Account (spec §4.8).
type Signer struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	account Account
}

// NewSigner builds a Signer for one account's private key.
func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int, account Account) *Signer {
	return &Signer{key: key, chainID: chainID, account: account}
}

func (s *Signer) opts(ctx context.Context, gasLimit uint64, gasPrice *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(s.account.NextNonce())
	opts.GasLimit = gasLimit
	opts.GasPrice = gasPrice
	return opts, nil
}

// OpenChannelTransaction opens a channel between Us and Partner on
// TokenNetwork (spec §4.8 "channel open"), the concrete Transaction
// behind both a local open-channel action and
// pkg/connectionmanager's automatic funding.
type OpenChannelTransaction struct {
	TokenNetwork  *contracts.TokenNetwork
	Signer        *Signer
	Us, Partner   primitives.Address
	SettleTimeout int64
}

func (t *OpenChannelTransaction) Name() string { return "open_channel" }

func (t *OpenChannelTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *OpenChannelTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *OpenChannelTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return nil
}

func (t *OpenChannelTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.TokenNetwork.OpenChannel(opts, t.Us, t.Partner, big.NewInt(t.SettleTimeout))
}

func (t *OpenChannelTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}

// SetTotalDepositTransaction raises Us's total deposit in an existing
// channel to TotalDeposit, approving the token spend as its prerequisite
// phase (spec §4.8 "set_total_deposit, with token-approve prerequisite").
type SetTotalDepositTransaction struct {
	TokenNetwork        *contracts.TokenNetwork
	TokenNetworkAddress primitives.Address
	Token               *contracts.ERC20
	Signer              *Signer
	ChannelIdentifier   *big.Int
	Us, Partner         primitives.Address
	TotalDeposit        *big.Int
}

func (t *SetTotalDepositTransaction) Name() string { return "set_total_deposit" }

func (t *SetTotalDepositTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *SetTotalDepositTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *SetTotalDepositTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	opts, err := t.Signer.opts(ctx, 0, big.NewInt(0))
	if err != nil {
		return err
	}
	_, err = t.Token.Approve(opts, t.TokenNetworkAddress, t.TotalDeposit)
	return err
}

func (t *SetTotalDepositTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.TokenNetwork.SetTotalDeposit(opts, t.ChannelIdentifier, t.Us, t.TotalDeposit, t.Partner)
}

func (t *SetTotalDepositTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}

// CloseChannelTransaction closes a channel, submitting the partner's
// last known balance proof (or a zeroed one, if none was ever
// received) as the closing claim (spec §4.8 "channel close").
type CloseChannelTransaction struct {
	TokenNetwork                         *contracts.TokenNetwork
	Signer                               *Signer
	ChannelIdentifier                    *big.Int
	Partner                              primitives.Address
	BalanceHash, Nonce, AdditionalHash   primitives.Hash
	Signature                            []byte
}

func (t *CloseChannelTransaction) Name() string { return "close_channel" }

func (t *CloseChannelTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *CloseChannelTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *CloseChannelTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return nil
}

func (t *CloseChannelTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.TokenNetwork.CloseChannel(ctx, opts, t.ChannelIdentifier, t.Partner, t.BalanceHash, t.Nonce, t.AdditionalHash, t.Signature)
}

func (t *CloseChannelTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}

// WithdrawTransaction submits a cooperatively-signed total-withdraw to
// the token network (spec §4.8 "channel withdraw"), carrying both
// sides' signatures over the withdraw's (total_withdraw,
// expiration_block) commitment.
type WithdrawTransaction struct {
	TokenNetwork                    *contracts.TokenNetwork
	Signer                          *Signer
	ChannelIdentifier               *big.Int
	Participant                     primitives.Address
	TotalWithdraw, ExpirationBlock  *big.Int
	ParticipantSignature, PartnerSignature []byte
}

func (t *WithdrawTransaction) Name() string { return "withdraw" }

func (t *WithdrawTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *WithdrawTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *WithdrawTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return nil
}

func (t *WithdrawTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.TokenNetwork.SetTotalWithdraw(opts, t.ChannelIdentifier, t.Participant, t.TotalWithdraw, t.ExpirationBlock, t.ParticipantSignature, t.PartnerSignature)
}

func (t *WithdrawTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}

// UpdateTransferTransaction submits the partner's last known balance
// proof after they closed the channel without it, so the closer can't
// settle on a stale state (spec §4.8 "channel update transfer").
type UpdateTransferTransaction struct {
	TokenNetwork                                *contracts.TokenNetwork
	Signer                                       *Signer
	ChannelIdentifier                            *big.Int
	ClosingParticipant, NonClosingParticipant    primitives.Address
	BalanceHash, AdditionalHash                  primitives.Hash
	Nonce                                        *big.Int
	ClosingSignature, NonClosingSignature        []byte
}

func (t *UpdateTransferTransaction) Name() string { return "update_transfer" }

func (t *UpdateTransferTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *UpdateTransferTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *UpdateTransferTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return nil
}

func (t *UpdateTransferTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.TokenNetwork.UpdateNonClosingBalanceProof(opts, t.ChannelIdentifier, t.ClosingParticipant, t.NonClosingParticipant, t.BalanceHash, t.AdditionalHash, t.Nonce, t.ClosingSignature, t.NonClosingSignature)
}

func (t *UpdateTransferTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}

// BatchUnlockTransaction submits every still-unlocked lock's encoded
// commitment once the channel is settled, so their amounts are
// returned instead of staying stuck in the settled balances (spec
// §4.8 "channel batch unlock").
type BatchUnlockTransaction struct {
	TokenNetwork       *contracts.TokenNetwork
	Signer             *Signer
	ChannelIdentifier  *big.Int
	Sender, Receiver   primitives.Address
	LockedEncoded      []byte
}

func (t *BatchUnlockTransaction) Name() string { return "batch_unlock" }

func (t *BatchUnlockTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *BatchUnlockTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *BatchUnlockTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return nil
}

func (t *BatchUnlockTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.TokenNetwork.Unlock(opts, t.ChannelIdentifier, t.Sender, t.Receiver, t.LockedEncoded)
}

func (t *BatchUnlockTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}

// SecretRevealTransaction registers a secret on-chain so its
// unlock remains claimable even if the off-chain reveal never reached
// the right participant in time (spec §4.8 "contract secret reveal").
type SecretRevealTransaction struct {
	SecretRegistry *contracts.SecretRegistry
	Signer         *Signer
	Secret         primitives.Hash
}

func (t *SecretRevealTransaction) Name() string { return "reveal_secret_onchain" }

func (t *SecretRevealTransaction) OnchainData(ctx context.Context, blockHash primitives.Hash) (Data, error) {
	return nil, nil
}

func (t *SecretRevealTransaction) ValidatePreconditions(data Data, blockHash primitives.Hash) error {
	return nil
}

func (t *SecretRevealTransaction) ExecutePrerequisite(ctx context.Context, data Data) error {
	return nil
}

func (t *SecretRevealTransaction) Submit(ctx context.Context, data Data, gasLimit uint64, gasPrice *big.Int) (primitives.Hash, error) {
	opts, err := t.Signer.opts(ctx, gasLimit, gasPrice)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return t.SecretRegistry.RegisterSecret(opts, t.Secret)
}

func (t *SecretRevealTransaction) ValidatePostconditions(ctx context.Context, data Data, atBlock int64) error {
	return nil
}
