package mediatedtransfer

import (
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// InitTarget records the inbound transfer as a target task. If the
// caller passes an already-decrypted secret, it emits a
// ReceiveSecretReveal for that secret instead of a secret request; the
// secret is not checked against the transfer's amount or payment
// identifier, and the inbound transfer itself is not validated here.
// Otherwise it asks the initiator to reveal the secret (spec §4.5).
func InitTarget(sc *ActionInitTarget, decryptedSecret *primitives.Hash, prng *primitives.PseudoRandom) (*TransferTask, []interface{}) {
	task := &TransferTask{
		Role: RoleTarget,
		Target: &TargetTransferState{
			Route:    sc.FromRoute,
			Transfer: sc.FromTransfer,
			Status:   TargetWaitingForReveal,
		},
	}

	if decryptedSecret != nil {
		task.Target.Secret = *decryptedSecret
		task.Target.Status = TargetSecretRequested
		return task, []interface{}{&ReceiveSecretReveal{Secret: *decryptedSecret, Sender: sc.FromTransfer.Initiator}}
	}

	msgID := prng.NextMessageIdentifier()
	task.Target.Status = TargetSecretRequested
	return task, []interface{}{
		&SendSecretRequest{
			Receiver:          sc.FromTransfer.Initiator,
			MessageIdentifier: msgID,
			PaymentIdentifier: sc.FromTransfer.PaymentIdentifier,
			Amount:            sc.FromTransfer.Lock.Amount,
			SecretHash:        sc.FromTransfer.Lock.SecretHash,
			Expiration:        sc.FromTransfer.Lock.Expiration,
		},
	}
}

// ReceiveSecretRevealTarget registers the secret off-chain, forwards
// the reveal toward the initiator and waits for the inbound unlock
// (spec §4.5).
func ReceiveSecretRevealTarget(task *TargetTransferState, sc *ReceiveSecretReveal, payerChannel *channel.State) (*TargetTransferState, []interface{}) {
	payerChannel.PartnerState.RegisterSecretOffchain(sc.Secret)

	next := *task
	next.Secret = sc.Secret
	return &next, []interface{}{
		&SendSecretReveal{Receiver: task.Transfer.BalanceProof.Sender, Secret: sc.Secret},
	}
}

// ReceiveUnlockTarget finalizes the payment once the payer's unlock
// arrives (spec §4.5).
func ReceiveUnlockTarget(task *TargetTransferState) (*TargetTransferState, []interface{}) {
	next := *task
	next.Status = TargetPaymentReceived
	return &next, []interface{}{
		&PaymentReceivedSuccess{
			PaymentIdentifier: task.Transfer.PaymentIdentifier,
			Amount:            task.Transfer.Lock.Amount,
			Initiator:         task.Transfer.Initiator,
			SecretHash:        task.Transfer.Lock.SecretHash,
		},
	}
}

// ProtectSecretOnchainTarget mirrors the mediator's on-chain secret
// registration guard for the target's single payer leg (spec §4.5: "On
// block: if not safe to wait and secret is known off-chain only").
func ProtectSecretOnchainTarget(task *TargetTransferState, block int64, revealTimeout int64) (*TargetTransferState, []interface{}) {
	if task.Secret == primitives.EmptyHash || task.Status == TargetPaymentReceived {
		return task, nil
	}
	safeToWait := new(big.Int).Sub(task.Transfer.Lock.Expiration, big.NewInt(revealTimeout))
	if big.NewInt(block).Cmp(safeToWait) < 0 {
		return task, nil
	}
	return task, []interface{}{
		&ContractSendSecretReveal{Secret: task.Secret, Expiration: task.Transfer.Lock.Expiration},
	}
}
