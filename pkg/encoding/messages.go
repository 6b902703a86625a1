// Package encoding implements the JSON wire protocol (spec §6.2):
// signed peer messages with a `type` discriminator, the message_hash
// construction feeding balance-proof signatures, and the conversion
// from the state machine's internal Send* events into signable wire
// structs.
package encoding

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/mediatedtransfer"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// Message is implemented by every wire message: it knows its own type
// discriminator and the byte layout its signature is computed over.
type Message interface {
	Type() string
	bytes() []byte
}

// SignedMessage additionally carries an ECDSA signature.
type SignedMessage interface {
	Message
	GetSignature() []byte
	SetSignature(sig []byte)
}

// Sign computes msg's signature over its canonical byte layout and
// stores it (spec §4.1, §6.2).
func Sign(msg SignedMessage, key *ecdsa.PrivateKey) error {
	sig, err := primitives.SignMessage(key, msg.bytes())
	if err != nil {
		return err
	}
	msg.SetSignature(sig)
	return nil
}

// Verify recovers the signer address from msg's signature and checks
// it matches expected.
func Verify(msg SignedMessage, expected primitives.Address) (bool, error) {
	addr, err := primitives.RecoverMessage(msg.bytes(), msg.GetSignature())
	if err != nil {
		return false, err
	}
	return addr == expected, nil
}

func messageHash(cmdID primitives.CmdID, messageIdentifier uint64, paymentIdentifier uint64, secret *primitives.Hash) primitives.Hash {
	var buf []byte
	buf = append(buf, byte(cmdID))
	var msgID [8]byte
	binary.BigEndian.PutUint64(msgID[:], messageIdentifier)
	buf = append(buf, msgID[:]...)
	var payID [8]byte
	binary.BigEndian.PutUint64(payID[:], paymentIdentifier)
	buf = append(buf, payID[:]...)
	if secret != nil {
		buf = append(buf, secret.Bytes()...)
	}
	return primitives.Keccak256(buf)
}

func balanceProofBytes(bp *channel.BalanceProofState, msgHash primitives.Hash) []byte {
	return primitives.PackBalanceProof(bp.Nonce, bp.BalanceHash, msgHash, bp.CanonicalIdentifier, primitives.MessageTypeIDBalanceProof)
}

// --- LockedTransfer -------------------------------------------------

// LockedTransfer is the wire form of mediatedtransfer.SendLockedTransfer.
type LockedTransfer struct {
	TypeName            string          `json:"type"`
	MessageIdentifier   uint64          `json:"message_identifier,string"`
	PaymentIdentifier  uint64          `json:"payment_identifier,string"`
	ChainID             *big.Int        `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int        `json:"channel_identifier,string"`
	TransferredAmount   *big.Int        `json:"transferred_amount,string"`
	LockedAmount        *big.Int        `json:"locked_amount,string"`
	Locksroot           primitives.Hash `json:"locksroot"`
	Nonce               *big.Int        `json:"nonce,string"`
	Token               primitives.Address `json:"token"`
	Recipient           primitives.Address `json:"recipient"`
	Target              primitives.Address `json:"target"`
	Initiator           primitives.Address `json:"initiator"`
	LockAmount          *big.Int        `json:"lock_amount,string"`
	LockExpiration      *big.Int        `json:"lock_expiration,string"`
	SecretHash          primitives.Hash `json:"secrethash"`
	EncryptedSecret     []byte          `json:"encrypted_secret,omitempty"`
	Signature           []byte          `json:"signature"`
}

// FromSendLockedTransfer builds the wire message for an outbound
// locked transfer event.
func FromSendLockedTransfer(ev *mediatedtransfer.SendLockedTransfer) *LockedTransfer {
	t := ev.Transfer
	bp := t.BalanceProof
	return &LockedTransfer{
		TypeName:            "LockedTransfer",
		MessageIdentifier:   ev.MessageIdentifier,
		PaymentIdentifier:  t.PaymentIdentifier,
		ChainID:             bp.CanonicalIdentifier.ChainID,
		TokenNetworkAddress: bp.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   bp.CanonicalIdentifier.ChannelIdentifier,
		TransferredAmount:   bp.TransferredAmount,
		LockedAmount:        bp.LockedAmount,
		Locksroot:           bp.Locksroot,
		Nonce:               bp.Nonce,
		Token:               t.Token,
		Recipient:           ev.Receiver,
		Target:              t.Target,
		Initiator:           t.Initiator,
		LockAmount:          t.Lock.Amount,
		LockExpiration:      t.Lock.Expiration,
		SecretHash:          t.Lock.SecretHash,
		EncryptedSecret:     t.EncryptedSecret,
	}
}

func (m *LockedTransfer) messageHash() primitives.Hash {
	return messageHash(primitives.CmdIDLockedTransfer, m.MessageIdentifier, m.PaymentIdentifier, nil)
}

func (m *LockedTransfer) bytes() []byte {
	bp := &channel.BalanceProofState{
		Nonce:             m.Nonce,
		TransferredAmount: m.TransferredAmount,
		LockedAmount:      m.LockedAmount,
		Locksroot:         m.Locksroot,
		CanonicalIdentifier: primitives.CanonicalIdentifier{
			ChainID:             m.ChainID,
			TokenNetworkAddress: m.TokenNetworkAddress,
			ChannelIdentifier:   m.ChannelIdentifier,
		},
	}
	bp.BalanceHash = primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot)
	return balanceProofBytes(bp, m.messageHash())
}

func (m *LockedTransfer) Type() string            { return m.TypeName }
func (m *LockedTransfer) GetSignature() []byte    { return m.Signature }
func (m *LockedTransfer) SetSignature(sig []byte) { m.Signature = sig }

// --- LockExpired ------------------------------------------------------

// LockExpired is the wire form of mediatedtransfer.SendLockExpired.
type LockExpired struct {
	TypeName            string             `json:"type"`
	MessageIdentifier   uint64             `json:"message_identifier,string"`
	ChainID             *big.Int           `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int           `json:"channel_identifier,string"`
	TransferredAmount   *big.Int           `json:"transferred_amount,string"`
	LockedAmount        *big.Int           `json:"locked_amount,string"`
	Locksroot           primitives.Hash    `json:"locksroot"`
	Nonce               *big.Int           `json:"nonce,string"`
	Recipient           primitives.Address `json:"recipient"`
	SecretHash          primitives.Hash    `json:"secrethash"`
	Signature           []byte             `json:"signature"`
}

// FromSendLockExpired builds the wire message for an outbound
// lock-expired event.
func FromSendLockExpired(ev *mediatedtransfer.SendLockExpired) *LockExpired {
	bp := ev.BalanceProof
	return &LockExpired{
		TypeName:            "LockExpired",
		MessageIdentifier:   ev.MessageIdentifier,
		ChainID:             bp.CanonicalIdentifier.ChainID,
		TokenNetworkAddress: bp.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   bp.CanonicalIdentifier.ChannelIdentifier,
		TransferredAmount:   bp.TransferredAmount,
		LockedAmount:        bp.LockedAmount,
		Locksroot:           bp.Locksroot,
		Nonce:               bp.Nonce,
		Recipient:           ev.Receiver,
		SecretHash:          ev.SecretHash,
	}
}

func (m *LockExpired) Type() string { return m.TypeName }
func (m *LockExpired) bytes() []byte {
	h := messageHash(primitives.CmdIDLockExpired, m.MessageIdentifier, 0, nil)
	bp := &channel.BalanceProofState{
		Nonce:             m.Nonce,
		TransferredAmount: m.TransferredAmount,
		LockedAmount:      m.LockedAmount,
		Locksroot:         m.Locksroot,
		CanonicalIdentifier: primitives.CanonicalIdentifier{
			ChainID:             m.ChainID,
			TokenNetworkAddress: m.TokenNetworkAddress,
			ChannelIdentifier:   m.ChannelIdentifier,
		},
	}
	bp.BalanceHash = primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot)
	return balanceProofBytes(bp, h)
}
func (m *LockExpired) GetSignature() []byte    { return m.Signature }
func (m *LockExpired) SetSignature(sig []byte) { m.Signature = sig }

// --- Unlock -----------------------------------------------------------

// Unlock is the wire form of mediatedtransfer.SendUnlock.
type Unlock struct {
	TypeName            string             `json:"type"`
	MessageIdentifier   uint64             `json:"message_identifier,string"`
	PaymentIdentifier   uint64             `json:"payment_identifier,string"`
	ChainID             *big.Int           `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int           `json:"channel_identifier,string"`
	TransferredAmount   *big.Int           `json:"transferred_amount,string"`
	LockedAmount        *big.Int           `json:"locked_amount,string"`
	Locksroot           primitives.Hash    `json:"locksroot"`
	Nonce               *big.Int           `json:"nonce,string"`
	Recipient           primitives.Address `json:"recipient"`
	SecretHash          primitives.Hash    `json:"secrethash"`
	Signature           []byte             `json:"signature"`
}

// FromSendUnlock builds the wire message for an outbound unlock event.
func FromSendUnlock(ev *mediatedtransfer.SendUnlock) *Unlock {
	bp := ev.BalanceProof
	return &Unlock{
		TypeName:            "Unlock",
		MessageIdentifier:   ev.MessageIdentifier,
		PaymentIdentifier:   ev.PaymentIdentifier,
		ChainID:             bp.CanonicalIdentifier.ChainID,
		TokenNetworkAddress: bp.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   bp.CanonicalIdentifier.ChannelIdentifier,
		TransferredAmount:   bp.TransferredAmount,
		LockedAmount:        bp.LockedAmount,
		Locksroot:           bp.Locksroot,
		Nonce:               bp.Nonce,
		Recipient:           ev.Receiver,
		SecretHash:          ev.SecretHash,
	}
}

func (m *Unlock) Type() string { return m.TypeName }
func (m *Unlock) bytes() []byte {
	h := messageHash(primitives.CmdIDUnlock, m.MessageIdentifier, m.PaymentIdentifier, &m.SecretHash)
	bp := &channel.BalanceProofState{
		Nonce:             m.Nonce,
		TransferredAmount: m.TransferredAmount,
		LockedAmount:      m.LockedAmount,
		Locksroot:         m.Locksroot,
		CanonicalIdentifier: primitives.CanonicalIdentifier{
			ChainID:             m.ChainID,
			TokenNetworkAddress: m.TokenNetworkAddress,
			ChannelIdentifier:   m.ChannelIdentifier,
		},
	}
	bp.BalanceHash = primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot)
	return balanceProofBytes(bp, h)
}
func (m *Unlock) GetSignature() []byte    { return m.Signature }
func (m *Unlock) SetSignature(sig []byte) { m.Signature = sig }

// --- SecretRequest ------------------------------------------------------

// SecretRequest is the wire form of mediatedtransfer.SendSecretRequest.
type SecretRequest struct {
	TypeName          string   `json:"type"`
	MessageIdentifier uint64   `json:"message_identifier,string"`
	PaymentIdentifier uint64   `json:"payment_identifier,string"`
	SecretHash        primitives.Hash `json:"secrethash"`
	Amount            *big.Int `json:"amount,string"`
	Expiration        *big.Int `json:"expiration,string"`
	Signature         []byte   `json:"signature"`
}

// FromSendSecretRequest builds the wire message for an outbound secret
// request event.
func FromSendSecretRequest(ev *mediatedtransfer.SendSecretRequest) *SecretRequest {
	return &SecretRequest{
		TypeName:          "SecretRequest",
		MessageIdentifier: ev.MessageIdentifier,
		PaymentIdentifier: ev.PaymentIdentifier,
		SecretHash:        ev.SecretHash,
		Amount:            ev.Amount,
		Expiration:        ev.Expiration,
	}
}

func (m *SecretRequest) Type() string { return m.TypeName }
func (m *SecretRequest) bytes() []byte {
	var buf []byte
	buf = append(buf, byte(primitives.CmdIDSecretRequest))
	var msgID, payID [8]byte
	binary.BigEndian.PutUint64(msgID[:], m.MessageIdentifier)
	binary.BigEndian.PutUint64(payID[:], m.PaymentIdentifier)
	buf = append(buf, msgID[:]...)
	buf = append(buf, payID[:]...)
	buf = append(buf, m.SecretHash.Bytes()...)
	buf = append(buf, leftPad32Big(m.Amount)...)
	buf = append(buf, leftPad32Big(m.Expiration)...)
	return buf
}
func (m *SecretRequest) GetSignature() []byte    { return m.Signature }
func (m *SecretRequest) SetSignature(sig []byte) { m.Signature = sig }

// --- SecretReveal ------------------------------------------------------

// SecretReveal is the wire form of mediatedtransfer.SendSecretReveal.
type SecretReveal struct {
	TypeName          string          `json:"type"`
	MessageIdentifier uint64          `json:"message_identifier,string"`
	Secret            primitives.Hash `json:"secret"`
	Signature         []byte          `json:"signature"`
}

// FromSendSecretReveal builds the wire message for an outbound secret
// reveal event.
func FromSendSecretReveal(ev *mediatedtransfer.SendSecretReveal) *SecretReveal {
	return &SecretReveal{
		TypeName:          "RevealSecret",
		MessageIdentifier: ev.MessageIdentifier,
		Secret:            ev.Secret,
	}
}

func (m *SecretReveal) Type() string { return m.TypeName }
func (m *SecretReveal) bytes() []byte {
	var buf []byte
	buf = append(buf, byte(primitives.CmdIDRevealSecret))
	buf = append(buf, m.Secret.Bytes()...)
	return buf
}
func (m *SecretReveal) GetSignature() []byte    { return m.Signature }
func (m *SecretReveal) SetSignature(sig []byte) { m.Signature = sig }

// --- Withdraw family ----------------------------------------------------

// WithdrawRequest is the wire form of channel.SendWithdrawRequest.
type WithdrawRequest struct {
	TypeName            string             `json:"type"`
	MessageIdentifier   uint64             `json:"message_identifier,string"`
	ChainID             *big.Int           `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int           `json:"channel_identifier,string"`
	Participant         primitives.Address `json:"participant"`
	TotalWithdraw       *big.Int           `json:"total_withdraw,string"`
	Nonce               *big.Int           `json:"nonce,string"`
	Expiration          *big.Int           `json:"expiration,string"`
	Signature           []byte             `json:"signature"`
}

// FromSendWithdrawRequest builds the wire message for an outbound
// withdraw request event; us is the requester's own address.
func FromSendWithdrawRequest(ev *channel.SendWithdrawRequest, us primitives.Address) *WithdrawRequest {
	return &WithdrawRequest{
		TypeName:            "WithdrawRequest",
		MessageIdentifier:   ev.MessageIdentifier,
		ChainID:             ev.CanonicalIdentifier.ChainID,
		TokenNetworkAddress: ev.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   ev.CanonicalIdentifier.ChannelIdentifier,
		Participant:         us,
		TotalWithdraw:       ev.TotalWithdraw,
		Nonce:               ev.Nonce,
		Expiration:          ev.Expiration,
	}
}

func (m *WithdrawRequest) Type() string { return m.TypeName }
func (m *WithdrawRequest) bytes() []byte {
	return primitives.PackWithdraw(
		primitives.CanonicalIdentifier{ChainID: m.ChainID, TokenNetworkAddress: m.TokenNetworkAddress, ChannelIdentifier: m.ChannelIdentifier},
		m.Participant, m.TotalWithdraw, m.Expiration,
	)
}
func (m *WithdrawRequest) GetSignature() []byte    { return m.Signature }
func (m *WithdrawRequest) SetSignature(sig []byte) { m.Signature = sig }

// WithdrawConfirmation is the wire form of channel.SendWithdrawConfirmation.
type WithdrawConfirmation struct {
	WithdrawRequest
}

// FromSendWithdrawConfirmation builds the wire message for an outbound
// withdraw confirmation event.
func FromSendWithdrawConfirmation(ev *channel.SendWithdrawConfirmation, us primitives.Address) *WithdrawConfirmation {
	return &WithdrawConfirmation{WithdrawRequest{
		TypeName:            "WithdrawConfirmation",
		MessageIdentifier:   ev.MessageIdentifier,
		ChainID:             ev.CanonicalIdentifier.ChainID,
		TokenNetworkAddress: ev.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   ev.CanonicalIdentifier.ChannelIdentifier,
		Participant:         us,
		TotalWithdraw:       ev.TotalWithdraw,
		Nonce:               ev.Nonce,
		Expiration:          ev.Expiration,
	}}
}

// WithdrawExpired is the wire form of channel.SendWithdrawExpired.
type WithdrawExpired struct {
	TypeName            string             `json:"type"`
	MessageIdentifier   uint64             `json:"message_identifier,string"`
	ChainID             *big.Int           `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int           `json:"channel_identifier,string"`
	Participant         primitives.Address `json:"participant"`
	TotalWithdraw       *big.Int           `json:"total_withdraw,string"`
	Nonce               *big.Int           `json:"nonce,string"`
	Signature           []byte             `json:"signature"`
}

// FromSendWithdrawExpired builds the wire message for an outbound
// withdraw-expired notice.
func FromSendWithdrawExpired(ev *channel.SendWithdrawExpired, us primitives.Address) *WithdrawExpired {
	return &WithdrawExpired{
		TypeName:            "WithdrawExpired",
		MessageIdentifier:   ev.MessageIdentifier,
		ChainID:             ev.CanonicalIdentifier.ChainID,
		TokenNetworkAddress: ev.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   ev.CanonicalIdentifier.ChannelIdentifier,
		Participant:         us,
		TotalWithdraw:       ev.TotalWithdraw,
		Nonce:               ev.Nonce,
	}
}

func (m *WithdrawExpired) Type() string { return m.TypeName }
func (m *WithdrawExpired) bytes() []byte {
	return primitives.PackWithdraw(
		primitives.CanonicalIdentifier{ChainID: m.ChainID, TokenNetworkAddress: m.TokenNetworkAddress, ChannelIdentifier: m.ChannelIdentifier},
		m.Participant, m.TotalWithdraw, big.NewInt(0),
	)
}
func (m *WithdrawExpired) GetSignature() []byte    { return m.Signature }
func (m *WithdrawExpired) SetSignature(sig []byte) { m.Signature = sig }

// --- Processed / Delivered ---------------------------------------------

// Processed acknowledges that an inbound message advanced the receiver's
// state machine (spec §6.2).
type Processed struct {
	TypeName          string `json:"type"`
	MessageIdentifier uint64 `json:"message_identifier,string"`
	Signature         []byte `json:"signature"`
}

func NewProcessed(messageIdentifier uint64) *Processed {
	return &Processed{TypeName: "Processed", MessageIdentifier: messageIdentifier}
}

func (m *Processed) Type() string { return m.TypeName }
func (m *Processed) bytes() []byte {
	var buf []byte
	buf = append(buf, byte(primitives.CmdIDProcessed))
	var msgID [8]byte
	binary.BigEndian.PutUint64(msgID[:], m.MessageIdentifier)
	buf = append(buf, msgID[:]...)
	return buf
}
func (m *Processed) GetSignature() []byte    { return m.Signature }
func (m *Processed) SetSignature(sig []byte) { m.Signature = sig }

// Delivered acknowledges receipt of any message carrying a
// message_identifier, on the unordered side-queue (spec §6.2).
type Delivered struct {
	TypeName          string `json:"type"`
	DeliveredMessageIdentifier uint64 `json:"delivered_message_identifier,string"`
	Signature         []byte `json:"signature"`
}

func NewDelivered(deliveredMessageIdentifier uint64) *Delivered {
	return &Delivered{TypeName: "Delivered", DeliveredMessageIdentifier: deliveredMessageIdentifier}
}

func (m *Delivered) Type() string { return m.TypeName }
func (m *Delivered) bytes() []byte {
	var buf []byte
	buf = append(buf, byte(primitives.CmdIDDelivered))
	var msgID [8]byte
	binary.BigEndian.PutUint64(msgID[:], m.DeliveredMessageIdentifier)
	buf = append(buf, msgID[:]...)
	return buf
}
func (m *Delivered) GetSignature() []byte    { return m.Signature }
func (m *Delivered) SetSignature(sig []byte) { m.Signature = sig }

// --- Pathfinding / monitoring broadcast messages (spec §6.4) -----------

// PFSCapacityUpdate broadcasts a channel's current usable capacity to
// the pathfinding service so it can route around exhausted channels.
type PFSCapacityUpdate struct {
	TypeName            string             `json:"type"`
	CanonicalIdentifier primitives.CanonicalIdentifier `json:"-"`
	ChainID             *big.Int           `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int           `json:"channel_identifier,string"`
	UpdatingParticipant primitives.Address `json:"updating_participant"`
	OtherParticipant    primitives.Address `json:"other_participant"`
	UpdatingNonce       *big.Int           `json:"updating_nonce,string"`
	OtherNonce          *big.Int           `json:"other_nonce,string"`
	UpdatingCapacity    *big.Int           `json:"updating_capacity,string"`
	OtherCapacity       *big.Int           `json:"other_capacity,string"`
	Signature           []byte             `json:"signature"`
}

func (m *PFSCapacityUpdate) Type() string { return m.TypeName }
func (m *PFSCapacityUpdate) bytes() []byte {
	var buf []byte
	buf = append(buf, leftPad32Big(m.ChainID)...)
	buf = append(buf, m.TokenNetworkAddress.Bytes()...)
	buf = append(buf, leftPad32Big(m.ChannelIdentifier)...)
	buf = append(buf, m.UpdatingParticipant.Bytes()...)
	buf = append(buf, m.OtherParticipant.Bytes()...)
	buf = append(buf, leftPad32Big(m.UpdatingNonce)...)
	buf = append(buf, leftPad32Big(m.OtherNonce)...)
	buf = append(buf, leftPad32Big(m.UpdatingCapacity)...)
	buf = append(buf, leftPad32Big(m.OtherCapacity)...)
	return buf
}
func (m *PFSCapacityUpdate) GetSignature() []byte    { return m.Signature }
func (m *PFSCapacityUpdate) SetSignature(sig []byte) { m.Signature = sig }

// PFSFeeUpdate broadcasts a channel's updated mediation fee schedule.
type PFSFeeUpdate struct {
	TypeName            string             `json:"type"`
	ChainID             *big.Int           `json:"chain_id"`
	TokenNetworkAddress primitives.Address `json:"token_network_address"`
	ChannelIdentifier   *big.Int           `json:"channel_identifier,string"`
	UpdatingParticipant primitives.Address `json:"updating_participant"`
	FeeScheduleFlat     *big.Int           `json:"fee_schedule_flat,string"`
	FeeScheduleProportional *big.Int       `json:"fee_schedule_proportional,string"`
	Signature           []byte             `json:"signature"`
}

func (m *PFSFeeUpdate) Type() string { return m.TypeName }
func (m *PFSFeeUpdate) bytes() []byte {
	var buf []byte
	buf = append(buf, leftPad32Big(m.ChainID)...)
	buf = append(buf, m.TokenNetworkAddress.Bytes()...)
	buf = append(buf, leftPad32Big(m.ChannelIdentifier)...)
	buf = append(buf, m.UpdatingParticipant.Bytes()...)
	buf = append(buf, leftPad32Big(m.FeeScheduleFlat)...)
	buf = append(buf, leftPad32Big(m.FeeScheduleProportional)...)
	return buf
}
func (m *PFSFeeUpdate) GetSignature() []byte    { return m.Signature }
func (m *PFSFeeUpdate) SetSignature(sig []byte) { m.Signature = sig }

// RequestMonitoring asks the monitoring service to watch a channel and
// submit its latest balance proof if the partner closes unfairly
// (spec §6.4).
type RequestMonitoring struct {
	TypeName          string             `json:"type"`
	BalanceProof      *channel.BalanceProofState `json:"-"`
	NonClosingSignature []byte           `json:"non_closing_signature"`
	RewardAmount      *big.Int           `json:"reward_amount,string"`
	MonitoringServiceContractAddress primitives.Address `json:"monitoring_service_contract_address"`
	Signature         []byte             `json:"signature"`
}

func (m *RequestMonitoring) Type() string { return m.TypeName }
func (m *RequestMonitoring) bytes() []byte {
	var buf []byte
	buf = append(buf, leftPad32Big(m.BalanceProof.Nonce)...)
	buf = append(buf, m.BalanceProof.BalanceHash.Bytes()...)
	buf = append(buf, leftPad32Big(m.RewardAmount)...)
	buf = append(buf, m.MonitoringServiceContractAddress.Bytes()...)
	buf = append(buf, m.NonClosingSignature...)
	return buf
}
func (m *RequestMonitoring) GetSignature() []byte    { return m.Signature }
func (m *RequestMonitoring) SetSignature(sig []byte) { m.Signature = sig }

func leftPad32Big(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// Encode marshals a message to its JSON wire form.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// typeEnvelope is decoded first to dispatch on the `type` field before
// unmarshaling into the concrete struct (spec §6.2).
type typeEnvelope struct {
	Type string `json:"type"`
}

// Decode dispatches on the JSON `type` field and unmarshals into the
// matching concrete message struct.
func Decode(data []byte) (Message, error) {
	var env typeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var msg Message
	switch env.Type {
	case "LockedTransfer":
		m := &LockedTransfer{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "LockExpired":
		m := &LockExpired{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "Unlock":
		m := &Unlock{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "SecretRequest":
		m := &SecretRequest{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "RevealSecret":
		m := &SecretReveal{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "WithdrawRequest":
		m := &WithdrawRequest{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "WithdrawConfirmation":
		m := &WithdrawConfirmation{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "WithdrawExpired":
		m := &WithdrawExpired{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "Processed":
		m := &Processed{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	case "Delivered":
		m := &Delivered{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		msg = m
	default:
		return nil, fmt.Errorf("encoding: unknown message type %q", env.Type)
	}
	return msg, nil
}
