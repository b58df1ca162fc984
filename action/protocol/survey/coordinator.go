// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package survey

import (
	"context"
	"math/big"
	"time"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quizzlerproject/survey-core/action/protocol"
	"github.com/quizzlerproject/survey-core/state"
)

// operation kinds of the async coordinator
const (
	opMint uint8 = iota
	opProvision
)

var _asyncOpMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "survey_async_operation",
		Help: "Async operation outcome counter.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(_asyncOpMtc)
}

type (
	// Issuer initiates a reward mint on a campaign's issuer resource. The
	// outcome arrives later through HandleOperationResult; the initiation
	// itself must be the last action on its control path.
	Issuer interface {
		Mint(ctx context.Context, issuer, recipient address.Address, tokenID string, deposit *big.Int, correlationID hash.Hash160) error
	}

	// Provisioner deploys and initializes an isolated issuer resource funded
	// from the escrowed deposit. The outcome arrives later through
	// HandleOperationResult.
	Provisioner interface {
		Deploy(ctx context.Context, issuer, owner address.Address, payloadSize uint64, funding *big.Int, correlationID hash.Hash160) error
	}

	// OperationResult is the continuation payload of an initiated external
	// operation. Err is nil on confirmed success.
	OperationResult struct {
		CorrelationID hash.Hash160
		Err           error
	}

	// PendingHandle identifies an initiated operation awaiting confirmation
	PendingHandle struct {
		CorrelationID hash.Hash160
	}
)

// operation maps a correlation id back to the ledger entry it will settle
type operation struct {
	kind        uint8
	campaignID  string
	participant address.Address
}

type operationGob struct {
	Kind        uint8
	CampaignID  string
	Participant []byte
}

// Serialize serializes the operation record into bytes
func (o *operation) Serialize() ([]byte, error) {
	gen := operationGob{
		Kind:       o.kind,
		CampaignID: o.campaignID,
	}
	if o.participant != nil {
		gen.Participant = o.participant.Bytes()
	}
	return state.GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into the operation record
func (o *operation) Deserialize(data []byte) error {
	gen := operationGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	var participant address.Address
	if len(gen.Participant) > 0 {
		var err error
		if participant, err = address.FromBytes(gen.Participant); err != nil {
			return err
		}
	}
	o.kind = gen.Kind
	o.campaignID = gen.CampaignID
	o.participant = participant
	return nil
}

// pendingReward is the in-flight reservation of one payout slot. It is
// written atomically with the initiation guards and consulted by the guards
// of every later initiation.
type pendingReward struct {
	correlationID hash.Hash160
	deposit       *big.Int
	initiatedAt   time.Time
}

type pendingRewardGob struct {
	CorrelationID []byte
	Deposit       string
	InitiatedAt   int64
}

// Serialize serializes the pending reward reservation into bytes
func (r *pendingReward) Serialize() ([]byte, error) {
	gen := pendingRewardGob{
		CorrelationID: r.correlationID[:],
		Deposit:       r.deposit.String(),
		InitiatedAt:   r.initiatedAt.UnixNano(),
	}
	return state.GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into the pending reward reservation
func (r *pendingReward) Deserialize(data []byte) error {
	gen := pendingRewardGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	deposit, ok := new(big.Int).SetString(gen.Deposit, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set pending deposit")
	}
	r.correlationID = hash.BytesToHash160(gen.CorrelationID)
	r.deposit = deposit
	r.initiatedAt = time.Unix(0, gen.InitiatedAt)
	return nil
}

// pendingCreation is the in-flight record of an issuer campaign creation. The
// campaign record itself is written only by the success continuation.
type pendingCreation struct {
	correlationID hash.Hash160
	sponsor       address.Address
	cap           uint64
	fee           *big.Int
	deposit       *big.Int
	provisionCost *big.Int
	issuer        address.Address
	metadata      Metadata
	initiatedAt   time.Time
}

type pendingCreationGob struct {
	CorrelationID []byte
	Sponsor       []byte
	Cap           uint64
	Fee           string
	Deposit       string
	ProvisionCost string
	Issuer        []byte
	Name          string
	Symbol        string
	URI           string
	InitiatedAt   int64
}

// Serialize serializes the pending creation record into bytes
func (c *pendingCreation) Serialize() ([]byte, error) {
	gen := pendingCreationGob{
		CorrelationID: c.correlationID[:],
		Sponsor:       c.sponsor.Bytes(),
		Cap:           c.cap,
		Fee:           c.fee.String(),
		Deposit:       c.deposit.String(),
		ProvisionCost: c.provisionCost.String(),
		Issuer:        c.issuer.Bytes(),
		Name:          c.metadata.Name,
		Symbol:        c.metadata.Symbol,
		URI:           c.metadata.URI,
		InitiatedAt:   c.initiatedAt.UnixNano(),
	}
	return state.GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into the pending creation record
func (c *pendingCreation) Deserialize(data []byte) error {
	gen := pendingCreationGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	sponsor, err := address.FromBytes(gen.Sponsor)
	if err != nil {
		return err
	}
	issuer, err := address.FromBytes(gen.Issuer)
	if err != nil {
		return err
	}
	fee, ok := new(big.Int).SetString(gen.Fee, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set pending fee")
	}
	deposit, ok := new(big.Int).SetString(gen.Deposit, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set pending deposit")
	}
	provisionCost, ok := new(big.Int).SetString(gen.ProvisionCost, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set provision cost")
	}
	c.correlationID = hash.BytesToHash160(gen.CorrelationID)
	c.sponsor = sponsor
	c.cap = gen.Cap
	c.fee = fee
	c.deposit = deposit
	c.provisionCost = provisionCost
	c.issuer = issuer
	c.metadata = Metadata{Name: gen.Name, Symbol: gen.Symbol, URI: gen.URI}
	c.initiatedAt = time.Unix(0, gen.InitiatedAt)
	return nil
}

func pendingRewardKey(id string, participant address.Address) []byte {
	key := append(_pendingRewardPrefix, []byte(id)...)
	return append(key, participant.Bytes()...)
}

func pendingCreationKey(id string) []byte {
	return append(_pendingCreationPrefix, []byte(id)...)
}

func operationKey(correlationID hash.Hash160) []byte {
	return append(_operationKeyPrefix, correlationID[:]...)
}

// correlationID derives the id of an external operation from its target and
// the triggering action
func (p *Protocol) correlationID(ctx context.Context, kind uint8, parts ...[]byte) hash.Hash160 {
	actionCtx := protocol.MustGetActionCtx(ctx)
	payload := append(p.keyPrefix, kind)
	for _, part := range parts {
		payload = append(payload, part...)
	}
	payload = append(payload, actionCtx.ActionHash[:]...)
	return hash.Hash160b(payload)
}

func (p *Protocol) putOperation(sm protocol.StateManager, correlationID hash.Hash160, op *operation) error {
	return p.putState(sm, operationKey(correlationID), op)
}

func (p *Protocol) getOperation(sr protocol.StateReader, correlationID hash.Hash160) (*operation, error) {
	op := operation{}
	if err := p.state(sr, operationKey(correlationID), &op); err != nil {
		if errors.Cause(err) == state.ErrStateNotExist {
			return nil, errors.Wrapf(ErrUnknownOperation, "correlation id = %x", correlationID)
		}
		return nil, err
	}
	return &op, nil
}

// HandleOperationResult is the continuation entry point. The hosting
// environment invokes it exactly once per initiated operation, serialized
// against all other calls on the same working set. It returns whether the
// operation committed.
func (p *Protocol) HandleOperationResult(ctx context.Context, sm protocol.StateManager, res *OperationResult) (bool, error) {
	if err := p.assertPrivate(ctx); err != nil {
		return false, err
	}
	op, err := p.getOperation(sm, res.CorrelationID)
	if err != nil {
		return false, err
	}
	switch op.kind {
	case opMint:
		return p.settleMint(ctx, sm, op, res)
	case opProvision:
		return p.settleProvision(ctx, sm, op, res)
	default:
		return false, errors.Wrapf(ErrUnknownOperation, "unknown operation kind %d", op.kind)
	}
}
