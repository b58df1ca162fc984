// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

// Package survey implements the escrow-backed survey campaign protocol. A
// sponsor deposits funds sized to a participant cap and a per-unit reward,
// authorized managers pay the reward to each participant exactly once up to
// the cap, and cancellation refunds the un-issued remainder to the sponsor.
package survey

import (
	"context"
	"math/big"

	"github.com/facebookgo/clock"
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quizzlerproject/survey-core/action/protocol"
	accountutil "github.com/quizzlerproject/survey-core/action/protocol/account/util"
	"github.com/quizzlerproject/survey-core/pkg/log"
	"github.com/quizzlerproject/survey-core/state"
)

// protocolID is the protocol ID
const protocolID = "survey"

var (
	// ErrUnauthorized is the error that the caller does not satisfy the required role
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrCampaignNotFound is the error that the campaign does not exist
	ErrCampaignNotFound = errors.New("campaign does not exist")

	// ErrDuplicateCampaign is the error that the campaign id is already taken
	ErrDuplicateCampaign = errors.New("campaign already exists")

	// ErrCampaignCanceled is the error that the campaign no longer accepts payouts
	ErrCampaignCanceled = errors.New("campaign is canceled")

	// ErrAlreadyCanceled is the error that the campaign was canceled before
	ErrAlreadyCanceled = errors.New("campaign is already canceled")

	// ErrCampaignFinished is the error that the campaign has rewarded up to its cap
	ErrCampaignFinished = errors.New("campaign is finished")

	// ErrCapReached is the error that the participant cap leaves no open slot
	ErrCapReached = errors.New("participant cap reached")

	// ErrAlreadyRewarded is the error that the participant has been paid before
	ErrAlreadyRewarded = errors.New("participant is already rewarded")

	// ErrRewardPending is the error that an unconfirmed payout holds the slot
	ErrRewardPending = errors.New("reward is pending confirmation")

	// ErrInsufficientFee is the error that the service fee does not cover the rate
	ErrInsufficientFee = errors.New("service fee is not sufficient")

	// ErrInsufficientDeposit is the error that the attached deposit does not cover the escrow
	ErrInsufficientDeposit = errors.New("attached deposit is not sufficient")

	// ErrInsufficientBalance is the error that the free balance does not cover the withdrawal
	ErrInsufficientBalance = errors.New("not enough free balance")

	// ErrInvalidArgument is the error that an input fails local validation
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExternalOperationFailed is the error that an external operation could not be initiated
	ErrExternalOperationFailed = errors.New("external operation failed")

	// ErrUnknownOperation is the error that no pending operation matches the correlation id
	ErrUnknownOperation = errors.New("unknown pending operation")
)

var (
	_adminKey              = []byte("admin")
	_fundKey               = []byte("fund")
	_managerKeyPrefix      = []byte("manager")
	_campaignKeyPrefix     = []byte("campaign")
	_rewardedKeyPrefix     = []byte("rewarded")
	_pendingRewardPrefix   = []byte("pendingReward")
	_pendingCreationPrefix = []byte("pendingCreation")
	_operationKeyPrefix    = []byte("operation")
)

type (
	// Config contains the protocol parameters seeded at genesis
	Config struct {
		// OperatorAccount receives service fees and routed deposits of failed
		// payouts. Defaults to the genesis owner when left empty.
		OperatorAccount string
		// PerParticipantFeeRate is the minimum service fee charged per
		// participant slot of a campaign
		PerParticipantFeeRate *big.Int
		// ProvisionPayloadSize is the byte size of the issuer resource payload
		ProvisionPayloadSize uint64
		// StorageByteCost is the cost of storing one payload byte on an issuer resource
		StorageByteCost *big.Int
		// ProvisionBaseCost is the flat part of the issuer provisioning cost
		ProvisionBaseCost *big.Int
	}

	// Protocol defines the protocol of the survey escrow campaigns
	Protocol struct {
		addr        address.Address
		keyPrefix   []byte
		cfg         Config
		issuer      Issuer
		provisioner Provisioner
		clk         clock.Clock
	}

	// Option sets an optional collaborator on the protocol
	Option func(*Protocol)
)

// WithIssuer sets the issuer boundary used by asynchronous payouts
func WithIssuer(i Issuer) Option {
	return func(p *Protocol) { p.issuer = i }
}

// WithProvisioner sets the provisioner boundary used by issuer campaign creation
func WithProvisioner(pr Provisioner) Option {
	return func(p *Protocol) { p.provisioner = pr }
}

// WithClock sets the clock stamping pending reservations
func WithClock(c clock.Clock) Option {
	return func(p *Protocol) { p.clk = c }
}

// NewProtocol instantiates the survey protocol
func NewProtocol(cfg Config, opts ...Option) (*Protocol, error) {
	if cfg.PerParticipantFeeRate == nil || cfg.PerParticipantFeeRate.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "per-participant fee rate is not set")
	}
	if cfg.StorageByteCost == nil {
		cfg.StorageByteCost = big.NewInt(0)
	}
	if cfg.ProvisionBaseCost == nil {
		cfg.ProvisionBaseCost = big.NewInt(0)
	}
	h := hash.Hash160b([]byte(protocolID))
	addr, err := address.FromBytes(h[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct the address of survey protocol")
	}
	p := &Protocol{
		addr:      addr,
		keyPrefix: h[:],
		cfg:       cfg,
		clk:       clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Address returns the protocol address, which backs all escrowed value
func (p *Protocol) Address() address.Address { return p.addr }

// Register registers the protocol with a unique ID
func (p *Protocol) Register(r *protocol.Registry) error {
	return r.Register(protocolID, p)
}

// CreateGenesisStates initializes the protocol states. The caller becomes the
// immutable owner and the first enabled manager; the operator account is taken
// from the config, or defaults to the owner.
func (p *Protocol) CreateGenesisStates(ctx context.Context, sm protocol.StateManager) error {
	actionCtx := protocol.MustGetActionCtx(ctx)
	if err := p.state(sm, _adminKey, &admin{}); err == nil {
		return errors.New("the survey protocol is already initialized")
	} else if errors.Cause(err) != state.ErrStateNotExist {
		return err
	}
	operator := actionCtx.Caller
	if p.cfg.OperatorAccount != "" {
		var err error
		if operator, err = address.FromString(p.cfg.OperatorAccount); err != nil {
			return errors.Wrapf(err, "invalid operator account %s", p.cfg.OperatorAccount)
		}
	}
	a := admin{
		owner:    actionCtx.Caller,
		operator: operator,
		feeRate:  new(big.Int).Set(p.cfg.PerParticipantFeeRate),
	}
	if err := p.putState(sm, _adminKey, &a); err != nil {
		return err
	}
	if err := p.putState(sm, managerKey(actionCtx.Caller), &manager{enabled: true}); err != nil {
		return err
	}
	f := fund{escrowed: big.NewInt(0), inFlight: big.NewInt(0)}
	if err := p.putState(sm, _fundKey, &f); err != nil {
		return err
	}
	log.L().Info("Initialized survey protocol.",
		zap.String("owner", actionCtx.Caller.String()),
		zap.String("operator", operator.String()))
	return nil
}

func (p *Protocol) state(sr protocol.StateReader, key []byte, value interface{}) error {
	keyHash := hash.Hash160b(append(p.keyPrefix, key...))
	return sr.State(keyHash, value)
}

func (p *Protocol) putState(sm protocol.StateManager, key []byte, value interface{}) error {
	keyHash := hash.Hash160b(append(p.keyPrefix, key...))
	return sm.PutState(keyHash, value)
}

func (p *Protocol) deleteState(sm protocol.StateManager, key []byte) error {
	keyHash := hash.Hash160b(append(p.keyPrefix, key...))
	return sm.DelState(keyHash)
}

// transfer moves value between two ledger accounts
func transfer(sm protocol.StateManager, from, to address.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	sender, err := accountutil.LoadAccount(sm, from)
	if err != nil {
		return errors.Wrapf(err, "failed to load the account of sender %s", from.String())
	}
	if err := sender.SubBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to update the balance of sender %s", from.String())
	}
	if err := accountutil.StoreAccount(sm, from, sender); err != nil {
		return errors.Wrapf(err, "failed to store account %s", from.String())
	}
	recipient, err := accountutil.LoadOrCreateAccount(sm, to)
	if err != nil {
		return errors.Wrapf(err, "failed to load or create the account of recipient %s", to.String())
	}
	if err := recipient.AddBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to update the balance of recipient %s", to.String())
	}
	return accountutil.StoreAccount(sm, to, recipient)
}

// run executes op against a snapshot of the working set; any error rolls every
// local write back before it is returned.
func run(sm protocol.StateManager, op func() error) error {
	sn := sm.Snapshot()
	if err := op(); err != nil {
		if revertErr := sm.Revert(sn); revertErr != nil {
			return errors.Wrapf(revertErr, "failed to revert to snapshot %d after %v", sn, err)
		}
		return err
	}
	return nil
}
