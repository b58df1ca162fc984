// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package survey

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quizzlerproject/survey-core/action/protocol"
	"github.com/quizzlerproject/survey-core/pkg/log"
	"github.com/quizzlerproject/survey-core/state"
)

// fund tracks where the value held by the protocol address is committed.
// escrowed backs the un-issued reward budgets of live campaigns; inFlight
// backs the deposits of initiated but unresolved external operations. The
// protocol account balance minus both is the free balance.
type fund struct {
	escrowed *big.Int
	inFlight *big.Int
}

type fundGob struct {
	Escrowed string
	InFlight string
}

// Serialize serializes fund state into bytes
func (f *fund) Serialize() ([]byte, error) {
	gen := fundGob{
		Escrowed: f.escrowed.String(),
		InFlight: f.inFlight.String(),
	}
	return state.GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into fund state
func (f *fund) Deserialize(data []byte) error {
	gen := fundGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	escrowed, ok := new(big.Int).SetString(gen.Escrowed, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set escrowed balance")
	}
	inFlight, ok := new(big.Int).SetString(gen.InFlight, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set in-flight balance")
	}
	f.escrowed = escrowed
	f.inFlight = inFlight
	return nil
}

func (p *Protocol) updateFund(sm protocol.StateManager, deltaEscrowed, deltaInFlight *big.Int) error {
	f := fund{}
	if err := p.state(sm, _fundKey, &f); err != nil {
		return err
	}
	if deltaEscrowed != nil {
		f.escrowed = new(big.Int).Add(f.escrowed, deltaEscrowed)
		if f.escrowed.Sign() < 0 {
			return errors.New("escrowed balance went negative")
		}
	}
	if deltaInFlight != nil {
		f.inFlight = new(big.Int).Add(f.inFlight, deltaInFlight)
		if f.inFlight.Sign() < 0 {
			return errors.New("in-flight balance went negative")
		}
	}
	return p.putState(sm, _fundKey, &f)
}

// CreateCampaignRequest carries the inputs of direct-transfer campaign creation
type CreateCampaignRequest struct {
	ID           string
	Cap          uint64
	RewardAmount *big.Int
	Fee          *big.Int
	Metadata     Metadata
}

// assertFee checks the service fee against the per-participant rate
func assertFee(a *admin, cap uint64, fee *big.Int) error {
	if fee == nil {
		fee = big.NewInt(0)
	}
	feeNeeded := new(big.Int).Mul(a.feeRate, new(big.Int).SetUint64(cap))
	if fee.Cmp(feeNeeded) < 0 {
		return errors.Wrapf(ErrInsufficientFee, "required %s, attached %s", feeNeeded.String(), fee.String())
	}
	return nil
}

// assertNewCampaignID rejects an id that names a live campaign or an
// in-flight creation
func (p *Protocol) assertNewCampaignID(sr protocol.StateReader, id string) error {
	if _, err := p.getCampaign(sr, id); err == nil {
		return errors.Wrapf(ErrDuplicateCampaign, "campaign id = %s", id)
	} else if errors.Cause(err) != ErrCampaignNotFound {
		return err
	}
	pc := pendingCreation{}
	err := p.state(sr, pendingCreationKey(id), &pc)
	if err == nil {
		return errors.Wrapf(ErrDuplicateCampaign, "campaign id = %s is being provisioned", id)
	}
	if errors.Cause(err) != state.ErrStateNotExist {
		return err
	}
	return nil
}

// CreateCampaign creates a direct-transfer campaign. The attached deposit must
// cover the full reward budget plus the service fee; the fee is forwarded to
// the operator account and the budget stays escrowed on the protocol address.
// The campaign record is committed synchronously.
func (p *Protocol) CreateCampaign(ctx context.Context, sm protocol.StateManager, req *CreateCampaignRequest) (*Campaign, error) {
	var c *Campaign
	err := run(sm, func() error {
		actionCtx := protocol.MustGetActionCtx(ctx)
		if req.ID == "" {
			return errors.Wrap(ErrInvalidArgument, "campaign id must not be empty")
		}
		if req.Cap == 0 {
			return errors.Wrap(ErrInvalidArgument, "participants limit must be greater than 0")
		}
		if req.RewardAmount == nil || req.RewardAmount.Sign() <= 0 {
			return errors.Wrap(ErrInvalidArgument, "reward amount must be positive")
		}
		fee := req.Fee
		if fee == nil {
			fee = big.NewInt(0)
		}
		a := admin{}
		if err := p.state(sm, _adminKey, &a); err != nil {
			return err
		}
		if err := assertFee(&a, req.Cap, fee); err != nil {
			return err
		}
		budget := new(big.Int).Mul(req.RewardAmount, new(big.Int).SetUint64(req.Cap))
		required := new(big.Int).Add(budget, fee)
		deposit := actionCtx.AttachedDeposit
		if deposit == nil {
			deposit = big.NewInt(0)
		}
		if deposit.Cmp(required) < 0 {
			return errors.Wrapf(ErrInsufficientDeposit, "required %s, attached %s", required.String(), deposit.String())
		}
		if err := p.assertNewCampaignID(sm, req.ID); err != nil {
			return err
		}
		if err := transfer(sm, actionCtx.Caller, p.addr, deposit); err != nil {
			return err
		}
		if err := transfer(sm, p.addr, a.operator, fee); err != nil {
			return err
		}
		if err := p.updateFund(sm, budget, nil); err != nil {
			return err
		}
		c = &Campaign{
			Sponsor:      actionCtx.Caller,
			Cap:          req.Cap,
			RewardAmount: new(big.Int).Set(req.RewardAmount),
			Metadata:     req.Metadata,
		}
		if err := p.putCampaign(sm, req.ID, c); err != nil {
			return err
		}
		log.L().Info("Created survey campaign.",
			zap.String("id", req.ID),
			zap.Uint64("participantsLimit", req.Cap),
			zap.String("rewardAmount", req.RewardAmount.String()),
			zap.String("fee", fee.String()),
			zap.String("sponsor", actionCtx.Caller.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}
