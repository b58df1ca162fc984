// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package survey

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quizzlerproject/survey-core/action/protocol"
	"github.com/quizzlerproject/survey-core/pkg/log"
)

// CreateIssuerCampaignRequest carries the inputs of issuer campaign creation.
// The reward is an issued token instead of a transfer, so there is no reward
// amount; the attached deposit must cover the service fee plus the cost of
// provisioning the issuer resource.
type CreateIssuerCampaignRequest struct {
	ID       string
	Cap      uint64
	Fee      *big.Int
	Metadata Metadata
}

// provisionCost prices the deployment and initialization of one issuer resource
func (p *Protocol) provisionCost() *big.Int {
	cost := new(big.Int).Mul(p.cfg.StorageByteCost, new(big.Int).SetUint64(p.cfg.ProvisionPayloadSize))
	return cost.Add(cost, p.cfg.ProvisionBaseCost)
}

// issuerAddress derives the deterministic address of a campaign's issuer resource
func (p *Protocol) issuerAddress(id string) (address.Address, error) {
	h := hash.Hash160b(append(p.addr.Bytes(), []byte(id)...))
	return address.FromBytes(h[:])
}

// CreateIssuerCampaign initiates the creation of a campaign backed by its own
// issuer resource. No campaign record exists until the provisioning confirms;
// until then the id is held by a pending creation record and the deposit is
// tracked as in-flight value.
func (p *Protocol) CreateIssuerCampaign(ctx context.Context, sm protocol.StateManager, req *CreateIssuerCampaignRequest) (*PendingHandle, error) {
	var handle *PendingHandle
	err := run(sm, func() error {
		actionCtx := protocol.MustGetActionCtx(ctx)
		if req.ID == "" {
			return errors.Wrap(ErrInvalidArgument, "campaign id must not be empty")
		}
		if req.Cap == 0 {
			return errors.Wrap(ErrInvalidArgument, "participants limit must be greater than 0")
		}
		if req.Metadata.Name == "" || req.Metadata.Symbol == "" {
			return errors.Wrap(ErrInvalidArgument, "issuer campaigns require a name and a symbol")
		}
		if p.provisioner == nil {
			return errors.Wrap(ErrInvalidArgument, "no provisioner boundary is configured")
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
		cost := p.provisionCost()
		required := new(big.Int).Add(fee, cost)
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
		issuerAddr, err := p.issuerAddress(req.ID)
		if err != nil {
			return err
		}
		correlationID := p.correlationID(ctx, opProvision, []byte(req.ID))
		pc := pendingCreation{
			correlationID: correlationID,
			sponsor:       actionCtx.Caller,
			cap:           req.Cap,
			fee:           fee,
			deposit:       deposit,
			provisionCost: cost,
			issuer:        issuerAddr,
			metadata:      req.Metadata,
			initiatedAt:   p.clk.Now(),
		}
		if err := p.putState(sm, pendingCreationKey(req.ID), &pc); err != nil {
			return err
		}
		if err := p.putOperation(sm, correlationID, &operation{
			kind:       opProvision,
			campaignID: req.ID,
		}); err != nil {
			return err
		}
		if err := p.updateFund(sm, nil, deposit); err != nil {
			return err
		}
		if err := transfer(sm, actionCtx.Caller, p.addr, deposit); err != nil {
			return err
		}
		if err := transfer(sm, p.addr, issuerAddr, cost); err != nil {
			return err
		}
		// the external call is the last action on this path
		if err := p.provisioner.Deploy(ctx, issuerAddr, p.addr, p.cfg.ProvisionPayloadSize, cost, correlationID); err != nil {
			return errors.Wrapf(ErrExternalOperationFailed, "failed to initiate provisioning: %v", err)
		}
		_asyncOpMtc.WithLabelValues("provision", "initiated").Inc()
		log.L().Info("Initiated issuer campaign creation.",
			zap.String("id", req.ID),
			zap.Uint64("participantsLimit", req.Cap),
			zap.String("issuer", issuerAddr.String()),
			zap.String("sponsor", actionCtx.Caller.String()),
			zap.String("correlationId", hex.EncodeToString(correlationID[:])))
		handle = &PendingHandle{CorrelationID: correlationID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// settleProvision is the provisioning continuation. Success writes the
// campaign record and forwards the fee; failure reclaims the provisioning
// funds and refunds the full deposit to the sponsor.
func (p *Protocol) settleProvision(ctx context.Context, sm protocol.StateManager, op *operation, res *OperationResult) (bool, error) {
	committed := false
	err := run(sm, func() error {
		pc := pendingCreation{}
		if err := p.state(sm, pendingCreationKey(op.campaignID), &pc); err != nil {
			return err
		}
		if err := p.deleteState(sm, pendingCreationKey(op.campaignID)); err != nil {
			return err
		}
		if err := p.deleteState(sm, operationKey(res.CorrelationID)); err != nil {
			return err
		}
		if err := p.updateFund(sm, nil, new(big.Int).Neg(pc.deposit)); err != nil {
			return err
		}
		if res.Err == nil {
			a := admin{}
			if err := p.state(sm, _adminKey, &a); err != nil {
				return err
			}
			if err := transfer(sm, p.addr, a.operator, pc.fee); err != nil {
				return err
			}
			c := &Campaign{
				Sponsor:      pc.sponsor,
				Cap:          pc.cap,
				RewardAmount: big.NewInt(0),
				Issuer:       pc.issuer,
				Metadata:     pc.metadata,
			}
			if err := p.putCampaign(sm, op.campaignID, c); err != nil {
				return err
			}
			committed = true
			_asyncOpMtc.WithLabelValues("provision", "committed").Inc()
			log.L().Info("Created issuer campaign.",
				zap.String("id", op.campaignID),
				zap.String("issuer", pc.issuer.String()),
				zap.String("sponsor", pc.sponsor.String()))
			return nil
		}
		if err := transfer(sm, pc.issuer, p.addr, pc.provisionCost); err != nil {
			return err
		}
		if err := transfer(sm, p.addr, pc.sponsor, pc.deposit); err != nil {
			return err
		}
		_asyncOpMtc.WithLabelValues("provision", "rolledback").Inc()
		log.L().Warn("Issuer provisioning failed, refunded the sponsor.",
			zap.String("id", op.campaignID),
			zap.String("sponsor", pc.sponsor.String()),
			zap.Error(res.Err))
		return nil
	})
	if err != nil {
		return false, err
	}
	return committed, nil
}
