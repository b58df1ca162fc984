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
	"strconv"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quizzlerproject/survey-core/action/protocol"
	"github.com/quizzlerproject/survey-core/pkg/log"
	"github.com/quizzlerproject/survey-core/state"
)

// assertPayable runs every payout guard. It consults both the confirmed
// reward set and the pending reservations, so two initiations for the same
// participant, or for the last open slot, can never both pass.
func (p *Protocol) assertPayable(sr protocol.StateReader, id string, c *Campaign, participant address.Address) error {
	if c.Canceled {
		return errors.Wrapf(ErrCampaignCanceled, "campaign id = %s", id)
	}
	paid, err := p.isRewarded(sr, id, participant)
	if err != nil {
		return err
	}
	if paid {
		return errors.Wrapf(ErrAlreadyRewarded, "participant %s on campaign %s", participant.String(), id)
	}
	pending := pendingReward{}
	err = p.state(sr, pendingRewardKey(id, participant), &pending)
	if err == nil {
		return errors.Wrapf(ErrRewardPending, "participant %s on campaign %s", participant.String(), id)
	}
	if errors.Cause(err) != state.ErrStateNotExist {
		return err
	}
	if c.RewardedCount+c.PendingCount >= c.Cap {
		return errors.Wrapf(ErrCapReached, "campaign id = %s, cap = %d", id, c.Cap)
	}
	return nil
}

// RewardParticipant pays the campaign reward to the participant exactly once.
// Manager only. On a direct-transfer campaign the payout commits within this
// call and the returned handle is nil. On an issuer campaign the payout is
// initiated against the issuer resource and a pending handle is returned; the
// ledger commits or rolls back in the continuation.
func (p *Protocol) RewardParticipant(ctx context.Context, sm protocol.StateManager, id string, participant address.Address) (*PendingHandle, error) {
	var handle *PendingHandle
	err := run(sm, func() error {
		if err := p.assertManager(ctx, sm); err != nil {
			return err
		}
		c, err := p.getCampaign(sm, id)
		if err != nil {
			return err
		}
		if err := p.assertPayable(sm, id, c, participant); err != nil {
			return err
		}
		if c.Issuer == nil {
			return p.payDirect(ctx, sm, id, c, participant)
		}
		handle, err = p.initiateMint(ctx, sm, id, c, participant)
		return err
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// payDirect transfers the reward unit and updates the ledger as one step
func (p *Protocol) payDirect(ctx context.Context, sm protocol.StateManager, id string, c *Campaign, participant address.Address) error {
	c.RewardedCount++
	if err := p.putCampaign(sm, id, c); err != nil {
		return err
	}
	if err := p.putState(sm, rewardedKey(id, participant), &rewarded{}); err != nil {
		return err
	}
	if err := p.updateFund(sm, new(big.Int).Neg(c.RewardAmount), nil); err != nil {
		return err
	}
	if err := transfer(sm, p.addr, participant, c.RewardAmount); err != nil {
		return err
	}
	log.L().Info("Rewarded participant.",
		zap.String("id", id),
		zap.String("participant", participant.String()),
		zap.String("rewardAmount", c.RewardAmount.String()),
		zap.Uint64("participantsRewarded", c.RewardedCount))
	return nil
}

// initiateMint reserves the payout slot, escrows the attached deposit and
// issues the mint. The reservation blocks duplicate initiations until the
// continuation resolves it.
func (p *Protocol) initiateMint(ctx context.Context, sm protocol.StateManager, id string, c *Campaign, participant address.Address) (*PendingHandle, error) {
	if p.issuer == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "no issuer boundary is configured")
	}
	actionCtx := protocol.MustGetActionCtx(ctx)
	deposit := actionCtx.AttachedDeposit
	if deposit == nil {
		deposit = big.NewInt(0)
	}
	correlationID := p.correlationID(ctx, opMint, []byte(id), participant.Bytes())
	tokenID := strconv.FormatUint(c.RewardedCount+c.PendingCount, 10)

	c.PendingCount++
	if err := p.putCampaign(sm, id, c); err != nil {
		return nil, err
	}
	reservation := pendingReward{
		correlationID: correlationID,
		deposit:       deposit,
		initiatedAt:   p.clk.Now(),
	}
	if err := p.putState(sm, pendingRewardKey(id, participant), &reservation); err != nil {
		return nil, err
	}
	if err := p.putOperation(sm, correlationID, &operation{
		kind:        opMint,
		campaignID:  id,
		participant: participant,
	}); err != nil {
		return nil, err
	}
	if err := p.updateFund(sm, nil, deposit); err != nil {
		return nil, err
	}
	if err := transfer(sm, actionCtx.Caller, p.addr, deposit); err != nil {
		return nil, err
	}
	// the external call is the last action on this path
	if err := p.issuer.Mint(ctx, c.Issuer, participant, tokenID, deposit, correlationID); err != nil {
		return nil, errors.Wrapf(ErrExternalOperationFailed, "failed to initiate mint: %v", err)
	}
	_asyncOpMtc.WithLabelValues("mint", "initiated").Inc()
	log.L().Info("Initiated reward mint.",
		zap.String("id", id),
		zap.String("participant", participant.String()),
		zap.String("tokenId", tokenID),
		zap.String("correlationId", hex.EncodeToString(correlationID[:])))
	return &PendingHandle{CorrelationID: correlationID}, nil
}

// settleMint is the mint continuation. Success commits the reserved slot;
// failure releases it and routes the attached deposit to the operator.
func (p *Protocol) settleMint(ctx context.Context, sm protocol.StateManager, op *operation, res *OperationResult) (bool, error) {
	committed := false
	err := run(sm, func() error {
		c, err := p.getCampaign(sm, op.campaignID)
		if err != nil {
			return err
		}
		reservation := pendingReward{}
		if err := p.state(sm, pendingRewardKey(op.campaignID, op.participant), &reservation); err != nil {
			return err
		}
		if c.PendingCount == 0 {
			return errors.Errorf("no pending payout on campaign %s", op.campaignID)
		}
		c.PendingCount--
		if err := p.deleteState(sm, pendingRewardKey(op.campaignID, op.participant)); err != nil {
			return err
		}
		if err := p.deleteState(sm, operationKey(res.CorrelationID)); err != nil {
			return err
		}
		if err := p.updateFund(sm, nil, new(big.Int).Neg(reservation.deposit)); err != nil {
			return err
		}
		if res.Err == nil {
			c.RewardedCount++
			if err := p.putCampaign(sm, op.campaignID, c); err != nil {
				return err
			}
			if err := p.putState(sm, rewardedKey(op.campaignID, op.participant), &rewarded{}); err != nil {
				return err
			}
			if err := transfer(sm, p.addr, c.Issuer, reservation.deposit); err != nil {
				return err
			}
			committed = true
			_asyncOpMtc.WithLabelValues("mint", "committed").Inc()
			log.L().Info("Confirmed reward mint.",
				zap.String("id", op.campaignID),
				zap.String("participant", op.participant.String()),
				zap.Uint64("participantsRewarded", c.RewardedCount))
			return nil
		}
		if err := p.putCampaign(sm, op.campaignID, c); err != nil {
			return err
		}
		a := admin{}
		if err := p.state(sm, _adminKey, &a); err != nil {
			return err
		}
		if err := transfer(sm, p.addr, a.operator, reservation.deposit); err != nil {
			return err
		}
		_asyncOpMtc.WithLabelValues("mint", "rolledback").Inc()
		log.L().Warn("Reward mint failed, released the reserved slot.",
			zap.String("id", op.campaignID),
			zap.String("participant", op.participant.String()),
			zap.Error(res.Err))
		return nil
	})
	if err != nil {
		return false, err
	}
	return committed, nil
}
