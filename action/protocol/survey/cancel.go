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
)

// CancelCampaign terminates a campaign. Sponsor or manager only. On a
// direct-transfer campaign the unspent reward budget is refunded to the
// sponsor; an issuer campaign holds no escrowed budget, so cancellation only
// stops further payouts. Cancellation is rejected while a payout is in flight,
// since its slot is neither spent nor refundable until the continuation runs.
func (p *Protocol) CancelCampaign(ctx context.Context, sm protocol.StateManager, id string) error {
	return run(sm, func() error {
		c, err := p.getCampaign(sm, id)
		if err != nil {
			return err
		}
		if err := p.assertSponsorOrManager(ctx, sm, c.Sponsor); err != nil {
			return err
		}
		if c.Canceled {
			return errors.Wrapf(ErrAlreadyCanceled, "campaign id = %s", id)
		}
		if c.RewardedCount >= c.Cap {
			return errors.Wrapf(ErrCampaignFinished, "campaign id = %s has rewarded all %d participants", id, c.Cap)
		}
		if c.PendingCount > 0 {
			return errors.Wrapf(ErrRewardPending, "campaign id = %s has %d unresolved payouts", id, c.PendingCount)
		}
		refund := big.NewInt(0)
		if c.Issuer == nil {
			remaining := new(big.Int).SetUint64(c.Cap - c.RewardedCount)
			refund = remaining.Mul(remaining, c.RewardAmount)
			if err := p.updateFund(sm, new(big.Int).Neg(refund), nil); err != nil {
				return err
			}
			if err := transfer(sm, p.addr, c.Sponsor, refund); err != nil {
				return err
			}
		}
		c.Canceled = true
		if err := p.putCampaign(sm, id, c); err != nil {
			return err
		}
		log.L().Info("Canceled survey campaign.",
			zap.String("id", id),
			zap.String("sponsor", c.Sponsor.String()),
			zap.Uint64("participantsRewarded", c.RewardedCount),
			zap.String("refund", refund.String()))
		return nil
	})
}
