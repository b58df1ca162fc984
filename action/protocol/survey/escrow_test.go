// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package survey

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/quizzlerproject/survey-core/test/identityset"
)

func TestCreateCampaign(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	req := &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          3,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(30),
	}
	c, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(330), 1), sm, req)
	require.NoError(err)
	require.Equal(sponsor.String(), c.Sponsor.String())
	require.Equal(uint64(3), c.Cap)
	require.Zero(c.RewardAmount.Cmp(big.NewInt(100)))
	require.Zero(c.RewardedCount)
	require.False(c.Canceled)
	require.Nil(c.Issuer)

	// sponsor paid the full deposit, the owner (default operator) got the fee,
	// the budget sits escrowed on the protocol address
	require.Zero(balanceOf(t, sm, sponsor).Cmp(big.NewInt(670)))
	require.Zero(balanceOf(t, sm, owner).Cmp(big.NewInt(30)))
	require.Zero(balanceOf(t, sm, p.Address()).Cmp(big.NewInt(300)))

	got, err := p.Campaign(context.Background(), sm, "survey-001")
	require.NoError(err)
	require.Equal(c.Cap, got.Cap)

	_, err = p.CreateCampaign(callCtx(sponsor, big.NewInt(330), 2), sm, req)
	require.Equal(ErrDuplicateCampaign, errors.Cause(err))
}

func TestCreateCampaignValidation(t *testing.T) {
	require := require.New(t)
	sponsor := identityset.Address(1)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	for _, test := range []struct {
		name    string
		req     *CreateCampaignRequest
		deposit *big.Int
		err     error
	}{
		{
			"emptyID",
			&CreateCampaignRequest{Cap: 3, RewardAmount: big.NewInt(100), Fee: big.NewInt(30)},
			big.NewInt(330),
			ErrInvalidArgument,
		},
		{
			"zeroCap",
			&CreateCampaignRequest{ID: "s", RewardAmount: big.NewInt(100), Fee: big.NewInt(30)},
			big.NewInt(330),
			ErrInvalidArgument,
		},
		{
			"zeroReward",
			&CreateCampaignRequest{ID: "s", Cap: 3, RewardAmount: big.NewInt(0), Fee: big.NewInt(30)},
			big.NewInt(330),
			ErrInvalidArgument,
		},
		{
			"feeBelowRate",
			&CreateCampaignRequest{ID: "s", Cap: 3, RewardAmount: big.NewInt(100), Fee: big.NewInt(29)},
			big.NewInt(329),
			ErrInsufficientFee,
		},
		{
			"depositBelowBudget",
			&CreateCampaignRequest{ID: "s", Cap: 3, RewardAmount: big.NewInt(100), Fee: big.NewInt(30)},
			big.NewInt(329),
			ErrInsufficientDeposit,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := p.CreateCampaign(callCtx(sponsor, test.deposit, 1), sm, test.req)
			require.Equal(test.err, errors.Cause(err))
			// nothing moved
			require.Zero(balanceOf(t, sm, sponsor).Cmp(big.NewInt(1000)))
			require.Zero(balanceOf(t, sm, p.Address()).Sign())
		})
	}
}

func TestRewardParticipantDirect(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	p1, p2, p3 := identityset.Address(2), identityset.Address(3), identityset.Address(4)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	_, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(220), 1), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          2,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(20),
	})
	require.NoError(err)

	_, err = p.RewardParticipant(callCtx(sponsor, nil, 2), sm, "survey-001", p1)
	require.Equal(ErrUnauthorized, errors.Cause(err))

	_, err = p.RewardParticipant(callCtx(owner, nil, 3), sm, "no-such-campaign", p1)
	require.Equal(ErrCampaignNotFound, errors.Cause(err))

	handle, err := p.RewardParticipant(callCtx(owner, nil, 4), sm, "survey-001", p1)
	require.NoError(err)
	require.Nil(handle)
	require.Zero(balanceOf(t, sm, p1).Cmp(big.NewInt(100)))
	paid, err := p.IsRewarded(context.Background(), sm, "survey-001", p1)
	require.NoError(err)
	require.True(paid)

	// a participant is paid exactly once
	_, err = p.RewardParticipant(callCtx(owner, nil, 5), sm, "survey-001", p1)
	require.Equal(ErrAlreadyRewarded, errors.Cause(err))
	require.Zero(balanceOf(t, sm, p1).Cmp(big.NewInt(100)))

	_, err = p.RewardParticipant(callCtx(owner, nil, 6), sm, "survey-001", p2)
	require.NoError(err)

	// the cap leaves no slot for a third participant
	_, err = p.RewardParticipant(callCtx(owner, nil, 7), sm, "survey-001", p3)
	require.Equal(ErrCapReached, errors.Cause(err))

	c, err := p.Campaign(context.Background(), sm, "survey-001")
	require.NoError(err)
	require.Equal(uint64(2), c.RewardedCount)
	require.Zero(balanceOf(t, sm, p.Address()).Sign())
}

func TestRewardParticipantOnCanceled(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	_, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(330), 1), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          3,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(30),
	})
	require.NoError(err)
	require.NoError(p.CancelCampaign(callCtx(sponsor, nil, 2), sm, "survey-001"))

	_, err = p.RewardParticipant(callCtx(owner, nil, 3), sm, "survey-001", identityset.Address(2))
	require.Equal(ErrCampaignCanceled, errors.Cause(err))
}

func TestCancelCampaign(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	stranger := identityset.Address(6)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	_, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(330), 1), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          3,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(30),
	})
	require.NoError(err)
	_, err = p.RewardParticipant(callCtx(owner, nil, 2), sm, "survey-001", identityset.Address(2))
	require.NoError(err)

	err = p.CancelCampaign(callCtx(stranger, nil, 3), sm, "survey-001")
	require.Equal(ErrUnauthorized, errors.Cause(err))

	// the un-issued remainder of the budget flows back to the sponsor
	require.NoError(p.CancelCampaign(callCtx(sponsor, nil, 4), sm, "survey-001"))
	require.Zero(balanceOf(t, sm, sponsor).Cmp(big.NewInt(870)))
	require.Zero(balanceOf(t, sm, p.Address()).Sign())
	c, err := p.Campaign(context.Background(), sm, "survey-001")
	require.NoError(err)
	require.True(c.Canceled)

	err = p.CancelCampaign(callCtx(sponsor, nil, 5), sm, "survey-001")
	require.Equal(ErrAlreadyCanceled, errors.Cause(err))
}

func TestCancelFinishedCampaign(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	_, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(110), 1), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          1,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(10),
	})
	require.NoError(err)
	_, err = p.RewardParticipant(callCtx(owner, nil, 2), sm, "survey-001", identityset.Address(2))
	require.NoError(err)

	err = p.CancelCampaign(callCtx(sponsor, nil, 3), sm, "survey-001")
	require.Equal(ErrCampaignFinished, errors.Cause(err))
}

// a manager may cancel on the sponsor's behalf
func TestCancelByManager(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	p, sm := newTestProtocol(t)
	fundAccount(t, sm, sponsor, 1000)

	_, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(330), 1), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          3,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(30),
	})
	require.NoError(err)
	require.NoError(p.CancelCampaign(callCtx(owner, nil, 2), sm, "survey-001"))
	require.Zero(balanceOf(t, sm, sponsor).Cmp(big.NewInt(970)))
}
