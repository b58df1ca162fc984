// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package survey

import (
	"context"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/quizzlerproject/survey-core/action/protocol"
	accountutil "github.com/quizzlerproject/survey-core/action/protocol/account/util"
	"github.com/quizzlerproject/survey-core/state/factory"
	"github.com/quizzlerproject/survey-core/test/identityset"
)

func testConfig() Config {
	return Config{
		PerParticipantFeeRate: big.NewInt(10),
		ProvisionPayloadSize:  100,
		StorageByteCost:       big.NewInt(2),
		ProvisionBaseCost:     big.NewInt(50),
	}
}

// callCtx builds the action context of one call. The nonce doubles as the
// action hash seed, so distinct nonces yield distinct correlation ids.
func callCtx(caller address.Address, deposit *big.Int, nonce uint64) context.Context {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], nonce)
	return protocol.WithActionCtx(context.Background(), protocol.ActionCtx{
		Caller:          caller,
		ActionHash:      hash.Hash256b(seed[:]),
		Nonce:           nonce,
		AttachedDeposit: deposit,
	})
}

func newTestProtocol(t *testing.T, opts ...Option) (*Protocol, *factory.Factory) {
	p, err := NewProtocol(testConfig(), opts...)
	require.NoError(t, err)
	sm := factory.NewFactory()
	require.NoError(t, p.CreateGenesisStates(callCtx(identityset.Address(0), nil, 0), sm))
	return p, sm
}

func fundAccount(t *testing.T, sm protocol.StateManager, addr address.Address, amount int64) {
	acc, err := accountutil.LoadOrCreateAccount(sm, addr)
	require.NoError(t, err)
	require.NoError(t, acc.AddBalance(big.NewInt(amount)))
	require.NoError(t, accountutil.StoreAccount(sm, addr, acc))
}

func balanceOf(t *testing.T, sm protocol.StateReader, addr address.Address) *big.Int {
	acc, err := accountutil.LoadAccount(sm, addr)
	require.NoError(t, err)
	return acc.Balance
}

func TestCreateGenesisStates(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	p, sm := newTestProtocol(t)

	enabled, err := p.IsManager(context.Background(), sm, owner)
	require.NoError(err)
	require.True(enabled)
	operator, err := p.Operator(context.Background(), sm)
	require.NoError(err)
	require.Equal(owner.String(), operator.String())

	// the protocol refuses a second initialization
	require.Error(p.CreateGenesisStates(callCtx(owner, nil, 1), sm))

	// a configured operator account overrides the default
	cfg := testConfig()
	cfg.OperatorAccount = identityset.Address(7).String()
	p2, err := NewProtocol(cfg)
	require.NoError(err)
	sm2 := factory.NewFactory()
	require.NoError(p2.CreateGenesisStates(callCtx(owner, nil, 0), sm2))
	operator, err = p2.Operator(context.Background(), sm2)
	require.NoError(err)
	require.Equal(identityset.Address(7).String(), operator.String())
}

func TestSetManager(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	stranger := identityset.Address(6)
	p, sm := newTestProtocol(t)

	err := p.SetManager(callCtx(stranger, nil, 1), sm, stranger, true)
	require.Equal(ErrUnauthorized, errors.Cause(err))

	require.NoError(p.SetManager(callCtx(owner, nil, 2), sm, identityset.Address(1), true))
	enabled, err := p.IsManager(context.Background(), sm, identityset.Address(1))
	require.NoError(err)
	require.True(enabled)

	require.NoError(p.SetManager(callCtx(owner, nil, 3), sm, identityset.Address(1), false))
	enabled, err = p.IsManager(context.Background(), sm, identityset.Address(1))
	require.NoError(err)
	require.False(enabled)
}

func TestSetOperator(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	p, sm := newTestProtocol(t)

	err := p.SetOperator(callCtx(identityset.Address(6), nil, 1), sm, identityset.Address(7))
	require.Equal(ErrUnauthorized, errors.Cause(err))

	require.NoError(p.SetOperator(callCtx(owner, nil, 2), sm, identityset.Address(7)))
	operator, err := p.Operator(context.Background(), sm)
	require.NoError(err)
	require.Equal(identityset.Address(7).String(), operator.String())

	// the new operator receives the fee of the next campaign
	sponsor := identityset.Address(1)
	fundAccount(t, sm, sponsor, 1000)
	_, err = p.CreateCampaign(callCtx(sponsor, big.NewInt(330), 3), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          3,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(30),
	})
	require.NoError(err)
	require.Zero(balanceOf(t, sm, identityset.Address(7)).Cmp(big.NewInt(30)))
}

func TestEmergencyWithdraw(t *testing.T) {
	require := require.New(t)
	owner := identityset.Address(0)
	sponsor := identityset.Address(1)
	receiver := identityset.Address(6)
	p, sm := newTestProtocol(t)
	require.NoError(p.SetOperator(callCtx(owner, nil, 1), sm, identityset.Address(7)))
	fundAccount(t, sm, sponsor, 1000)

	// over-deposit leaves 70 of free balance on the protocol address
	_, err := p.CreateCampaign(callCtx(sponsor, big.NewInt(400), 2), sm, &CreateCampaignRequest{
		ID:           "survey-001",
		Cap:          3,
		RewardAmount: big.NewInt(100),
		Fee:          big.NewInt(30),
	})
	require.NoError(err)
	require.Zero(balanceOf(t, sm, p.Address()).Cmp(big.NewInt(370)))

	err = p.EmergencyWithdraw(callCtx(sponsor, nil, 3), sm, big.NewInt(70), receiver)
	require.Equal(ErrUnauthorized, errors.Cause(err))

	// escrowed campaign budgets are not withdrawable
	err = p.EmergencyWithdraw(callCtx(owner, nil, 4), sm, big.NewInt(71), receiver)
	require.Equal(ErrInsufficientBalance, errors.Cause(err))

	err = p.EmergencyWithdraw(callCtx(owner, nil, 5), sm, big.NewInt(0), receiver)
	require.Equal(ErrInvalidArgument, errors.Cause(err))

	require.NoError(p.EmergencyWithdraw(callCtx(owner, nil, 6), sm, big.NewInt(70), receiver))
	require.Zero(balanceOf(t, sm, receiver).Cmp(big.NewInt(70)))
	require.Zero(balanceOf(t, sm, p.Address()).Cmp(big.NewInt(300)))
}
