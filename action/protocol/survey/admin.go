// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package survey

import (
	"context"
	"math/big"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quizzlerproject/survey-core/action/protocol"
	accountutil "github.com/quizzlerproject/survey-core/action/protocol/account/util"
	"github.com/quizzlerproject/survey-core/pkg/log"
	"github.com/quizzlerproject/survey-core/state"
)

// admin stores the admin data of the survey protocol. The owner is immutable
// after genesis; the operator account and the fee rate are owner-adjustable.
type admin struct {
	owner    address.Address
	operator address.Address
	feeRate  *big.Int
}

type adminGob struct {
	Owner    []byte
	Operator []byte
	FeeRate  string
}

// Serialize serializes admin state into bytes
func (a *admin) Serialize() ([]byte, error) {
	gen := adminGob{
		Owner:    a.owner.Bytes(),
		Operator: a.operator.Bytes(),
		FeeRate:  a.feeRate.String(),
	}
	return state.GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into admin state
func (a *admin) Deserialize(data []byte) error {
	gen := adminGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	var err error
	if a.owner, err = address.FromBytes(gen.Owner); err != nil {
		return err
	}
	if a.operator, err = address.FromBytes(gen.Operator); err != nil {
		return err
	}
	feeRate, ok := new(big.Int).SetString(gen.FeeRate, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set fee rate")
	}
	a.feeRate = feeRate
	return nil
}

// manager stores the enabled status of one manager principal
type manager struct {
	enabled bool
}

type managerGob struct {
	Enabled bool
}

// Serialize serializes manager state into bytes
func (m *manager) Serialize() ([]byte, error) {
	return state.GobBasedSerialize(&managerGob{Enabled: m.enabled})
}

// Deserialize deserializes bytes into manager state
func (m *manager) Deserialize(data []byte) error {
	gen := managerGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	m.enabled = gen.Enabled
	return nil
}

func managerKey(addr address.Address) []byte {
	return append(_managerKeyPrefix, addr.Bytes()...)
}

// SetManager toggles the manager status of the given principal. Owner only,
// idempotent.
func (p *Protocol) SetManager(ctx context.Context, sm protocol.StateManager, addr address.Address, enabled bool) error {
	return run(sm, func() error {
		if err := p.assertOwner(ctx, sm); err != nil {
			return err
		}
		return p.putState(sm, managerKey(addr), &manager{enabled: enabled})
	})
}

// IsManager returns whether the given principal is an enabled manager
func (p *Protocol) IsManager(ctx context.Context, sr protocol.StateReader, addr address.Address) (bool, error) {
	m := manager{}
	if err := p.state(sr, managerKey(addr), &m); err != nil {
		if errors.Cause(err) == state.ErrStateNotExist {
			return false, nil
		}
		return false, err
	}
	return m.enabled, nil
}

// SetOperator updates the operator account receiving fees. Owner only.
func (p *Protocol) SetOperator(ctx context.Context, sm protocol.StateManager, addr address.Address) error {
	return run(sm, func() error {
		if err := p.assertOwner(ctx, sm); err != nil {
			return err
		}
		a := admin{}
		if err := p.state(sm, _adminKey, &a); err != nil {
			return err
		}
		a.operator = addr
		return p.putState(sm, _adminKey, &a)
	})
}

// Operator returns the operator account
func (p *Protocol) Operator(ctx context.Context, sr protocol.StateReader) (address.Address, error) {
	a := admin{}
	if err := p.state(sr, _adminKey, &a); err != nil {
		return nil, err
	}
	return a.operator, nil
}

// EmergencyWithdraw moves value out of the protocol's free balance. Owner
// only. The free balance excludes escrowed campaign budgets and the deposits
// of unresolved external operations.
func (p *Protocol) EmergencyWithdraw(ctx context.Context, sm protocol.StateManager, amount *big.Int, to address.Address) error {
	return run(sm, func() error {
		if err := p.assertOwner(ctx, sm); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return errors.Wrap(ErrInvalidArgument, "withdrawal amount must be positive")
		}
		acc, err := accountutil.LoadAccount(sm, p.addr)
		if err != nil {
			return err
		}
		f := fund{}
		if err := p.state(sm, _fundKey, &f); err != nil {
			return err
		}
		free := new(big.Int).Sub(acc.Balance, f.escrowed)
		free.Sub(free, f.inFlight)
		if amount.Cmp(free) > 0 {
			return errors.Wrapf(ErrInsufficientBalance, "free %s, requested %s", free.String(), amount.String())
		}
		if err := transfer(sm, p.addr, to, amount); err != nil {
			return err
		}
		log.L().Warn("Emergency withdrawal.",
			zap.String("to", to.String()),
			zap.String("amount", amount.String()))
		return nil
	})
}

func (p *Protocol) assertOwner(ctx context.Context, sr protocol.StateReader) error {
	actionCtx := protocol.MustGetActionCtx(ctx)
	a := admin{}
	if err := p.state(sr, _adminKey, &a); err != nil {
		return err
	}
	if actionCtx.Caller.String() != a.owner.String() {
		return errors.Wrap(ErrUnauthorized, "only the owner can call this method")
	}
	return nil
}

func (p *Protocol) assertManager(ctx context.Context, sr protocol.StateReader) error {
	actionCtx := protocol.MustGetActionCtx(ctx)
	enabled, err := p.IsManager(ctx, sr, actionCtx.Caller)
	if err != nil {
		return err
	}
	if !enabled {
		return errors.Wrap(ErrUnauthorized, "only a manager can call this method")
	}
	return nil
}

func (p *Protocol) assertSponsorOrManager(ctx context.Context, sr protocol.StateReader, sponsor address.Address) error {
	actionCtx := protocol.MustGetActionCtx(ctx)
	if actionCtx.Caller.String() == sponsor.String() {
		return nil
	}
	enabled, err := p.IsManager(ctx, sr, actionCtx.Caller)
	if err != nil {
		return err
	}
	if !enabled {
		return errors.Wrap(ErrUnauthorized, "only the campaign sponsor or a manager can call this method")
	}
	return nil
}

// assertPrivate restricts continuation entry points to the protocol itself
func (p *Protocol) assertPrivate(ctx context.Context) error {
	actionCtx := protocol.MustGetActionCtx(ctx)
	if actionCtx.Caller.String() != p.addr.String() {
		return errors.Wrap(ErrUnauthorized, "continuations are private to the protocol")
	}
	return nil
}
