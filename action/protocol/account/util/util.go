// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

// Package accountutil provides the helpers to load and store account states.
package accountutil

import (
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/quizzlerproject/survey-core/action/protocol"
	"github.com/quizzlerproject/survey-core/state"
)

// LoadOrCreateAccount either loads an account state or creates an account state
func LoadOrCreateAccount(sm protocol.StateManager, addr address.Address) (*state.Account, error) {
	var account state.Account
	addrHash := hash.BytesToHash160(addr.Bytes())
	err := sm.State(addrHash, &account)
	if err == nil {
		return &account, nil
	}
	if errors.Cause(err) == state.ErrStateNotExist {
		account = state.EmptyAccount()
		if err := sm.PutState(addrHash, &account); err != nil {
			return nil, errors.Wrapf(err, "failed to put state for account %x", addrHash)
		}
		return &account, nil
	}
	return nil, err
}

// LoadAccount loads an account state. A missing account reads as an empty one.
func LoadAccount(sr protocol.StateReader, addr address.Address) (*state.Account, error) {
	var account state.Account
	if err := sr.State(hash.BytesToHash160(addr.Bytes()), &account); err != nil {
		if errors.Cause(err) == state.ErrStateNotExist {
			account = state.EmptyAccount()
			return &account, nil
		}
		return nil, err
	}
	return &account, nil
}

// StoreAccount puts the updated account state to the working set
func StoreAccount(sm protocol.StateManager, addr address.Address, account *state.Account) error {
	return sm.PutState(hash.BytesToHash160(addr.Bytes()), account)
}

// Recorded tests if an account has been actually stored
func Recorded(sr protocol.StateReader, addr address.Address) (bool, error) {
	var account state.Account
	err := sr.State(hash.BytesToHash160(addr.Bytes()), &account)
	if err == nil {
		return true, nil
	}
	if errors.Cause(err) == state.ErrStateNotExist {
		return false, nil
	}
	return false, err
}
