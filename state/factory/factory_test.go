// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package factory

import (
	"math/big"
	"testing"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/quizzlerproject/survey-core/state"
)

func TestFactoryStateRoundTrip(t *testing.T) {
	require := require.New(t)
	f := NewFactory()
	key := hash.Hash160b([]byte("account"))

	acc := state.Account{}
	err := f.State(key, &acc)
	require.Equal(state.ErrStateNotExist, errors.Cause(err))

	stored := state.Account{Nonce: 3, Balance: big.NewInt(42)}
	require.NoError(f.PutState(key, &stored))
	require.NoError(f.State(key, &acc))
	require.Equal(uint64(3), acc.Nonce)
	require.Zero(acc.Balance.Cmp(big.NewInt(42)))

	require.NoError(f.DelState(key))
	err = f.State(key, &acc)
	require.Equal(state.ErrStateNotExist, errors.Cause(err))
}

func TestFactorySnapshotRevert(t *testing.T) {
	require := require.New(t)
	f := NewFactory()
	key1 := hash.Hash160b([]byte("one"))
	key2 := hash.Hash160b([]byte("two"))

	require.NoError(f.PutState(key1, &state.Account{Balance: big.NewInt(1)}))

	sn := f.Snapshot()
	require.NoError(f.PutState(key1, &state.Account{Balance: big.NewInt(10)}))
	require.NoError(f.PutState(key2, &state.Account{Balance: big.NewInt(2)}))
	require.NoError(f.DelState(key1))

	require.NoError(f.Revert(sn))
	acc := state.Account{}
	require.NoError(f.State(key1, &acc))
	require.Zero(acc.Balance.Cmp(big.NewInt(1)))
	err := f.State(key2, &acc)
	require.Equal(state.ErrStateNotExist, errors.Cause(err))

	// a revert consumes the snapshot
	require.Equal(ErrInvalidSnapshot, errors.Cause(f.Revert(sn)))
}

func TestFactoryNestedSnapshots(t *testing.T) {
	require := require.New(t)
	f := NewFactory()
	key := hash.Hash160b([]byte("nested"))

	sn0 := f.Snapshot()
	require.NoError(f.PutState(key, &state.Account{Balance: big.NewInt(1)}))
	sn1 := f.Snapshot()
	require.NoError(f.PutState(key, &state.Account{Balance: big.NewInt(2)}))

	require.NoError(f.Revert(sn1))
	acc := state.Account{}
	require.NoError(f.State(key, &acc))
	require.Zero(acc.Balance.Cmp(big.NewInt(1)))

	require.NoError(f.Revert(sn0))
	err := f.State(key, &acc)
	require.Equal(state.ErrStateNotExist, errors.Cause(err))
}

func TestFactoryCommit(t *testing.T) {
	require := require.New(t)
	f := NewFactory()
	key := hash.Hash160b([]byte("commit"))

	require.Zero(f.Height())
	f.Snapshot()
	require.NoError(f.PutState(key, &state.Account{Balance: big.NewInt(5)}))
	f.Commit()
	require.Equal(uint64(1), f.Height())

	// sealed writes can no longer be reverted
	require.Error(f.Revert(0))
	acc := state.Account{}
	require.NoError(f.State(key, &acc))
	require.Zero(acc.Balance.Cmp(big.NewInt(5)))
}
