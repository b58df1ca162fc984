// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package state

import (
	"math/big"

	"github.com/pkg/errors"
)

var (
	// ErrNotEnoughBalance is the error that the balance is not enough
	ErrNotEnoughBalance = errors.New("not enough balance")

	// ErrInvalidAmount is the error that the amount to add or subtract is invalid
	ErrInvalidAmount = errors.New("invalid amount")
)

// Account is the canonical representation of an account on the survey ledger.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

type accountGob struct {
	Nonce   uint64
	Balance string
}

// EmptyAccount returns an empty account
func EmptyAccount() Account {
	return Account{
		Balance: big.NewInt(0),
	}
}

// Serialize serializes account state into bytes
func (st *Account) Serialize() ([]byte, error) {
	gen := accountGob{
		Nonce:   st.Nonce,
		Balance: st.Balance.String(),
	}
	return GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into account state
func (st *Account) Deserialize(data []byte) error {
	gen := accountGob{}
	if err := GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	balance, ok := new(big.Int).SetString(gen.Balance, 10)
	if !ok {
		return errors.Wrap(ErrStateDeserialization, "failed to set account balance")
	}
	st.Nonce = gen.Nonce
	st.Balance = balance
	return nil
}

// AddBalance adds balance to the account
func (st *Account) AddBalance(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount %v shouldn't be negative", amount)
	}
	if st.Balance == nil {
		st.Balance = new(big.Int).Set(amount)
		return nil
	}
	st.Balance = new(big.Int).Add(st.Balance, amount)
	return nil
}

// SubBalance subtracts balance from the account
func (st *Account) SubBalance(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount %v shouldn't be negative", amount)
	}
	// make sure there's enough fund to spend
	if st.Balance == nil || amount.Cmp(st.Balance) == 1 {
		return ErrNotEnoughBalance
	}
	st.Balance = new(big.Int).Sub(st.Balance, amount)
	return nil
}

// HasSufficientBalance returns true if the account balance covers the amount
func (st *Account) HasSufficientBalance(amount *big.Int) bool {
	if amount == nil {
		return false
	}
	if st.Balance == nil {
		return amount.Sign() == 0
	}
	return amount.Cmp(st.Balance) <= 0
}

// Clone clones the account state
func (st *Account) Clone() *Account {
	s := *st
	s.Balance = new(big.Int).Set(st.Balance)
	return &s
}
