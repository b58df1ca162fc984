// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

// Package protocol defines the interfaces a ledger protocol is built atop.
package protocol

import (
	"context"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"
)

// ErrUnimplemented is the error that the method is not implemented
var ErrUnimplemented = errors.New("method is unimplemented")

type (
	// Protocol defines the protocol interfaces atop the survey ledger
	Protocol interface {
		// CreateGenesisStates writes the protocol's initial states into the working set
		CreateGenesisStates(context.Context, StateManager) error
	}

	// StateReader defines an interface to read the state DB
	StateReader interface {
		Height() uint64
		State(hash.Hash160, interface{}) error
	}

	// StateManager defines the state DB interface atop the survey ledger. A
	// snapshot taken before a mutation sequence allows the whole sequence to
	// be rolled back on any precondition failure.
	StateManager interface {
		StateReader
		Snapshot() int
		Revert(int) error
		PutState(hash.Hash160, interface{}) error
		DelState(hash.Hash160) error
	}
)
