// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"context"
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"

	"github.com/quizzlerproject/survey-core/pkg/log"
)

type actionCtxKey struct{}

// ActionCtx provides action auxiliary information.
type ActionCtx struct {
	// Caller is the principal the action was issued by
	Caller address.Address
	// ActionHash is the hash of the action that triggers the handler
	ActionHash hash.Hash256
	// Nonce is the nonce of the action
	Nonce uint64
	// AttachedDeposit is the value attached to the call. The handler escrows
	// it from the caller's account before taking any external step.
	AttachedDeposit *big.Int
}

// WithActionCtx adds ActionCtx into context.
func WithActionCtx(ctx context.Context, ac ActionCtx) context.Context {
	return context.WithValue(ctx, actionCtxKey{}, ac)
}

// GetActionCtx gets ActionCtx
func GetActionCtx(ctx context.Context) (ActionCtx, bool) {
	ac, ok := ctx.Value(actionCtxKey{}).(ActionCtx)
	return ac, ok
}

// MustGetActionCtx must get ActionCtx. If context doesn't exist, it panics.
func MustGetActionCtx(ctx context.Context) ActionCtx {
	ac, ok := ctx.Value(actionCtxKey{}).(ActionCtx)
	if !ok {
		log.S().Panic("Miss action context")
	}
	return ac
}
