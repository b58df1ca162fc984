// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type dummyProtocol struct{}

func (d *dummyProtocol) CreateGenesisStates(context.Context, StateManager) error { return nil }

func TestRegistry(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	p := &dummyProtocol{}

	require.NoError(r.Register("dummy", p))
	require.Error(r.Register("dummy", p))
	require.NoError(r.ForceRegister("dummy", p))

	found, ok := r.Find("dummy")
	require.True(ok)
	require.Equal(Protocol(p), found)

	_, ok = r.Find("missing")
	require.False(ok)

	require.Len(r.All(), 1)
}
