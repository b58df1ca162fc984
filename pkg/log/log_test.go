// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoggers(t *testing.T) {
	require := require.New(t)

	require.NoError(InitLoggers(GlobalConfig{}, map[string]GlobalConfig{
		"survey": {},
	}))
	require.NotNil(L())
	require.NotNil(S())
	require.NotNil(Logger("survey"))
	// an unregistered name falls back to the global logger
	require.Equal(L(), Logger("unknown"))
}
