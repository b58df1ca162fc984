// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

// Package factory provides the in-memory working set backing the survey
// ledger. One logical operation runs against the working set to completion
// before the next is admitted; snapshots give every operation all-or-nothing
// semantics over its local writes.
package factory

import (
	"sync"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/quizzlerproject/survey-core/state"
)

// ErrInvalidSnapshot is the error that the snapshot index is invalid
var ErrInvalidSnapshot = errors.New("invalid snapshot index")

// Factory tracks the states of the survey ledger in memory. It implements
// protocol.StateManager.
type Factory struct {
	mutex     sync.RWMutex
	height    uint64
	states    map[hash.Hash160][]byte
	snapshots []map[hash.Hash160][]byte
}

// NewFactory creates a new in-memory state factory
func NewFactory() *Factory {
	return &Factory{
		states: make(map[hash.Hash160][]byte),
	}
}

// Height returns the height the working set sits at
func (f *Factory) Height() uint64 {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.height
}

// State reads the state of the given key into s
func (f *Factory) State(key hash.Hash160, s interface{}) error {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	data, ok := f.states[key]
	if !ok {
		return errors.Wrapf(state.ErrStateNotExist, "key = %x", key)
	}
	return state.Deserialize(s, data)
}

// PutState puts the state of the given key
func (f *Factory) PutState(key hash.Hash160, s interface{}) error {
	data, err := state.Serialize(s)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize state of key = %x", key)
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.saveForRevert(key)
	f.states[key] = data
	return nil
}

// DelState deletes the state of the given key
func (f *Factory) DelState(key hash.Hash160) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.saveForRevert(key)
	delete(f.states, key)
	return nil
}

// Snapshot takes a snapshot of the current working set and returns its index
func (f *Factory) Snapshot() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.snapshots = append(f.snapshots, make(map[hash.Hash160][]byte))
	return len(f.snapshots) - 1
}

// Revert reverts the working set to the given snapshot. All the writes made
// after the snapshot was taken are undone.
func (f *Factory) Revert(sn int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if sn < 0 || sn >= len(f.snapshots) {
		return errors.Wrapf(ErrInvalidSnapshot, "snapshot = %d, total = %d", sn, len(f.snapshots))
	}
	for i := len(f.snapshots) - 1; i >= sn; i-- {
		for key, prev := range f.snapshots[i] {
			if prev == nil {
				delete(f.states, key)
				continue
			}
			f.states[key] = prev
		}
	}
	f.snapshots = f.snapshots[:sn]
	return nil
}

// Commit seals the pending writes and bumps the working set height. Sealed
// writes can no longer be reverted.
func (f *Factory) Commit() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.snapshots = f.snapshots[:0]
	f.height++
}

// saveForRevert records the previous value of the key into the latest
// snapshot delta. A nil previous value marks the key as absent.
func (f *Factory) saveForRevert(key hash.Hash160) {
	if len(f.snapshots) == 0 {
		return
	}
	delta := f.snapshots[len(f.snapshots)-1]
	if _, recorded := delta[key]; recorded {
		return
	}
	if prev, ok := f.states[key]; ok {
		saved := make([]byte, len(prev))
		copy(saved, prev)
		delta[key] = saved
		return
	}
	delta[key] = nil
}
