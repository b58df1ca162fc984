// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

package state

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
)

var (
	// ErrStateSerialization is the error that the state marshaling is failed
	ErrStateSerialization = errors.New("failed to marshal state")

	// ErrStateDeserialization is the error that the state un-marshaling is failed
	ErrStateDeserialization = errors.New("failed to unmarshal state")

	// ErrStateNotExist is the error that the state does not exist
	ErrStateNotExist = errors.New("state does not exist")
)

// State is the interface, which defines the common methods for state struct to be handled by state factory
type State interface {
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// Serialize serializes the state into bytes
func Serialize(d interface{}) ([]byte, error) {
	if ss, ok := d.(State); ok {
		return ss.Serialize()
	}
	return nil, errors.Wrapf(ErrStateSerialization, "state is of type %T, which is not serializable", d)
}

// Deserialize deserializes the data bytes into the state
func Deserialize(x interface{}, data []byte) error {
	if ss, ok := x.(State); ok {
		return ss.Deserialize(data)
	}
	return errors.Wrapf(ErrStateDeserialization, "state is of type %T, which is not deserializable", x)
}

// GobBasedSerialize serializes the given struct with gob
func GobBasedSerialize(ss interface{}) ([]byte, error) {
	var buf bytes.Buffer
	e := gob.NewEncoder(&buf)
	if err := e.Encode(ss); err != nil {
		return nil, errors.Wrapf(ErrStateSerialization, "error when serializing %T state", ss)
	}
	return buf.Bytes(), nil
}

// GobBasedDeserialize deserializes the given bytes into the struct with gob
func GobBasedDeserialize(ss interface{}, data []byte) error {
	e := gob.NewDecoder(bytes.NewBuffer(data))
	if err := e.Decode(ss); err != nil {
		return errors.Wrapf(ErrStateDeserialization, "error when deserializing %T state", ss)
	}
	return nil
}
