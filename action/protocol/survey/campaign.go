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

	"github.com/quizzlerproject/survey-core/action/protocol"
	"github.com/quizzlerproject/survey-core/state"
)

type (
	// Metadata describes a campaign. Issuer campaigns require a name and a
	// symbol to initialize the issuer resource.
	Metadata struct {
		Name   string
		Symbol string
		URI    string
	}

	// Campaign is the record of one escrow-backed reward distribution. A
	// campaign is never deleted; a canceled or exhausted campaign remains
	// queryable as a terminal record.
	Campaign struct {
		// Sponsor funded the campaign's creation and receives refunds
		Sponsor address.Address
		// Cap is the maximum number of rewarded participants
		Cap uint64
		// RewardAmount is the per-participant reward unit. Zero for issuer campaigns.
		RewardAmount *big.Int
		// RewardedCount counts confirmed payouts. Monotonic, never above Cap.
		RewardedCount uint64
		// PendingCount counts initiated payouts awaiting confirmation
		PendingCount uint64
		// Canceled is terminal once set
		Canceled bool
		// Issuer is the campaign's dedicated issuer resource, nil for the
		// direct-transfer variant
		Issuer   address.Address
		Metadata Metadata
	}
)

type campaignGob struct {
	Sponsor       []byte
	Cap           uint64
	RewardAmount  string
	RewardedCount uint64
	PendingCount  uint64
	Canceled      bool
	Issuer        []byte
	Name          string
	Symbol        string
	URI           string
}

// Serialize serializes campaign state into bytes
func (c *Campaign) Serialize() ([]byte, error) {
	gen := campaignGob{
		Sponsor:       c.Sponsor.Bytes(),
		Cap:           c.Cap,
		RewardAmount:  c.RewardAmount.String(),
		RewardedCount: c.RewardedCount,
		PendingCount:  c.PendingCount,
		Canceled:      c.Canceled,
		Name:          c.Metadata.Name,
		Symbol:        c.Metadata.Symbol,
		URI:           c.Metadata.URI,
	}
	if c.Issuer != nil {
		gen.Issuer = c.Issuer.Bytes()
	}
	return state.GobBasedSerialize(&gen)
}

// Deserialize deserializes bytes into campaign state
func (c *Campaign) Deserialize(data []byte) error {
	gen := campaignGob{}
	if err := state.GobBasedDeserialize(&gen, data); err != nil {
		return err
	}
	sponsor, err := address.FromBytes(gen.Sponsor)
	if err != nil {
		return err
	}
	rewardAmount, ok := new(big.Int).SetString(gen.RewardAmount, 10)
	if !ok {
		return errors.Wrap(state.ErrStateDeserialization, "failed to set reward amount")
	}
	var issuer address.Address
	if len(gen.Issuer) > 0 {
		if issuer, err = address.FromBytes(gen.Issuer); err != nil {
			return err
		}
	}
	c.Sponsor = sponsor
	c.Cap = gen.Cap
	c.RewardAmount = rewardAmount
	c.RewardedCount = gen.RewardedCount
	c.PendingCount = gen.PendingCount
	c.Canceled = gen.Canceled
	c.Issuer = issuer
	c.Metadata = Metadata{Name: gen.Name, Symbol: gen.Symbol, URI: gen.URI}
	return nil
}

// Clone clones the campaign record
func (c *Campaign) Clone() *Campaign {
	clone := *c
	clone.RewardAmount = new(big.Int).Set(c.RewardAmount)
	return &clone
}

// rewarded is the marker that a participant has been paid on a campaign.
// Only the key matters.
type rewarded struct{}

// Serialize serializes the rewarded marker into bytes
func (r *rewarded) Serialize() ([]byte, error) { return []byte{}, nil }

// Deserialize deserializes bytes into the rewarded marker
func (r *rewarded) Deserialize(data []byte) error { return nil }

func campaignKey(id string) []byte {
	return append(_campaignKeyPrefix, []byte(id)...)
}

func rewardedKey(id string, participant address.Address) []byte {
	key := append(_rewardedKeyPrefix, []byte(id)...)
	return append(key, participant.Bytes()...)
}

func (p *Protocol) getCampaign(sr protocol.StateReader, id string) (*Campaign, error) {
	c := Campaign{}
	if err := p.state(sr, campaignKey(id), &c); err != nil {
		if errors.Cause(err) == state.ErrStateNotExist {
			return nil, errors.Wrapf(ErrCampaignNotFound, "campaign id = %s", id)
		}
		return nil, err
	}
	return &c, nil
}

func (p *Protocol) putCampaign(sm protocol.StateManager, id string, c *Campaign) error {
	return p.putState(sm, campaignKey(id), c)
}

// isRewarded returns whether the participant has a confirmed payout on the campaign
func (p *Protocol) isRewarded(sr protocol.StateReader, id string, participant address.Address) (bool, error) {
	r := rewarded{}
	err := p.state(sr, rewardedKey(id, participant), &r)
	if err == nil {
		return true, nil
	}
	if errors.Cause(err) == state.ErrStateNotExist {
		return false, nil
	}
	return false, err
}

// Campaign returns a snapshot of the campaign record
func (p *Protocol) Campaign(ctx context.Context, sr protocol.StateReader, id string) (*Campaign, error) {
	c, err := p.getCampaign(sr, id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// IsRewarded returns whether the participant has a confirmed payout on the campaign
func (p *Protocol) IsRewarded(ctx context.Context, sr protocol.StateReader, id string, participant address.Address) (bool, error) {
	if _, err := p.getCampaign(sr, id); err != nil {
		return false, err
	}
	return p.isRewarded(sr, id, participant)
}
