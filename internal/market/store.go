package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/boostyblast/adbooster/internal/schedule"
)

const (
	bindingKeyPrefix = "adbooster:frame:"
	slotKeyPrefix    = "adbooster:slot:"
)

// maxClaimRetries bounds optimistic-transaction retries when a claim batch
// races another writer on one of its slot keys.
const maxClaimRetries = 5

// InfluencerBinding ties a frame to the FID that first authenticated it.
// Created once, immutable thereafter.
type InfluencerBinding struct {
	FID      uint64 `json:"fid"`
	PubKey   []byte `json:"pub_key"`
	FrameURL string `json:"frame_url"`
	ListedAt int64  `json:"listed_at"`
}

// AdSlot is one sold slot. Absence of the key IS the Unsold state; Claimed is
// terminal.
type AdSlot struct {
	BuyerFID uint64   `json:"buyer_fid"`
	Amount   *big.Int `json:"amount"`
	Ref      string   `json:"ref"`
	Claimed  bool     `json:"claimed"`
	BoughtAt int64    `json:"bought_at"`
}

func bindingKey(frameID common.Hash) string {
	return bindingKeyPrefix + frameID.Hex()
}

func slotKey(frameID common.Hash, index uint64) string {
	return fmt.Sprintf("%s%s:%d", slotKeyPrefix, frameID.Hex(), index)
}

// CreateBinding stores the binding iff none exists for this frame. Returns
// whether this call created it.
func CreateBinding(ctx context.Context, rdb *redis.Client, frameID common.Hash, b InfluencerBinding) (bool, error) {
	raw, err := json.Marshal(&b)
	if err != nil {
		return false, fmt.Errorf("marshal binding: %w", err)
	}
	created, err := rdb.SetNX(ctx, bindingKey(frameID), raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("create binding: %w", err)
	}
	return created, nil
}

// GetBinding returns nil when the frame was never listed.
func GetBinding(ctx context.Context, rdb *redis.Client, frameID common.Hash) (*InfluencerBinding, error) {
	raw, err := rdb.Get(ctx, bindingKey(frameID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get binding: %w", err)
	}
	var b InfluencerBinding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("unmarshal binding: %w", err)
	}
	return &b, nil
}

// CreateSlot atomically creates the sale record iff the key does not exist.
// SetNX makes the existence check and the creation one indivisible operation,
// so exactly one of two racing buyers wins.
func CreateSlot(ctx context.Context, rdb *redis.Client, frameID common.Hash, index uint64, s AdSlot) (bool, error) {
	raw, err := json.Marshal(&s)
	if err != nil {
		return false, fmt.Errorf("marshal slot: %w", err)
	}
	created, err := rdb.SetNX(ctx, slotKey(frameID, index), raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("create slot: %w", err)
	}
	return created, nil
}

// GetSlot returns nil when the slot was never sold.
func GetSlot(ctx context.Context, rdb *redis.Client, frameID common.Hash, index uint64) (*AdSlot, error) {
	raw, err := rdb.Get(ctx, slotKey(frameID, index)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	var s AdSlot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("unmarshal slot: %w", err)
	}
	return &s, nil
}

// GetSlots fetches a batch of slots, preserving the order of indices. Unsold
// entries come back as nil placeholders, not omitted, so callers can align
// indices with results.
func GetSlots(ctx context.Context, rdb *redis.Client, frameID common.Hash, indices []uint64) ([]*AdSlot, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	keys := make([]string, len(indices))
	for i, idx := range indices {
		keys[i] = slotKey(frameID, idx)
	}
	vals, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget slots: %w", err)
	}
	out := make([]*AdSlot, len(indices))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // unsold
		}
		var s AdSlot
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("unmarshal slot %d: %w", indices[i], err)
		}
		out[i] = &s
	}
	return out, nil
}

// ClaimSlots validates and settles a claim batch all-or-nothing: every slot
// must be sold, elapsed, and unclaimed, or the whole call fails with no
// mutation. Runs under WATCH on every slot key, so a concurrent write to any
// slot in the batch aborts and retries the transaction.
func ClaimSlots(
	ctx context.Context,
	rdb *redis.Client,
	frameID common.Hash,
	indices []uint64,
	sched schedule.Schedule,
	now int64,
) (*big.Int, []AdSlot, error) {
	if len(indices) == 0 {
		return new(big.Int), nil, nil
	}

	keys := make([]string, len(indices))
	seen := make(map[uint64]struct{}, len(indices))
	for i, idx := range indices {
		if _, dup := seen[idx]; dup {
			return nil, nil, fmt.Errorf("slot %d listed twice: %w", idx, ErrAlreadyClaimed)
		}
		seen[idx] = struct{}{}
		keys[i] = slotKey(frameID, idx)
	}

	total := new(big.Int)
	var claimed []AdSlot

	txf := func(tx *redis.Tx) error {
		total.SetInt64(0)
		claimed = claimed[:0]

		for i, idx := range indices {
			raw, err := tx.Get(ctx, keys[i]).Result()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("slot %d: %w", idx, ErrSlotNotSold)
			}
			if err != nil {
				return fmt.Errorf("read slot %d: %w", idx, err)
			}
			var s AdSlot
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return fmt.Errorf("unmarshal slot %d: %w", idx, err)
			}
			if !sched.Elapsed(idx, now) {
				return fmt.Errorf("slot %d: %w", idx, ErrSlotNotElapsed)
			}
			if s.Claimed {
				return fmt.Errorf("slot %d: %w", idx, ErrAlreadyClaimed)
			}
			s.Claimed = true
			claimed = append(claimed, s)
			total.Add(total, s.Amount)
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := range indices {
				raw, err := json.Marshal(&claimed[i])
				if err != nil {
					return fmt.Errorf("marshal slot %d: %w", indices[i], err)
				}
				pipe.Set(ctx, keys[i], raw, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		err := rdb.Watch(ctx, txf, keys...)
		if err == nil {
			return total, claimed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, errors.New("claim slots: transaction contention, giving up")
}
