// Package rewards settles escrowed slot payments to the influencer.
package rewards

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boostyblast/adbooster/internal/farcaster"
	"github.com/boostyblast/adbooster/internal/market"
	"github.com/boostyblast/adbooster/internal/registry"
	"github.com/boostyblast/adbooster/internal/schedule"
	"github.com/boostyblast/adbooster/internal/settler"
)

// EventSink receives one Claimed notification per settled slot.
type EventSink interface {
	Claimed(ctx context.Context, frameID common.Hash, slot uint64, influencerFID, buyerFID uint64, amount *big.Int)
}

// Claimer settles escrowed rewards, exactly once per slot. Ordering contract,
// non-negotiable: all claimed flags are committed to the store before the
// transfer is even enqueued, so the external transfer can never observe or
// re-enter uncommitted claim state.
type Claimer struct {
	rdb      *redis.Client
	verifier *farcaster.Verifier
	reg      registry.IdentityRegistry
	sched    schedule.Schedule
	events   EventSink
	clock    schedule.Clock
	log      *zap.Logger
}

func New(
	rdb *redis.Client,
	verifier *farcaster.Verifier,
	reg registry.IdentityRegistry,
	sched schedule.Schedule,
	events EventSink,
	clock schedule.Clock,
	log *zap.Logger,
) *Claimer {
	return &Claimer{
		rdb:      rdb,
		verifier: verifier,
		reg:      reg,
		sched:    sched,
		events:   events,
		clock:    clock,
		log:      log,
	}
}

// ClaimRewards re-verifies authorship (the claimer must prove live control of
// the FID; a revoked key cannot claim), then settles the batch all-or-nothing:
// any precondition failure on any slot aborts the whole call with no mutation.
// Returns the total enqueued for transfer.
func (c *Claimer) ClaimRewards(ctx context.Context, fid uint64, pubKey, sig, message []byte, slots []uint64) (*big.Int, error) {
	url, err := c.verifier.Verify(ctx, fid, pubKey, sig, message)
	if err != nil {
		return nil, err
	}
	frameID := market.FrameIDForURL(url)

	binding, err := market.GetBinding(ctx, c.rdb, frameID)
	if err != nil {
		return nil, err
	}
	if binding == nil || binding.FID != fid {
		return nil, fmt.Errorf("frame %s: %w", frameID.Hex(), market.ErrNotSlotOwner)
	}

	// Resolve the payout address before touching any state, so an unregistered
	// FID fails the call cleanly.
	payoutAddr, err := c.reg.AddressForFID(ctx, fid)
	if err != nil {
		return nil, fmt.Errorf("resolve payout address: %w", err)
	}

	if len(slots) == 0 {
		return new(big.Int), nil
	}

	now := c.clock().Unix()
	total, claimed, err := market.ClaimSlots(ctx, c.rdb, frameID, slots, c.sched, now)
	if err != nil {
		return nil, err
	}

	// Bookkeeping is committed from here on. One transfer for the whole batch.
	if total.Sign() > 0 {
		job := settler.PayoutJob{
			FID:     fid,
			Address: payoutAddr.Hex(),
			Amount:  total,
			FrameID: frameID.Hex(),
		}
		if err := settler.EnqueuePayout(ctx, c.rdb, job); err != nil {
			// Slots are already marked claimed; surface the enqueue failure so
			// the operator can replay the payout from the claim log.
			c.log.Error("payout enqueue failed after claim commit",
				zap.Uint64("fid", fid),
				zap.String("frame_id", frameID.Hex()),
				zap.String("amount", total.String()),
				zap.Error(err),
			)
			return nil, err
		}
	}

	for i, idx := range slots {
		c.events.Claimed(ctx, frameID, idx, fid, claimed[i].BuyerFID, claimed[i].Amount)
	}

	c.log.Info("rewards claimed",
		zap.String("frame_id", frameID.Hex()),
		zap.Uint64("fid", fid),
		zap.Int("slots", len(slots)),
		zap.String("total", total.String()),
	)
	return total, nil
}
