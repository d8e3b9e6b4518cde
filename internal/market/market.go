package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boostyblast/adbooster/internal/farcaster"
	"github.com/boostyblast/adbooster/internal/registry"
	"github.com/boostyblast/adbooster/internal/schedule"
)

// EventSink receives market notifications. Decoupled here so market tests can
// use a recording fake; satisfied by events.Emitter.
type EventSink interface {
	Listed(ctx context.Context, frameID common.Hash, fid uint64)
	Bought(ctx context.Context, frameID common.Hash, slot uint64, buyerFID uint64, amount *big.Int, ref string)
}

// Market owns per-frame, per-slot sale state: listing, purchase, and the read
// surface the frame renderer consumes.
type Market struct {
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
) *Market {
	return &Market{
		rdb:      rdb,
		verifier: verifier,
		reg:      reg,
		sched:    sched,
		events:   events,
		clock:    clock,
		log:      log,
	}
}

// Schedule exposes the scheduling constants (read-only surface).
func (m *Market) Schedule() schedule.Schedule { return m.sched }

// CurrentSlot returns the slot index active right now.
func (m *Market) CurrentSlot() uint64 {
	return m.sched.CurrentSlot(m.clock().Unix())
}

// ListForSale verifies the authorship proof and puts the frame's slots on
// sale, binding the frame to the proving FID. The first successful listing
// creates the binding; a frame is permanently associated with the FID that
// first authenticated it. Repeated listing by the same FID is a no-op beyond
// re-confirming authorization.
func (m *Market) ListForSale(ctx context.Context, fid uint64, pubKey, sig, message []byte) (common.Hash, error) {
	url, err := m.verifier.Verify(ctx, fid, pubKey, sig, message)
	if err != nil {
		return common.Hash{}, err
	}
	frameID := FrameIDForURL(url)

	created, err := CreateBinding(ctx, m.rdb, frameID, InfluencerBinding{
		FID:      fid,
		PubKey:   pubKey,
		FrameURL: url,
		ListedAt: m.clock().Unix(),
	})
	if err != nil {
		return common.Hash{}, err
	}
	if !created {
		existing, err := GetBinding(ctx, m.rdb, frameID)
		if err != nil {
			return common.Hash{}, err
		}
		if existing == nil || existing.FID != fid {
			return common.Hash{}, fmt.Errorf("frame %s: %w", frameID.Hex(), ErrFrameAlreadyClaimed)
		}
	}

	m.events.Listed(ctx, frameID, fid)
	m.log.Info("frame listed for sale",
		zap.String("frame_id", frameID.Hex()),
		zap.Uint64("fid", fid),
		zap.Bool("first_listing", created),
	)
	return frameID, nil
}

// BuySlot escrows payment for a future slot. The existence check and the
// creation are one atomic SetNX, so two racing buyers cannot both win the
// same (frame, slot) key. The buyer identity is resolved from the caller's
// authenticated address, never taken from the request.
func (m *Market) BuySlot(
	ctx context.Context,
	frameID common.Hash,
	index uint64,
	buyer common.Address,
	contentRef string,
	payment *big.Int,
) error {
	if payment == nil || payment.Sign() <= 0 {
		return ErrZeroPayment
	}
	now := m.clock().Unix()
	if index <= m.sched.CurrentSlot(now) {
		return fmt.Errorf("slot %d: %w", index, ErrSlotNotInFuture)
	}

	buyerFID, err := m.reg.FIDForAddress(ctx, buyer)
	if err != nil {
		return fmt.Errorf("resolve buyer fid: %w", err)
	}

	created, err := CreateSlot(ctx, m.rdb, frameID, index, AdSlot{
		BuyerFID: buyerFID,
		Amount:   payment,
		Ref:      contentRef,
		BoughtAt: now,
	})
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("slot %d: %w", index, ErrSlotAlreadySold)
	}

	m.events.Bought(ctx, frameID, index, buyerFID, payment, contentRef)
	m.log.Info("ad slot bought",
		zap.String("frame_id", frameID.Hex()),
		zap.Uint64("slot", index),
		zap.Uint64("buyer_fid", buyerFID),
		zap.String("amount", payment.String()),
	)
	return nil
}

// AdForCurrentSlot returns the sale for the slot active right now, or nil
// when the slot is unsold (no ad to show).
func (m *Market) AdForCurrentSlot(ctx context.Context, frameID common.Hash) (*AdSlot, error) {
	return GetSlot(ctx, m.rdb, frameID, m.CurrentSlot())
}

// AdsBySlots returns the sales for the requested slot indices in request
// order, with nil placeholders for unsold entries.
func (m *Market) AdsBySlots(ctx context.Context, frameID common.Hash, indices []uint64) ([]*AdSlot, error) {
	return GetSlots(ctx, m.rdb, frameID, indices)
}
