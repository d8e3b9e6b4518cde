// Package events publishes market notifications to a redis stream consumed by
// the renderer and the app, mirroring the Listed / Bought / Claimed contract
// events.
package events

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamKey is the redis stream all notifications are appended to.
const StreamKey = "adbooster:events"

// Event type values on the stream.
const (
	TypeListed  = "listed"
	TypeBought  = "bought"
	TypeClaimed = "claimed"
)

// Emitter appends notifications to the event stream. Emission is best-effort:
// a stream failure is logged, never allowed to fail the financial operation
// that triggered it.
type Emitter struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewEmitter(rdb *redis.Client, log *zap.Logger) *Emitter {
	return &Emitter{rdb: rdb, log: log}
}

func (e *Emitter) Listed(ctx context.Context, frameID common.Hash, fid uint64) {
	e.emit(ctx, map[string]interface{}{
		"type":     TypeListed,
		"frame_id": frameID.Hex(),
		"fid":      fid,
	})
}

func (e *Emitter) Bought(ctx context.Context, frameID common.Hash, slot uint64, buyerFID uint64, amount *big.Int, ref string) {
	e.emit(ctx, map[string]interface{}{
		"type":      TypeBought,
		"frame_id":  frameID.Hex(),
		"slot":      slot,
		"buyer_fid": buyerFID,
		"amount":    amount.String(),
		"ref":       ref,
	})
}

func (e *Emitter) Claimed(ctx context.Context, frameID common.Hash, slot uint64, influencerFID, buyerFID uint64, amount *big.Int) {
	e.emit(ctx, map[string]interface{}{
		"type":           TypeClaimed,
		"frame_id":       frameID.Hex(),
		"slot":           slot,
		"influencer_fid": influencerFID,
		"buyer_fid":      buyerFID,
		"amount":         amount.String(),
	})
}

func (e *Emitter) emit(ctx context.Context, values map[string]interface{}) {
	err := e.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: values,
	}).Err()
	if err != nil {
		e.log.Warn("event emit failed", zap.Any("event", values), zap.Error(err))
	}
}
