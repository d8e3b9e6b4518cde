package schedule

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SlotStreamKey is the redis stream slot transitions are published to. The
// renderer uses it to invalidate its current-ad cache at slot boundaries.
const SlotStreamKey = "adbooster:slots"

// RunTicker watches the schedule and publishes every slot boundary crossing.
func RunTicker(ctx context.Context, sched Schedule, rdb *redis.Client, clock Clock, log *zap.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := sched.CurrentSlot(clock().Unix())
	log.Info("slot ticker started",
		zap.Uint64("current_slot", last),
		zap.Int64("slot_duration_sec", sched.SlotDuration),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("slot ticker stopped")
			return
		case <-ticker.C:
			cur := sched.CurrentSlot(clock().Unix())
			if cur == last {
				continue
			}
			err := rdb.XAdd(ctx, &redis.XAddArgs{
				Stream: SlotStreamKey,
				Values: map[string]interface{}{"slot": cur},
			}).Err()
			if err != nil {
				log.Warn("slot transition publish failed", zap.Uint64("slot", cur), zap.Error(err))
				continue
			}
			log.Debug("slot advanced", zap.Uint64("from", last), zap.Uint64("to", cur))
			last = cur
		}
	}
}
