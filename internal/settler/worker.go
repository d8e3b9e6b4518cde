package settler

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blpopTimeout = 5 * time.Second

// Transferer performs the on-chain value transfer. Satisfied by chain.Client;
// mocked in tests.
type Transferer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
}

// Run is the payout loop: BLPOP a job, transfer, log. Jobs only enter the
// queue after the claim's bookkeeping is durably committed, so a transfer can
// never re-enter claim logic with uncommitted flags. On chain failure the job
// is re-pushed and retried.
func Run(ctx context.Context, rdb *redis.Client, chain Transferer, log *zap.Logger) {
	log.Info("payout settler started", zap.String("queue", PayoutQueueKey))

	for {
		if ctx.Err() != nil {
			log.Info("payout settler stopped")
			return
		}

		results, err := rdb.BLPop(ctx, blpopTimeout, PayoutQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // timeout, nothing queued
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("settler: BLPOP error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// results[0] = key, results[1] = value
		raw := results[1]
		var job PayoutJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Error("settler: unmarshal payout", zap.String("raw", raw), zap.Error(err))
			continue
		}

		txHash, err := chain.Transfer(ctx, common.HexToAddress(job.Address), job.Amount)
		if err != nil {
			log.Error("settler: transfer failed, re-queueing",
				zap.Uint64("fid", job.FID),
				zap.String("amount", job.Amount.String()),
				zap.Error(err),
			)
			_ = rdb.LPush(ctx, PayoutQueueKey, raw)
			time.Sleep(5 * time.Second)
			continue
		}

		log.Info("reward paid out",
			zap.Uint64("fid", job.FID),
			zap.String("address", job.Address),
			zap.String("amount", job.Amount.String()),
			zap.String("tx", txHash.Hex()),
		)
	}
}
