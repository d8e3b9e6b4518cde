package settler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"
)

// PayoutQueueKey is the redis list the claim path pushes to and Run consumes.
const PayoutQueueKey = "adbooster:payouts"

// PayoutJob is one settled claim batch awaiting its on-chain transfer: the
// accumulated escrow for a FID, addressed to the FID's registered address at
// claim time.
type PayoutJob struct {
	FID     uint64   `json:"fid"`
	Address string   `json:"address"`
	Amount  *big.Int `json:"amount"`
	FrameID string   `json:"frame_id"`
}

// EnqueuePayout pushes a job onto the payout queue. Called only after the
// claim's bookkeeping is committed; the transfer itself happens in Run.
func EnqueuePayout(ctx context.Context, rdb *redis.Client, job PayoutJob) error {
	raw, err := json.Marshal(&job)
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}
	if err := rdb.RPush(ctx, PayoutQueueKey, string(raw)).Err(); err != nil {
		return fmt.Errorf("enqueue payout: %w", err)
	}
	return nil
}
