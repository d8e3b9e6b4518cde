package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/boostyblast/adbooster/internal/market"
)

// slotcheck dumps a frame's binding and a slot range straight from redis.
// Usage: slotcheck <redis-addr> <frame-id> <from-slot> <to-slot>
func main() {
	if len(os.Args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: slotcheck <redis-addr> <frame-id> <from-slot> <to-slot>")
		os.Exit(1)
	}
	rdb := redis.NewClient(&redis.Options{Addr: os.Args[1]})
	frameID := common.HexToHash(os.Args[2])
	from, _ := strconv.ParseUint(os.Args[3], 10, 64)
	to, _ := strconv.ParseUint(os.Args[4], 10, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	binding, err := market.GetBinding(ctx, rdb, frameID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get binding:", err)
		os.Exit(1)
	}
	if binding == nil {
		fmt.Println("frame not listed")
	} else {
		fmt.Printf("influencer fid: %d\nframe url:      %s\n", binding.FID, binding.FrameURL)
	}

	for idx := from; idx <= to; idx++ {
		s, err := market.GetSlot(ctx, rdb, frameID, idx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "slot %d: %v\n", idx, err)
			continue
		}
		if s == nil {
			fmt.Printf("slot %d: unsold\n", idx)
			continue
		}
		state := "sold"
		if s.Claimed {
			state = "claimed"
		}
		fmt.Printf("slot %d: %s  buyer=%d amount=%s ref=%s\n", idx, state, s.BuyerFID, s.Amount, s.Ref)
	}
}
