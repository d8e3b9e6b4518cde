package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boostyblast/adbooster/internal/api"
	"github.com/boostyblast/adbooster/internal/auth"
	"github.com/boostyblast/adbooster/internal/chain"
	"github.com/boostyblast/adbooster/internal/config"
	"github.com/boostyblast/adbooster/internal/events"
	"github.com/boostyblast/adbooster/internal/farcaster"
	"github.com/boostyblast/adbooster/internal/ipfs"
	"github.com/boostyblast/adbooster/internal/market"
	"github.com/boostyblast/adbooster/internal/rewards"
	"github.com/boostyblast/adbooster/internal/schedule"
	"github.com/boostyblast/adbooster/internal/settler"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Chain client (identity registry + payout key) ─────────────────────────
	onchain, err := chain.NewClient(cfg)
	if err != nil {
		log.Fatal("chain client init failed", zap.Error(err))
	}

	// ── Engine components ─────────────────────────────────────────────────────
	sched := schedule.Schedule{
		StartTimestamp: cfg.Schedule.StartTimestamp,
		SlotDuration:   cfg.Schedule.SlotDurationSec,
	}
	verifier := farcaster.NewVerifier(farcaster.Blake3Hasher{}, farcaster.Ed25519Scheme{}, onchain, log)
	emitter := events.NewEmitter(rdb, log)

	mkt := market.New(rdb, verifier, onchain, sched, emitter, time.Now, log)
	claimer := rewards.New(rdb, verifier, onchain, sched, emitter, time.Now, log)
	content := ipfs.NewClient(cfg.IPFS.GatewayURL)

	// ── Goroutines ────────────────────────────────────────────────────────────
	go settler.Run(ctx, rdb, onchain, log)
	go schedule.RunTicker(ctx, sched, rdb, time.Now, log)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	apiGroup := r.Group("/api")
	api.NewHandler(mkt, claimer, content, log).Register(apiGroup, auth.Middleware(rdb))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
