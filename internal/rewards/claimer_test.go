package rewards

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boostyblast/adbooster/internal/farcaster"
	"github.com/boostyblast/adbooster/internal/market"
	"github.com/boostyblast/adbooster/internal/registry"
	"github.com/boostyblast/adbooster/internal/schedule"
	"github.com/boostyblast/adbooster/internal/settler"
)

const (
	influencerFID = uint64(10)
	buyerFID      = uint64(1)
	frameURL      = "http://localhost:3000/api"
)

var (
	influencerAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testSched      = schedule.Schedule{StartTimestamp: 1_700_000_000, SlotDuration: 60}
	testFrameID    = market.FrameIDForURL(frameURL)
)

type claimSink struct {
	claimed []uint64
}

func (s *claimSink) Claimed(_ context.Context, _ common.Hash, slot uint64, _, _ uint64, _ *big.Int) {
	s.claimed = append(s.claimed, slot)
}

type fixture struct {
	claimer *Claimer
	rdb     *redis.Client
	reg     *registry.Mock
	sink    *claimSink
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// newFixture wires a Claimer against miniredis with a listed frame, a
// registered influencer key, and the clock pinned at nowUnix.
func newFixture(t *testing.T, nowUnix int64) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x42
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	reg := registry.NewMock()
	reg.Register(influencerFID, influencerAddr)
	reg.AddKey(influencerFID, pub)

	ctx := context.Background()
	if _, err := market.CreateBinding(ctx, rdb, testFrameID, market.InfluencerBinding{
		FID:      influencerFID,
		PubKey:   pub,
		FrameURL: frameURL,
		ListedAt: testSched.StartTimestamp,
	}); err != nil {
		t.Fatal(err)
	}

	sink := &claimSink{}
	verifier := farcaster.NewVerifier(farcaster.Blake3Hasher{}, farcaster.Ed25519Scheme{}, reg, zap.NewNop())
	clock := func() time.Time { return time.Unix(nowUnix, 0) }
	return &fixture{
		claimer: New(rdb, verifier, reg, testSched, sink, clock, zap.NewNop()),
		rdb:     rdb,
		reg:     reg,
		sink:    sink,
		priv:    priv,
		pub:     pub,
	}
}

// proof signs a cast-add record embedding frameURL on behalf of fid.
func (f *fixture) proof(fid uint64) (sig, msg []byte) {
	msg = farcaster.EncodeMessageData(&farcaster.MessageData{
		Type:    farcaster.MessageTypeCastAdd,
		FID:     fid,
		Network: farcaster.NetworkMainnet,
		CastAdd: &farcaster.CastAddBody{Embeds: []farcaster.Embed{{URL: frameURL}}},
	})
	digest := farcaster.Blake3Hasher{}.MessageHash(msg)
	return ed25519.Sign(f.priv, digest), msg
}

func (f *fixture) sellSlot(t *testing.T, index uint64, amount int64) {
	t.Helper()
	created, err := market.CreateSlot(context.Background(), f.rdb, testFrameID, index, market.AdSlot{
		BuyerFID: buyerFID,
		Amount:   big.NewInt(amount),
		Ref:      "ipfs://aaaaaa",
		BoughtAt: testSched.StartTimestamp,
	})
	if err != nil || !created {
		t.Fatalf("sell slot %d: created=%v err=%v", index, created, err)
	}
}

// slotEnd returns the timestamp at which slot index has elapsed.
func slotEnd(index uint64) int64 {
	_, end := testSched.SlotWindow(index)
	return end
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t, slotEnd(2))
	ctx := context.Background()
	f.sellSlot(t, 1, 1000)
	f.sellSlot(t, 2, 2500)

	sig, msg := f.proof(influencerFID)
	total, err := f.claimer.ClaimRewards(ctx, influencerFID, f.pub, sig, msg, []uint64{1, 2})
	if err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}
	if total.Int64() != 3500 {
		t.Errorf("total: got %s want 3500", total)
	}

	// Flags persisted.
	for _, idx := range []uint64{1, 2} {
		s, _ := market.GetSlot(ctx, f.rdb, testFrameID, idx)
		if !s.Claimed {
			t.Errorf("slot %d not marked claimed", idx)
		}
	}

	// Exactly one payout job for the whole batch, addressed to the
	// influencer's registered address.
	raw, err := f.rdb.LRange(ctx, settler.PayoutQueueKey, 0, -1).Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1 {
		t.Fatalf("payout queue length: got %d want 1", len(raw))
	}
	var job settler.PayoutJob
	if err := json.Unmarshal([]byte(raw[0]), &job); err != nil {
		t.Fatal(err)
	}
	if job.FID != influencerFID || job.Address != influencerAddr.Hex() || job.Amount.Int64() != 3500 {
		t.Errorf("payout job: %+v", job)
	}

	// One Claimed event per slot.
	if len(f.sink.claimed) != 2 {
		t.Errorf("claimed events: %v", f.sink.claimed)
	}
}

func TestClaimRewards_DoubleClaim(t *testing.T) {
	f := newFixture(t, slotEnd(1))
	ctx := context.Background()
	f.sellSlot(t, 1, 1000)

	sig, msg := f.proof(influencerFID)
	if _, err := f.claimer.ClaimRewards(ctx, influencerFID, f.pub, sig, msg, []uint64{1}); err != nil {
		t.Fatal(err)
	}
	_, err := f.claimer.ClaimRewards(ctx, influencerFID, f.pub, sig, msg, []uint64{1})
	if !errors.Is(err, market.ErrAlreadyClaimed) {
		t.Fatalf("got %v, want ErrAlreadyClaimed", err)
	}

	// No second payout was enqueued.
	n, _ := f.rdb.LLen(ctx, settler.PayoutQueueKey).Result()
	if n != 1 {
		t.Errorf("payout queue length: got %d want 1", n)
	}
}

func TestClaimRewards_NotElapsed(t *testing.T) {
	f := newFixture(t, slotEnd(1)-1)
	ctx := context.Background()
	f.sellSlot(t, 1, 1000)

	sig, msg := f.proof(influencerFID)
	_, err := f.claimer.ClaimRewards(ctx, influencerFID, f.pub, sig, msg, []uint64{1})
	if !errors.Is(err, market.ErrSlotNotElapsed) {
		t.Fatalf("got %v, want ErrSlotNotElapsed", err)
	}
}

func TestClaimRewards_NotSlotOwner(t *testing.T) {
	f := newFixture(t, slotEnd(1))
	ctx := context.Background()
	f.sellSlot(t, 1, 1000)

	// FID 99 presents its own valid proof over the same frame URL, but the
	// frame is bound to FID 10.
	const intruderFID = uint64(99)
	f.reg.Register(intruderFID, common.HexToAddress("0x00000000000000000000000000000000000000a2"))
	f.reg.AddKey(intruderFID, f.pub)

	sig, msg := f.proof(intruderFID)
	_, err := f.claimer.ClaimRewards(ctx, intruderFID, f.pub, sig, msg, []uint64{1})
	if !errors.Is(err, market.ErrNotSlotOwner) {
		t.Fatalf("got %v, want ErrNotSlotOwner", err)
	}
	s, _ := market.GetSlot(ctx, f.rdb, testFrameID, 1)
	if s.Claimed {
		t.Error("intruder claim mutated slot state")
	}
}

func TestClaimRewards_RevokedKey(t *testing.T) {
	f := newFixture(t, slotEnd(1))
	f.sellSlot(t, 1, 1000)
	f.reg.RemoveKey(influencerFID, f.pub)

	sig, msg := f.proof(influencerFID)
	_, err := f.claimer.ClaimRewards(context.Background(), influencerFID, f.pub, sig, msg, []uint64{1})
	if !errors.Is(err, farcaster.ErrUnauthorizedSigner) {
		t.Fatalf("got %v, want ErrUnauthorizedSigner", err)
	}
}

func TestClaimRewards_AllOrNothing(t *testing.T) {
	// Slot 2 has not elapsed yet; the batch [1, 2] must leave slot 1 untouched.
	f := newFixture(t, slotEnd(1))
	ctx := context.Background()
	f.sellSlot(t, 1, 1000)
	f.sellSlot(t, 2, 2000)

	sig, msg := f.proof(influencerFID)
	_, err := f.claimer.ClaimRewards(ctx, influencerFID, f.pub, sig, msg, []uint64{1, 2})
	if !errors.Is(err, market.ErrSlotNotElapsed) {
		t.Fatalf("got %v, want ErrSlotNotElapsed", err)
	}

	s, _ := market.GetSlot(ctx, f.rdb, testFrameID, 1)
	if s.Claimed {
		t.Error("failed batch partially settled slot 1")
	}
	n, _ := f.rdb.LLen(ctx, settler.PayoutQueueKey).Result()
	if n != 0 {
		t.Errorf("failed batch enqueued a payout: queue length %d", n)
	}
	if len(f.sink.claimed) != 0 {
		t.Errorf("failed batch emitted events: %v", f.sink.claimed)
	}
}

func TestClaimRewards_EmptyBatch(t *testing.T) {
	f := newFixture(t, slotEnd(1))
	sig, msg := f.proof(influencerFID)

	total, err := f.claimer.ClaimRewards(context.Background(), influencerFID, f.pub, sig, msg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if total.Sign() != 0 {
		t.Errorf("total: got %s want 0", total)
	}
	n, _ := f.rdb.LLen(context.Background(), settler.PayoutQueueKey).Result()
	if n != 0 {
		t.Errorf("empty batch enqueued a payout")
	}
}

func TestClaimRewards_UnlistedFrame(t *testing.T) {
	f := newFixture(t, slotEnd(1))

	// Sign a different URL whose frame was never listed.
	otherURL := "https://unlisted.example/frame"
	msg := farcaster.EncodeMessageData(&farcaster.MessageData{
		Type:    farcaster.MessageTypeCastAdd,
		FID:     influencerFID,
		Network: farcaster.NetworkMainnet,
		CastAdd: &farcaster.CastAddBody{Embeds: []farcaster.Embed{{URL: otherURL}}},
	})
	sig := ed25519.Sign(f.priv, farcaster.Blake3Hasher{}.MessageHash(msg))

	_, err := f.claimer.ClaimRewards(context.Background(), influencerFID, f.pub, sig, msg, []uint64{1})
	if !errors.Is(err, market.ErrNotSlotOwner) {
		t.Fatalf("got %v, want ErrNotSlotOwner", err)
	}
}
