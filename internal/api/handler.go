// Package api exposes the engine over HTTP for the frame renderer (reads) and
// the app (mutations).
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/boostyblast/adbooster/internal/auth"
	"github.com/boostyblast/adbooster/internal/farcaster"
	"github.com/boostyblast/adbooster/internal/ipfs"
	"github.com/boostyblast/adbooster/internal/market"
	"github.com/boostyblast/adbooster/internal/registry"
	"github.com/boostyblast/adbooster/internal/rewards"
)

// Handler wires the engine's read and mutating surfaces onto a gin engine.
type Handler struct {
	market  *market.Market
	claimer *rewards.Claimer
	content *ipfs.Client
	log     *zap.Logger
}

func NewHandler(m *market.Market, c *rewards.Claimer, content *ipfs.Client, log *zap.Logger) *Handler {
	return &Handler{market: m, claimer: c, content: content, log: log}
}

// Register mounts all routes. buyerAuth is applied only to the buy route: the
// buyer's identity comes from their wallet signature, while listing and
// claiming carry their own authorship proof in the body.
func (h *Handler) Register(rg *gin.RouterGroup, buyerAuth gin.HandlerFunc) {
	// ── Read surface (renderer) ────────────────────────────────────────────
	rg.GET("/schedule", h.handleSchedule)
	rg.GET("/frames/:frameId/current-ad", h.handleCurrentAd)
	rg.GET("/frames/:frameId/ads", h.handleAdsBySlots)

	// ── Mutating surface ───────────────────────────────────────────────────
	rg.POST("/frames/list", h.handleListForSale)
	rg.POST("/frames/:frameId/slots/:index/buy", buyerAuth, h.handleBuySlot)
	rg.POST("/claims", h.handleClaim)
}

// ── Read surface ──────────────────────────────────────────────────────────────

func (h *Handler) handleSchedule(c *gin.Context) {
	sched := h.market.Schedule()
	c.JSON(http.StatusOK, gin.H{
		"current_slot":    h.market.CurrentSlot(),
		"start_timestamp": sched.StartTimestamp,
		"slot_duration":   sched.SlotDuration,
	})
}

type adResponse struct {
	Slot     uint64          `json:"slot"`
	Ref      string          `json:"ref"`
	BuyerFID uint64          `json:"buyer_fid"`
	Amount   string          `json:"amount"`
	Content  *ipfs.AdContent `json:"content,omitempty"`
}

func (h *Handler) handleCurrentAd(c *gin.Context) {
	frameID, ok := parseFrameID(c)
	if !ok {
		return
	}
	ad, err := h.market.AdForCurrentSlot(c.Request.Context(), frameID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if ad == nil {
		c.JSON(http.StatusOK, gin.H{}) // no ad for this slot
		return
	}

	resp := adResponse{
		Slot:     h.market.CurrentSlot(),
		Ref:      ad.Ref,
		BuyerFID: ad.BuyerFID,
		Amount:   ad.Amount.String(),
	}
	if c.Query("resolve") == "true" {
		content, err := h.content.Resolve(c.Request.Context(), ad.Ref)
		if err != nil {
			// Content gateway trouble must not hide the sale itself.
			h.log.Warn("content resolve failed", zap.String("ref", ad.Ref), zap.Error(err))
		} else {
			resp.Content = content
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleAdsBySlots(c *gin.Context) {
	frameID, ok := parseFrameID(c)
	if !ok {
		return
	}
	indices, err := parseSlotList(c.Query("slots"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slots parameter"})
		return
	}

	ads, err := h.market.AdsBySlots(c.Request.Context(), frameID, indices)
	if err != nil {
		h.fail(c, err)
		return
	}

	// Order-preserving; unsold entries stay as explicit nulls so the caller
	// can align indices with results.
	out := make([]*adResponse, len(indices))
	for i, ad := range ads {
		if ad == nil {
			continue
		}
		out[i] = &adResponse{
			Slot:     indices[i],
			Ref:      ad.Ref,
			BuyerFID: ad.BuyerFID,
			Amount:   ad.Amount.String(),
		}
	}
	c.JSON(http.StatusOK, out)
}

// ── Mutating surface ──────────────────────────────────────────────────────────

type proofRequest struct {
	FID       uint64 `json:"fid"`
	PubKey    string `json:"pub_key"`   // base64
	Signature string `json:"signature"` // base64
	Message   string `json:"message"`   // base64 MessageData wire bytes
}

func (p *proofRequest) decode() (pubKey, sig, msg []byte, err error) {
	if pubKey, err = base64.StdEncoding.DecodeString(p.PubKey); err != nil {
		return nil, nil, nil, err
	}
	if sig, err = base64.StdEncoding.DecodeString(p.Signature); err != nil {
		return nil, nil, nil, err
	}
	if msg, err = base64.StdEncoding.DecodeString(p.Message); err != nil {
		return nil, nil, nil, err
	}
	return pubKey, sig, msg, nil
}

func (h *Handler) handleListForSale(c *gin.Context) {
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pubKey, sig, msg, err := req.decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 field"})
		return
	}

	frameID, err := h.market.ListForSale(c.Request.Context(), req.FID, pubKey, sig, msg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"frame_id": frameID.Hex()})
}

type buyRequest struct {
	ContentRef string `json:"content_ref"`
	Payment    string `json:"payment"` // wei, decimal string
}

func (h *Handler) handleBuySlot(c *gin.Context) {
	frameID, ok := parseFrameID(c)
	if !ok {
		return
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot index"})
		return
	}

	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	payment, ok := new(big.Int).SetString(req.Payment, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment amount"})
		return
	}

	buyer := common.HexToAddress(c.GetString(auth.WalletKey))
	err = h.market.BuySlot(c.Request.Context(), frameID, index, buyer, req.ContentRef, payment)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"frame_id": frameID.Hex(), "slot": index})
}

type claimRequest struct {
	proofRequest
	Slots []uint64 `json:"slots"`
}

func (h *Handler) handleClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pubKey, sig, msg, err := req.decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 field"})
		return
	}

	total, err := h.claimer.ClaimRewards(c.Request.Context(), req.FID, pubKey, sig, msg, req.Slots)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total.String(), "slots": len(req.Slots)})
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func parseFrameID(c *gin.Context) (common.Hash, bool) {
	raw := c.Param("frameId")
	if !strings.HasPrefix(raw, "0x") || len(raw) != 66 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame id"})
		return common.Hash{}, false
	}
	return common.HexToHash(raw), true
}

func parseSlotList(raw string) ([]uint64, error) {
	if raw == "" {
		return nil, errors.New("empty slot list")
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		idx, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// fail maps engine error kinds to HTTP statuses. Every kind is a caller
// fault surfaced synchronously; nothing here is retried.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, farcaster.ErrInvalidSignature),
		errors.Is(err, farcaster.ErrUnauthorizedSigner):
		status = http.StatusUnauthorized
	case errors.Is(err, farcaster.ErrMalformedMessage),
		errors.Is(err, market.ErrSlotNotInFuture),
		errors.Is(err, market.ErrZeroPayment):
		status = http.StatusBadRequest
	case errors.Is(err, market.ErrNotSlotOwner):
		status = http.StatusForbidden
	case errors.Is(err, market.ErrFrameAlreadyClaimed),
		errors.Is(err, market.ErrSlotAlreadySold),
		errors.Is(err, market.ErrSlotNotElapsed),
		errors.Is(err, market.ErrAlreadyClaimed):
		status = http.StatusConflict
	case errors.Is(err, market.ErrSlotNotSold):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrNotRegistered):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
