package market

import "errors"

// Market faults. All are caller/input errors surfaced synchronously; none are
// retried internally.
var (
	// ErrFrameAlreadyClaimed: listing attempted for a frame already bound to a
	// different FID.
	ErrFrameAlreadyClaimed = errors.New("frame already claimed by another fid")

	// ErrSlotNotInFuture: purchase targets the current or a past slot.
	ErrSlotNotInFuture = errors.New("slot is not in the future")

	// ErrSlotAlreadySold: purchase targets a slot with an existing sale.
	ErrSlotAlreadySold = errors.New("slot already sold")

	// ErrZeroPayment: purchase payment not strictly positive.
	ErrZeroPayment = errors.New("payment must be positive")

	// ErrNotSlotOwner: claim attempted by a FID not bound to the slot's frame.
	ErrNotSlotOwner = errors.New("fid does not own this frame's slots")

	// ErrSlotNotElapsed: claim attempted before the slot's window closed.
	ErrSlotNotElapsed = errors.New("slot window has not elapsed")

	// ErrAlreadyClaimed: claim attempted on a slot already settled.
	ErrAlreadyClaimed = errors.New("slot reward already claimed")

	// ErrSlotNotSold: claim attempted on a slot that was never purchased, so
	// there is no escrow to settle.
	ErrSlotNotSold = errors.New("slot was never sold")
)
