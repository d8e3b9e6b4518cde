package schedule

import "time"

// Clock supplies wall-clock time. Production code passes time.Now; tests pass
// a controllable function.
type Clock func() time.Time

// Schedule maps wall-clock time onto the global ad-slot sequence. Slot 0
// starts at StartTimestamp; every slot lasts SlotDuration seconds.
type Schedule struct {
	StartTimestamp int64
	SlotDuration   int64
}

// CurrentSlot returns the slot index active at the given unix timestamp,
// clamped to 0 before the schedule starts.
func (s Schedule) CurrentSlot(now int64) uint64 {
	if now < s.StartTimestamp {
		return 0
	}
	return uint64((now - s.StartTimestamp) / s.SlotDuration)
}

// SlotWindow returns the half-open interval [start, end) of a slot.
func (s Schedule) SlotWindow(index uint64) (start, end int64) {
	start = s.StartTimestamp + int64(index)*s.SlotDuration
	return start, start + s.SlotDuration
}

// Elapsed reports whether the slot's full window has passed at the given time.
func (s Schedule) Elapsed(index uint64, now int64) bool {
	_, end := s.SlotWindow(index)
	return now >= end
}
