package render

import "log"

// Scheduler coalesces dirty marks into at most one repaint per event loop
// iteration. Every model or visibility mutation calls MarkDirty; the loop
// calls Flush once after handling each input source. Single-threaded by
// contract, like everything driven by the loop.
type Scheduler struct {
	dirty    bool
	repaints int
	repaint  func() error
}

func NewScheduler(repaint func() error) *Scheduler {
	return &Scheduler{repaint: repaint}
}

// MarkDirty records that the window content is stale. Cheap and idempotent
// within an iteration.
func (s *Scheduler) MarkDirty() {
	s.dirty = true
}

// Flush performs one repaint if anything is dirty. A failed repaint drops the
// frame: the error is logged and the dirty flag stays cleared so the next
// mutation schedules a fresh attempt.
func (s *Scheduler) Flush() {
	if !s.dirty {
		return
	}
	s.dirty = false
	s.repaints++
	if err := s.repaint(); err != nil {
		log.Printf("Repaint failed, skipping frame: %v", err)
	}
}

// Repaints reports how many repaints have been attempted. Used in tests to
// verify coalescing.
func (s *Scheduler) Repaints() int {
	return s.repaints
}
