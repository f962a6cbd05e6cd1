package onboard

import (
	"context"
	"sync"
)

// opSlot allows a single running operation per motor. Beginning a new operation cancels
// the current one and waits for it to return before handing over.
type opSlot struct {
	mu      sync.Mutex
	current *slotOp
	run     sync.Mutex
}

type slotOp struct {
	cancel context.CancelFunc
}

// begin returns the context the new operation must run under and the function to call once
// it has finished.
func (s *opSlot) begin(ctx context.Context) (context.Context, func()) {
	op := &slotOp{}
	ctx, op.cancel = context.WithCancel(ctx)

	s.mu.Lock()
	if s.current != nil {
		s.current.cancel()
	}
	s.current = op
	s.mu.Unlock()

	s.run.Lock()

	return ctx, func() {
		op.cancel()
		s.run.Unlock()

		s.mu.Lock()
		if s.current == op {
			s.current = nil
		}
		s.mu.Unlock()
	}
}

// running reports whether an operation currently owns the slot.
func (s *opSlot) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
