// Package sequencer implements the FIFO sequencer of spec §4.6 (C6): it
// buffers (rxTimeNanos, ClientRequest) pairs as the gateway receives
// them across potentially many client sockets, then restores strict
// arrival-time order within each batch before handing requests to the
// matching engine.
//
// TCP multiplexing across client sockets can deliver readiness events in
// an order that differs from their kernel-timestamped arrival; this is
// the one place that reordering gets corrected. Grounded in structure on
// wyfcoding/financialTrading's sequencer.go (an MPSC ring-buffer
// sequencer for the same "restore real arrival order" problem), adapted
// to the spec's simpler single-threaded fixed-buffer-plus-stable-sort
// design rather than a ring buffer, since the gateway here is the
// sequencer's only caller.
package sequencer

import (
	"sort"

	"go.uber.org/zap"

	"exchange-core/domain"
	"exchange-core/internal/fatal"
	"exchange-core/internal/ringqueue"
	"exchange-core/wire"
)

type pendingRequest struct {
	rxTimeNanos int64
	req         wire.ClientRequest
}

// Sequencer owns a fixed-capacity buffer of pending requests and a
// handle to the engine's request queue. Not safe for concurrent use: per
// §5, only the gateway thread touches it.
type Sequencer struct {
	logger       *zap.Logger
	pending      []pendingRequest
	requestQueue *ringqueue.Queue[wire.ClientRequest]
}

// New builds a sequencer feeding requestQueue, with a pending-buffer
// capacity of domain.MaxPendingRequests.
func New(requestQueue *ringqueue.Queue[wire.ClientRequest], logger *zap.Logger) *Sequencer {
	return &Sequencer{
		logger:       logger,
		pending:      make([]pendingRequest, 0, domain.MaxPendingRequests),
		requestQueue: requestQueue,
	}
}

// PushClientRequest appends (req, rxTimeNanos) to the pending buffer.
// Overflowing the fixed buffer is a fatal invariant violation per §7.
func (s *Sequencer) PushClientRequest(req wire.ClientRequest, rxTimeNanos int64) {
	fatal.Check(len(s.pending) < domain.MaxPendingRequests, s.logger,
		"sequencer: pending request buffer overflow (capacity %d)", domain.MaxPendingRequests)
	s.pending = append(s.pending, pendingRequest{rxTimeNanos: rxTimeNanos, req: req})
}

// SequenceAndPublish stable-sorts the buffered requests by rxTimeNanos
// ascending (ties broken by insertion order) and pushes them in order
// onto the request queue, then resets the buffer. A full request queue
// is logged as an error; the sequencer still advances and drops the
// request, since the caller has no synchronous way to retry it.
func (s *Sequencer) SequenceAndPublish() {
	if len(s.pending) == 0 {
		return
	}

	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].rxTimeNanos < s.pending[j].rxTimeNanos
	})

	for _, p := range s.pending {
		if !s.requestQueue.Push(p.req) {
			s.logger.Error("sequencer: request queue full, request dropped",
				zap.Uint32("clientId", uint32(p.req.ClientId)))
		}
	}
	s.pending = s.pending[:0]
}
