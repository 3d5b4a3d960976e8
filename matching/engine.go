// Package matching implements the matching engine of spec §4.5 (C5): it
// owns one orderbook.Book per ticker, pre-created at construction, and
// drains the request queue on a single pinned thread, dispatching each
// request to its ticker's book and forwarding the responses and market
// updates the book emits onto their respective ring queues.
//
// Grounded on the teacher's MatchingEngine/ExchangeEngine
// (matching/engine.go): the per-symbol engine plus runtime.LockOSThread
// dedicated goroutine survive, generalized from one engine per symbol
// guarded by a copy-on-write atomic.Value map (needed there because
// symbols are created lazily from client traffic) to a single engine
// holding a fixed array of MAX_TICKERS books sized up front — the
// concurrent map was solving a problem this system doesn't have, since
// §4.5 pre-creates every book at construction.
package matching

import (
	"runtime"

	"go.uber.org/zap"

	"exchange-core/domain"
	"exchange-core/internal/fatal"
	"exchange-core/internal/ringqueue"
	"exchange-core/orderbook"
	"exchange-core/wire"
)

// Engine is the matching engine: one goroutine, pinned to a configured
// CPU, owns every book and pops requests off requestQueue.
type Engine struct {
	logger *zap.Logger

	books [domain.MaxTickers]*orderbook.Book

	requestQueue      *ringqueue.Queue[wire.ClientRequest]
	responseQueue     *ringqueue.Queue[wire.ClientResponse]
	marketUpdateQueue *ringqueue.Queue[wire.MarketUpdate]

	cpuAffinity int // -1 means unpinned
	stop        chan struct{}
	done        chan struct{}
	snapshotReq chan domain.TickerId
}

// New builds a matching engine with one book per ticker, all sharing the
// given request/response/market-update queues. cpuAffinity is the CPU
// index to pin the engine's worker thread to, or -1 to leave it
// unpinned.
func New(
	requestQueue *ringqueue.Queue[wire.ClientRequest],
	responseQueue *ringqueue.Queue[wire.ClientResponse],
	marketUpdateQueue *ringqueue.Queue[wire.MarketUpdate],
	orderCapacityPerTicker int,
	cpuAffinity int,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		logger:            logger,
		requestQueue:      requestQueue,
		responseQueue:     responseQueue,
		marketUpdateQueue: marketUpdateQueue,
		cpuAffinity:       cpuAffinity,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
		snapshotReq:       make(chan domain.TickerId, 8),
	}
	for tickerId := 0; tickerId < domain.MaxTickers; tickerId++ {
		tid := domain.TickerId(tickerId)
		e.books[tickerId] = orderbook.New(tid, orderCapacityPerTicker, logger, e.dispatchClientResponse, e.publishMarketUpdate)
	}
	return e
}

// dispatchClientResponse pushes resp onto the response queue. On a full
// queue the response is dropped and logged as an error; the engine keeps
// running.
func (e *Engine) dispatchClientResponse(resp *wire.ClientResponse) {
	if !e.responseQueue.Push(*resp) {
		e.logger.Error("matching: response queue full, response dropped",
			zap.Uint32("clientId", uint32(resp.ClientId)),
			zap.Uint32("tickerId", uint32(resp.TickerId)))
	}
}

// publishMarketUpdate pushes upd onto the market-update queue. A full
// queue is logged the same way.
func (e *Engine) publishMarketUpdate(upd *wire.MarketUpdate) {
	if !e.marketUpdateQueue.Push(*upd) {
		e.logger.Error("matching: market-update queue full, update dropped",
			zap.Uint32("tickerId", uint32(upd.TickerId)))
	}
}

// Start spawns the engine's dedicated worker goroutine, pinned to its
// configured CPU core, and returns immediately.
func (e *Engine) Start() {
	go e.run()
}

// Stop requests the worker loop to exit and blocks until it has.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if e.cpuAffinity >= 0 {
		if err := pinCurrentThread(e.cpuAffinity); err != nil {
			e.logger.Warn("matching: failed to set CPU affinity", zap.Int("cpu", e.cpuAffinity), zap.Error(err))
		}
	}

	e.loop()
}

// loop spin-polls the request queue and dispatches by type. It performs
// no allocation and no blocking syscalls, per §4.5.
func (e *Engine) loop() {
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		select {
		case tickerId := <-e.snapshotReq:
			e.triggerSnapshot(tickerId)
			continue
		default:
		}

		req, ok := e.requestQueue.Pop()
		if !ok {
			continue
		}
		e.dispatch(&req)
	}
}

func (e *Engine) dispatch(req *wire.ClientRequest) {
	if int(req.TickerId) >= len(e.books) {
		if req.Type == wire.RequestNew {
			// A NEW for an unknown ticker is an Invariant violation per §7:
			// the gateway/config contract guarantees every ticker a client
			// can reference is pre-created at construction.
			fatal.Check(false, e.logger, "matching: NEW for out-of-range ticker %d", req.TickerId)
			return
		}
		e.dispatchClientResponse(&wire.ClientResponse{
			Type:          wire.ResponseCancelRejected,
			ClientId:      req.ClientId,
			TickerId:      req.TickerId,
			ClientOrderId: req.OrderId,
			MarketOrderId: domain.OrderIdInvalid,
			Side:          domain.SideInvalid,
			Price:         domain.PriceInvalid,
			QtyExec:       0,
			QtyRemain:     domain.QtyInvalid,
		})
		return
	}
	book := e.books[req.TickerId]

	switch req.Type {
	case wire.RequestNew:
		book.AddOrder(req)
	case wire.RequestCancel:
		book.CancelOrder(req.ClientId, req.OrderId)
	default:
		e.logger.Error("matching: invalid request type dropped", zap.Uint8("type", uint8(req.Type)))
	}
}

// TriggerSnapshot asks the engine's worker goroutine to replay tickerId's
// current book state onto the market-update queue (a supplemented
// feature grounded on original_source's unused SNAPSHOT_START/
// SNAPSHOT_END tags). Safe to call from any goroutine; the replay itself
// always runs on the engine thread, preserving §5's single-owner rule.
func (e *Engine) TriggerSnapshot(tickerId domain.TickerId) {
	if int(tickerId) >= len(e.books) {
		return
	}
	select {
	case e.snapshotReq <- tickerId:
	default:
		e.logger.Error("matching: snapshot request queue full, request dropped", zap.Uint32("tickerId", uint32(tickerId)))
	}
}

func (e *Engine) triggerSnapshot(tickerId domain.TickerId) {
	if int(tickerId) >= len(e.books) {
		return
	}
	e.books[tickerId].Snapshot()
}

// Book returns tickerId's book for read-only inspection (e.g. Depth),
// or nil if out of range. Safe to call only from the engine's worker
// goroutine, per §5's single-owner rule.
func (e *Engine) Book(tickerId domain.TickerId) *orderbook.Book {
	if int(tickerId) >= len(e.books) {
		return nil
	}
	return e.books[tickerId]
}
