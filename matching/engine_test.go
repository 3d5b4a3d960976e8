package matching

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"exchange-core/domain"
	"exchange-core/internal/ringqueue"
	"exchange-core/wire"
)

// panicOnFatalLogger turns a fatal-level log entry into a recoverable
// panic instead of os.Exit, so tests can assert on the invariant
// violations in internal/fatal.
func panicOnFatalLogger() *zap.Logger {
	return zap.New(zapcore.NewNopCore(), zap.OnFatal(zapcore.WriteThenPanic))
}

func newTestEngine(t *testing.T) (*Engine, *ringqueue.Queue[wire.ClientRequest]) {
	t.Helper()
	reqQ := ringqueue.New[wire.ClientRequest](1024)
	respQ := ringqueue.New[wire.ClientResponse](1024)
	muQ := ringqueue.New[wire.MarketUpdate](1024)
	e := New(reqQ, respQ, muQ, 1024, -1, zap.NewNop())
	return e, reqQ
}

func newTestEngineWithLogger(t *testing.T, logger *zap.Logger) (*Engine, *ringqueue.Queue[wire.ClientRequest]) {
	t.Helper()
	reqQ := ringqueue.New[wire.ClientRequest](1024)
	respQ := ringqueue.New[wire.ClientResponse](1024)
	muQ := ringqueue.New[wire.MarketUpdate](1024)
	e := New(reqQ, respQ, muQ, 1024, -1, logger)
	return e, reqQ
}

func popResponseWithin(t *testing.T, e *Engine, timeout time.Duration) wire.ClientResponse {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r, ok := e.responseQueue.Pop(); ok {
			return r
		}
	}
	t.Fatal("timed out waiting for a response")
	return wire.ClientResponse{}
}

func TestEngineDispatchesNewAndCancel(t *testing.T) {
	e, reqQ := newTestEngine(t)
	e.Start()
	defer e.Stop()

	reqQ.Push(wire.ClientRequest{Type: wire.RequestNew, ClientId: 1, TickerId: 0, OrderId: 1, Side: domain.SideBuy, Price: 100, Qty: 5})
	accepted := popResponseWithin(t, e, time.Second)
	if accepted.Type != wire.ResponseAccepted {
		t.Fatalf("expected ACCEPTED, got %+v", accepted)
	}

	reqQ.Push(wire.ClientRequest{Type: wire.RequestCancel, ClientId: 1, TickerId: 0, OrderId: 1})
	cancelled := popResponseWithin(t, e, time.Second)
	if cancelled.Type != wire.ResponseCancelled {
		t.Fatalf("expected CANCELLED, got %+v", cancelled)
	}
}

func TestEngineTriggerSnapshot(t *testing.T) {
	e, reqQ := newTestEngine(t)
	e.Start()
	defer e.Stop()

	reqQ.Push(wire.ClientRequest{Type: wire.RequestNew, ClientId: 1, TickerId: 0, OrderId: 1, Side: domain.SideBuy, Price: 100, Qty: 5})
	popResponseWithin(t, e, time.Second)

	// Drain the ADD market update from the resting order before snapshotting.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := e.marketUpdateQueue.Pop(); ok {
			break
		}
	}

	e.TriggerSnapshot(0)

	var updates []wire.MarketUpdate
	deadline = time.Now().Add(time.Second)
	for len(updates) < 2 && time.Now().Before(deadline) {
		if u, ok := e.marketUpdateQueue.Pop(); ok {
			updates = append(updates, u)
		}
	}
	if len(updates) < 2 || updates[0].Type != wire.MarketUpdateSnapshotStart {
		t.Fatalf("expected a snapshot replay starting with SNAPSHOT_START, got %+v", updates)
	}
}

func TestEngineNewForOutOfRangeTickerIsFatal(t *testing.T) {
	e, _ := newTestEngineWithLogger(t, panicOnFatalLogger())

	defer func() {
		if recover() == nil {
			t.Fatal("expected a NEW for an out-of-range ticker to be fatal, per spec §7")
		}
	}()
	req := wire.ClientRequest{Type: wire.RequestNew, ClientId: 1, TickerId: domain.TickerId(domain.MaxTickers), OrderId: 1, Side: domain.SideBuy, Price: 100, Qty: 5}
	e.dispatch(&req)
}

func TestEngineCancelForOutOfRangeTickerIsRejected(t *testing.T) {
	e, reqQ := newTestEngine(t)
	e.Start()
	defer e.Stop()

	reqQ.Push(wire.ClientRequest{Type: wire.RequestCancel, ClientId: 5, TickerId: domain.TickerId(domain.MaxTickers), OrderId: 99})
	resp := popResponseWithin(t, e, time.Second)
	if resp.Type != wire.ResponseCancelRejected {
		t.Fatalf("expected CANCEL_REJECTED, got %+v", resp)
	}
	if resp.ClientId != 5 || resp.ClientOrderId != 99 {
		t.Fatalf("expected client/order id preserved on rejection, got %+v", resp)
	}
}
