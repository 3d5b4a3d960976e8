package orderbook

import (
	"testing"

	"go.uber.org/zap"

	"exchange-core/domain"
	"exchange-core/wire"
)

type harness struct {
	book      *Book
	responses []wire.ClientResponse
	updates   []wire.MarketUpdate
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.book = New(0, 1024, zap.NewNop(),
		func(r *wire.ClientResponse) { h.responses = append(h.responses, *r) },
		func(u *wire.MarketUpdate) { h.updates = append(h.updates, *u) },
	)
	return h
}

func (h *harness) add(clientId domain.ClientId, orderId domain.OrderId, side domain.Side, price domain.Price, qty domain.Qty) {
	h.book.AddOrder(&wire.ClientRequest{
		Type: wire.RequestNew, ClientId: clientId, TickerId: 0,
		OrderId: orderId, Side: side, Price: price, Qty: qty,
	})
}

func TestRestingOrderNoCross(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideBuy, 990, 10)

	if len(h.responses) != 1 || h.responses[0].Type != wire.ResponseAccepted {
		t.Fatalf("expected a single ACCEPTED response, got %+v", h.responses)
	}
	if len(h.updates) != 1 || h.updates[0].Type != wire.MarketUpdateAdd {
		t.Fatalf("expected a single ADD update, got %+v", h.updates)
	}
	if h.book.BestBid() != 990 {
		t.Fatalf("expected best bid 990, got %d", h.book.BestBid())
	}
	if h.book.BestAsk() != domain.PriceInvalid {
		t.Fatalf("expected no best ask, got %d", h.book.BestAsk())
	}
}

func TestFullCross(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideSell, 1000, 10)
	h.responses, h.updates = nil, nil

	h.add(2, 200, domain.SideBuy, 1000, 10)

	var filled int
	for _, r := range h.responses {
		if r.Type == wire.ResponseFilled {
			filled++
		}
	}
	if filled != 2 {
		t.Fatalf("expected 2 FILLED responses (aggressor + resting), got %d in %+v", filled, h.responses)
	}

	var trades, cancels int
	for _, u := range h.updates {
		switch u.Type {
		case wire.MarketUpdateTrade:
			trades++
		case wire.MarketUpdateCancel:
			cancels++
		}
	}
	if trades != 1 {
		t.Fatalf("expected 1 TRADE update, got %d", trades)
	}
	if cancels != 1 {
		t.Fatalf("expected 1 CANCEL update for the fully-filled resting order, got %d", cancels)
	}
	if h.book.BestBid() != domain.PriceInvalid || h.book.BestAsk() != domain.PriceInvalid {
		t.Fatalf("expected an empty book after a full cross, got bid=%d ask=%d", h.book.BestBid(), h.book.BestAsk())
	}
}

func TestResidualRestsAfterPartialCross(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideSell, 1000, 5)
	h.responses, h.updates = nil, nil

	h.add(2, 200, domain.SideBuy, 1000, 10)

	var aggressorFill wire.ClientResponse
	found := false
	for _, r := range h.responses {
		if r.Type == wire.ResponseFilled && r.ClientId == 2 {
			aggressorFill = r
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a FILLED response for the aggressor, got %+v", h.responses)
	}
	if aggressorFill.QtyExec != 5 || aggressorFill.QtyRemain != 5 {
		t.Fatalf("expected aggressor to fill 5 and rest 5, got exec=%d remain=%d", aggressorFill.QtyExec, aggressorFill.QtyRemain)
	}
	if h.book.BestBid() != 1000 {
		t.Fatalf("expected the residual 5 to rest at 1000, got bid=%d", h.book.BestBid())
	}
}

func TestCancelResting(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideBuy, 990, 10)
	h.responses, h.updates = nil, nil

	h.book.CancelOrder(1, 100)

	if len(h.responses) != 1 || h.responses[0].Type != wire.ResponseCancelled {
		t.Fatalf("expected a single CANCELLED response, got %+v", h.responses)
	}
	if h.responses[0].QtyRemain != 10 {
		t.Fatalf("expected CANCELLED to report the pre-cancel qty 10, got %d", h.responses[0].QtyRemain)
	}
	if h.book.BestBid() != domain.PriceInvalid {
		t.Fatalf("expected empty bid side after cancel, got %d", h.book.BestBid())
	}
}

func TestCancelRejectedWhenUnknown(t *testing.T) {
	h := newHarness(t)
	h.book.CancelOrder(1, 999)

	if len(h.responses) != 1 || h.responses[0].Type != wire.ResponseCancelRejected {
		t.Fatalf("expected a single CANCEL_REJECTED response, got %+v", h.responses)
	}
	if h.responses[0].ClientId != 1 {
		t.Fatalf("expected clientId to be preserved on rejection")
	}
}

func TestPriorityIsFIFOWithinALevel(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideSell, 1000, 5)
	h.add(2, 200, domain.SideSell, 1000, 5)
	h.responses, h.updates = nil, nil

	// Aggressor crosses both resting orders; the first-added order must
	// fill first.
	h.add(3, 300, domain.SideBuy, 1000, 10)

	var fillOrder []domain.ClientId
	for _, r := range h.responses {
		if r.Type == wire.ResponseFilled && r.ClientId != 3 {
			fillOrder = append(fillOrder, r.ClientId)
		}
	}
	if len(fillOrder) != 2 || fillOrder[0] != 1 || fillOrder[1] != 2 {
		t.Fatalf("expected resting fills in FIFO order [1 2], got %v", fillOrder)
	}
}

func TestDepthReportsAggregatesMostAggressiveFirst(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideBuy, 990, 10)
	h.add(2, 200, domain.SideBuy, 1000, 5)
	h.add(3, 300, domain.SideBuy, 1000, 5)
	h.add(4, 400, domain.SideSell, 1010, 7)

	bids, asks := h.book.Depth(10)
	if len(bids) != 2 {
		t.Fatalf("expected 2 distinct bid levels, got %d: %+v", len(bids), bids)
	}
	if bids[0].Price != 1000 || bids[0].Qty != 10 || bids[0].Count != 2 {
		t.Fatalf("expected best bid level {1000, qty 10, count 2} first, got %+v", bids[0])
	}
	if bids[1].Price != 990 || bids[1].Qty != 10 || bids[1].Count != 1 {
		t.Fatalf("expected second bid level {990, qty 10, count 1}, got %+v", bids[1])
	}
	if len(asks) != 1 || asks[0].Price != 1010 || asks[0].Qty != 7 {
		t.Fatalf("expected a single ask level {1010, qty 7}, got %+v", asks)
	}
}

func TestDepthRespectsMaxLevels(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideBuy, 990, 1)
	h.add(2, 200, domain.SideBuy, 995, 1)
	h.add(3, 300, domain.SideBuy, 1000, 1)

	bids, _ := h.book.Depth(2)
	if len(bids) != 2 {
		t.Fatalf("expected depth capped at 2 levels, got %d", len(bids))
	}
	if bids[0].Price != 1000 || bids[1].Price != 995 {
		t.Fatalf("expected the two most aggressive levels [1000 995], got %+v", bids)
	}
}

func TestSnapshotEmitsFramedReplayOfRestingOrders(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideBuy, 990, 10)
	h.add(2, 200, domain.SideSell, 1010, 7)
	h.updates = nil

	h.book.Snapshot()

	if len(h.updates) != 4 {
		t.Fatalf("expected SNAPSHOT_START + 2 ADD + SNAPSHOT_END, got %d: %+v", len(h.updates), h.updates)
	}
	if h.updates[0].Type != wire.MarketUpdateSnapshotStart {
		t.Fatalf("expected the first update to be SNAPSHOT_START, got %+v", h.updates[0])
	}
	if h.updates[len(h.updates)-1].Type != wire.MarketUpdateSnapshotEnd {
		t.Fatalf("expected the last update to be SNAPSHOT_END, got %+v", h.updates[len(h.updates)-1])
	}
	middleAreAdds := true
	for _, u := range h.updates[1 : len(h.updates)-1] {
		if u.Type != wire.MarketUpdateAdd {
			middleAreAdds = false
		}
	}
	if !middleAreAdds {
		t.Fatalf("expected every update between SNAPSHOT_START/END to be ADD, got %+v", h.updates)
	}
}

func TestPriceImprovementAccruesToAggressor(t *testing.T) {
	h := newHarness(t)
	h.add(1, 100, domain.SideSell, 990, 10)
	h.responses, h.updates = nil, nil

	h.add(2, 200, domain.SideBuy, 1000, 10)

	for _, r := range h.responses {
		if r.Type == wire.ResponseFilled && r.ClientId == 2 && r.Price != 990 {
			t.Fatalf("expected the aggressor to fill at the resting price 990, got %d", r.Price)
		}
	}
}
