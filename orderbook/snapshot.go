package orderbook

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"exchange-core/domain"
	"exchange-core/wire"
)

// priceIndex is the sorted secondary index behind Snapshot and Depth: a
// red-black tree per side ordered so that Keys() yields prices most
// aggressive first. It exists purely to give Depth/Snapshot ordered
// iteration without walking the side's linked-list ring (which is
// already ordered, but whose traversal the hot path should never share
// with a reporting call).
//
// Grounded on the teacher's ShardedPriceTree (price_tree_sharded.go),
// which keeps exactly this kind of red-black-tree index over price
// buckets; here it is unsharded and keyed directly by price, since
// Depth/Snapshot are not matching-latency sensitive the way the teacher's
// book lookups are.
type priceIndex struct {
	bids *rbt.Tree[domain.Price, struct{}]
	asks *rbt.Tree[domain.Price, struct{}]
}

func newPriceIndex() *priceIndex {
	return &priceIndex{
		bids: rbt.NewWith[domain.Price, struct{}](descendingPrice),
		asks: rbt.NewWith[domain.Price, struct{}](ascendingPrice),
	}
}

func ascendingPrice(a, b domain.Price) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func descendingPrice(a, b domain.Price) int {
	return -ascendingPrice(a, b)
}

func (p *priceIndex) add(side domain.Side, price domain.Price) {
	p.treeFor(side).Put(price, struct{}{})
}

func (p *priceIndex) remove(side domain.Side, price domain.Price) {
	p.treeFor(side).Remove(price)
}

func (p *priceIndex) treeFor(side domain.Side) *rbt.Tree[domain.Price, struct{}] {
	if side == domain.SideBuy {
		return p.bids
	}
	return p.asks
}

// DepthLevel is one reported price level: its price, the aggregate
// quantity resting at it, and the number of distinct orders.
type DepthLevel struct {
	Price domain.Price
	Qty   domain.Qty
	Count int
}

// Depth returns up to maxLevels price levels per side, most aggressive
// first, from the book's current resting state.
func (b *Book) Depth(maxLevels int) (bids, asks []DepthLevel) {
	bids = b.depthSide(domain.SideBuy, maxLevels)
	asks = b.depthSide(domain.SideSell, maxLevels)
	return bids, asks
}

func (b *Book) depthSide(side domain.Side, maxLevels int) []DepthLevel {
	prices := b.priceIdx.treeFor(side).Keys()
	out := make([]DepthLevel, 0, min(len(prices), maxLevels))
	for _, price := range prices {
		if len(out) >= maxLevels {
			break
		}
		level := b.lookupLevel(side, price)
		var qty domain.Qty
		count := 0
		for o := level.Order0; ; {
			qty += o.Qty
			count++
			o = o.Next
			if o == level.Order0 {
				break
			}
		}
		out = append(out, DepthLevel{Price: price, Qty: qty, Count: count})
	}
	return out
}

// Snapshot emits SNAPSHOT_START, one ADD market update per resting order
// (bids then asks, most aggressive first, FIFO within a level), and
// SNAPSHOT_END. Supplements the engine-owned market-update feed with the
// full-book replay a reconnecting market-data consumer needs; grounded on
// the SNAPSHOT_START/SNAPSHOT_END tags already present, but unused, in
// the original implementation's market_data_msgs.h.
func (b *Book) Snapshot() {
	b.emitMarketUpdate(&wire.MarketUpdate{Type: wire.MarketUpdateSnapshotStart, TickerId: b.tickerId})
	b.snapshotSide(domain.SideBuy)
	b.snapshotSide(domain.SideSell)
	b.emitMarketUpdate(&wire.MarketUpdate{Type: wire.MarketUpdateSnapshotEnd, TickerId: b.tickerId})
}

func (b *Book) snapshotSide(side domain.Side) {
	for _, price := range b.priceIdx.treeFor(side).Keys() {
		level := b.lookupLevel(side, price)
		for o := level.Order0; ; {
			b.emitMarketUpdate(&wire.MarketUpdate{
				Type:     wire.MarketUpdateAdd,
				OrderId:  o.MarketOrderId,
				TickerId: b.tickerId,
				Side:     o.Side,
				Price:    o.Price,
				Qty:      o.Qty,
				Priority: o.Priority,
			})
			o = o.Next
			if o == level.Order0 {
				break
			}
		}
	}
}
