package domain

// Order is a single resting or in-flight order. It is always owned by
// exactly one price level's ring while linked, referenced by the stable
// address an internal/pool.Pool hands out on allocation — never by a
// reference-counted pointer (see §9: lifetimes are tied exactly to pool
// allocation/deallocation on the engine thread).
//
// Invariants (§3):
//   - an order is linked into at most one price-level ring at a time;
//   - Prev and Next are never nil while linked — a singleton ring points
//     to itself;
//   - Priority strictly increases along Next within a level;
//   - Qty > 0 while linked.
type Order struct {
	TickerId      TickerId
	ClientId      ClientId
	ClientOrderId OrderId
	MarketOrderId OrderId
	Side          Side
	Price         Price
	Qty           Qty
	Priority      Priority

	// Prev/Next link to neighboring orders at the same price level,
	// ordered by ascending Priority (Next walks FIFO order).
	Prev *Order
	Next *Order
}

// PriceLevel is the set of resting orders at one price on one side,
// ordered by priority. Order0 is the head of the order ring — the
// highest-priority (first in FIFO) order at this price.
//
// Invariants (§3):
//   - levels on a side are sorted so traversal from the book's head moves
//     from most to least aggressive;
//   - the per-side list is a ring (the head's Prev is the tail);
//   - a level is live iff its order ring is non-empty.
type PriceLevel struct {
	Side   Side
	Price  Price
	Order0 *Order

	// Prev/Next link to neighboring price levels on the same side, more
	// and less aggressive respectively.
	Prev *PriceLevel
	Next *PriceLevel
}
