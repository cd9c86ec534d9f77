package market

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uhyunpark/agora/pkg/sim"
)

// PriceLevel aggregates resting quantity at one price.
type PriceLevel struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// OrderBook is the matching engine for a single good. Resting buys are kept
// sorted by price descending, resting sells by price ascending; equal prices
// break ties by order sequence number, so time priority is strict FIFO.
//
// Invariants the book maintains after every Add:
//   - best bid < best ask (crossing states resolve by immediate execution)
//   - at most one resting order per agent
//   - every resting order has positive price and non-zero quantity
//
// The book is driven by a single writer (the turn loop), so it carries no
// lock of its own; readers go through the environment's view lock.
type OrderBook struct {
	good string

	buys  []*Order
	sells []*Order

	trades    []sim.Trade
	lastPrice int64

	orderCount int64

	// Best-quote time series for the observability boundary. When a side is
	// empty the last known value is carried forward.
	bestBidHistory []int64
	bestAskHistory []int64
}

func NewOrderBook(good string) *OrderBook {
	return &OrderBook{good: good}
}

func (b *OrderBook) Good() string { return b.good }

// BestBid returns the highest resting bid price.
func (b *OrderBook) BestBid() (int64, bool) {
	if len(b.buys) == 0 {
		return 0, false
	}
	return b.buys[0].Price, true
}

// BestAsk returns the lowest resting ask price.
func (b *OrderBook) BestAsk() (int64, bool) {
	if len(b.sells) == 0 {
		return 0, false
	}
	return b.sells[0].Price, true
}

// LastPrice returns the most recent transaction price, or 0 before any trade.
func (b *OrderBook) LastPrice() int64 { return b.lastPrice }

// Add validates, cancels any prior resting order from the same agent, checks
// legitimacy against the agent's holdings, then matches the order against the
// opposing side while prices cross. Whatever quantity survives matching
// rests in the book. Illegitimate orders are rejected with a typed error and
// leave no trace beyond the implicit cancellation of the agent's prior order.
func (b *OrderBook) Add(ctx *sim.Context, agent *sim.Agent, o *Order) (string, error) {
	if o.Price <= 0 {
		return "", fmt.Errorf("%w (got %d)", ErrInvalidPrice, o.Price)
	}
	if o.Quantity == 0 {
		return "", ErrInvalidQuantity
	}

	o.Seq = ctx.NextOrderSeq()
	cancelled := b.removeAgentOrders(o.Agent)

	if err := b.checkLegitimacy(agent, o); err != nil {
		return "", err
	}
	b.orderCount++

	filled := int64(0)
	if o.IsBuy() {
		for o.Quantity > 0 && len(b.sells) > 0 && o.Price >= b.sells[0].Price {
			filled += b.execute(ctx, o, b.sells[0])
		}
	} else {
		for o.Quantity < 0 && len(b.buys) > 0 && o.Price <= b.buys[0].Price {
			filled += b.execute(ctx, o, b.buys[0])
		}
	}

	resting := o.Remaining()
	if resting > 0 {
		b.insert(o)
	}

	side := "sell"
	if o.IsBuy() {
		side = "buy"
	}
	ctx.Log.Infow("order_accepted",
		"good", b.good, "agent", agent.Name, "side", side,
		"price", o.Price, "filled", filled, "resting", resting, "replaced", cancelled)

	var parts []string
	if cancelled > 0 {
		parts = append(parts, "previous order cancelled")
	}
	if filled > 0 {
		parts = append(parts, fmt.Sprintf("filled %d", filled))
	}
	if resting > 0 {
		parts = append(parts, fmt.Sprintf("resting %d at %d", resting, o.Price))
	}
	return fmt.Sprintf("%s order for %s: %s", side, b.good, strings.Join(parts, ", ")), nil
}

// checkLegitimacy verifies the agent can honor the order on top of whatever
// it already has committed to this book's resting orders. A buy commits
// price times quantity, the worst-case capital outlay (fills at better
// resting prices only cost less); a sell commits its quantity of the good.
func (b *OrderBook) checkLegitimacy(agent *sim.Agent, o *Order) error {
	if o.IsBuy() {
		committed := o.Price * o.Remaining()
		for _, r := range b.buys {
			if r.Agent == o.Agent {
				committed += r.Price * r.Remaining()
			}
		}
		if have := agent.Inventory.Quantity(sim.Capital); have < committed {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFund, committed, have)
		}
		return nil
	}
	committed := o.Remaining()
	for _, r := range b.sells {
		if r.Agent == o.Agent {
			committed += r.Remaining()
		}
	}
	if have := agent.Inventory.Quantity(b.good); have < committed {
		return fmt.Errorf("%w: need %d %s, have %d", ErrInsufficientGood, committed, b.good, have)
	}
	return nil
}

// execute trades the incoming order against the best opposing resting order.
// The transaction price is always the resting order's price (maker price
// rule); the quantity is the smaller remaining side. Returns the matched
// quantity.
func (b *OrderBook) execute(ctx *sim.Context, incoming, resting *Order) int64 {
	price := resting.Price
	qty := incoming.Remaining()
	if r := resting.Remaining(); r < qty {
		qty = r
	}

	buyer, seller := incoming, resting
	if !incoming.IsBuy() {
		buyer, seller = resting, incoming
	}

	// Caller-validates / handler-executes: legitimacy was checked on entry,
	// the handler transfers unconditionally.
	ctx.Items.Trade(
		buyer.Agent, sim.Transfer{Item: sim.Capital, Qty: price * qty},
		seller.Agent, sim.Transfer{Item: b.good, Qty: qty},
	)

	if incoming.IsBuy() {
		incoming.Quantity -= qty
		resting.Quantity += qty
	} else {
		incoming.Quantity += qty
		resting.Quantity -= qty
	}
	if resting.Remaining() == 0 {
		b.removeOrder(resting)
	}

	t := sim.Trade{
		Seq:      ctx.NextTradeSeq(),
		Good:     b.good,
		Buyer:    ctx.Agent(buyer.Agent).Name,
		Seller:   ctx.Agent(seller.Agent).Name,
		Price:    price,
		Quantity: qty,
		Step:     ctx.Step,
		Episode:  ctx.Episode,
	}
	b.trades = append(b.trades, t)
	b.lastPrice = price
	ctx.EmitTrade(t)
	ctx.Log.Infow("trade_executed",
		"good", b.good, "buyer", t.Buyer, "seller", t.Seller,
		"price", price, "qty", qty, "seq", t.Seq)
	return qty
}

func (b *OrderBook) insert(o *Order) {
	if o.IsBuy() {
		b.buys = append(b.buys, o)
		sort.Slice(b.buys, func(i, j int) bool {
			if b.buys[i].Price != b.buys[j].Price {
				return b.buys[i].Price > b.buys[j].Price
			}
			return b.buys[i].Seq < b.buys[j].Seq
		})
		return
	}
	b.sells = append(b.sells, o)
	sort.Slice(b.sells, func(i, j int) bool {
		if b.sells[i].Price != b.sells[j].Price {
			return b.sells[i].Price < b.sells[j].Price
		}
		return b.sells[i].Seq < b.sells[j].Seq
	})
}

func (b *OrderBook) removeOrder(o *Order) {
	b.buys = removeFrom(b.buys, o)
	b.sells = removeFrom(b.sells, o)
}

func removeFrom(side []*Order, o *Order) []*Order {
	for i, r := range side {
		if r == o {
			return append(side[:i], side[i+1:]...)
		}
	}
	return side
}

// removeAgentOrders drops every resting order owned by the agent, on either
// side. Returns how many were cancelled (at most one by invariant).
func (b *OrderBook) removeAgentOrders(id sim.AgentID) int {
	n := 0
	filter := func(side []*Order) []*Order {
		out := side[:0]
		for _, r := range side {
			if r.Agent == id {
				n++
				continue
			}
			out = append(out, r)
		}
		return out
	}
	b.buys = filter(b.buys)
	b.sells = filter(b.sells)
	return n
}

// RestingOrders returns the agent's resting orders in this book.
func (b *OrderBook) RestingOrders(id sim.AgentID) []*Order {
	var out []*Order
	for _, r := range b.buys {
		if r.Agent == id {
			out = append(out, r)
		}
	}
	for _, r := range b.sells {
		if r.Agent == id {
			out = append(out, r)
		}
	}
	return out
}

// Step appends the current best bid/ask to the observability series,
// carrying the last known value when a side is empty.
func (b *OrderBook) Step() {
	if bid, ok := b.BestBid(); ok {
		b.bestBidHistory = append(b.bestBidHistory, bid)
	} else if n := len(b.bestBidHistory); n > 0 {
		b.bestBidHistory = append(b.bestBidHistory, b.bestBidHistory[n-1])
	}
	if ask, ok := b.BestAsk(); ok {
		b.bestAskHistory = append(b.bestAskHistory, ask)
	} else if n := len(b.bestAskHistory); n > 0 {
		b.bestAskHistory = append(b.bestAskHistory, b.bestAskHistory[n-1])
	}
}

// Reset clears resting orders, counters, trades, and history series.
func (b *OrderBook) Reset() {
	b.buys = nil
	b.sells = nil
	b.trades = nil
	b.lastPrice = 0
	b.orderCount = 0
	b.bestBidHistory = nil
	b.bestAskHistory = nil
}

// BidLevels returns bid depth aggregated per price, best first.
func (b *OrderBook) BidLevels() []PriceLevel { return levels(b.buys) }

// AskLevels returns ask depth aggregated per price, best first.
func (b *OrderBook) AskLevels() []PriceLevel { return levels(b.sells) }

func levels(side []*Order) []PriceLevel {
	var out []PriceLevel
	for _, o := range side {
		if n := len(out); n > 0 && out[n-1].Price == o.Price {
			out[n-1].Qty += o.Remaining()
			continue
		}
		out = append(out, PriceLevel{Price: o.Price, Qty: o.Remaining()})
	}
	return out
}

// Trades returns a copy of this episode's transaction history.
func (b *OrderBook) Trades() []sim.Trade {
	out := make([]sim.Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// OrderCount returns how many orders this book accepted this episode.
func (b *OrderBook) OrderCount() int64 { return b.orderCount }

// BestBidHistory returns the recorded best-bid series.
func (b *OrderBook) BestBidHistory() []int64 {
	out := make([]int64, len(b.bestBidHistory))
	copy(out, b.bestBidHistory)
	return out
}

// BestAskHistory returns the recorded best-ask series.
func (b *OrderBook) BestAskHistory() []int64 {
	out := make([]int64, len(b.bestAskHistory))
	copy(out, b.bestAskHistory)
	return out
}

// Render returns a human-readable book snapshot, used as the market query
// response.
func (b *OrderBook) Render(ctx *sim.Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s order book ===\n", b.good)
	sb.WriteString("asks (price qty agent):\n")
	for i := len(b.sells) - 1; i >= 0; i-- {
		o := b.sells[i]
		fmt.Fprintf(&sb, "  %d %d %s\n", o.Price, o.Remaining(), ctx.Agent(o.Agent).Name)
	}
	sb.WriteString("bids (price qty agent):\n")
	for _, o := range b.buys {
		fmt.Fprintf(&sb, "  %d %d %s\n", o.Price, o.Remaining(), ctx.Agent(o.Agent).Name)
	}
	if len(b.trades) > 0 {
		sb.WriteString("last trades (price qty buyer seller):\n")
		start := len(b.trades) - 5
		if start < 0 {
			start = 0
		}
		for _, t := range b.trades[start:] {
			fmt.Fprintf(&sb, "  %d %d %s %s\n", t.Price, t.Quantity, t.Buyer, t.Seller)
		}
	}
	return sb.String()
}
