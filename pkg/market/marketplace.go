package market

import (
	"fmt"
	"sort"

	"github.com/uhyunpark/agora/pkg/sim"
)

// ArtifactName is the marketplace's registered artifact name.
const ArtifactName = "marketplace"

// Marketplace is the artifact owning one order book per traded good. Books
// are inferred from agent inventories at Compile (every non-capital item
// gets a market) and created lazily if a new good shows up later.
type Marketplace struct {
	books map[string]*OrderBook
	goods []string // sorted, for deterministic iteration
}

var _ sim.Artifact = (*Marketplace)(nil)
var _ sim.QuoteProvider = (*Marketplace)(nil)

func New(goods ...string) *Marketplace {
	m := &Marketplace{books: make(map[string]*OrderBook)}
	for _, g := range goods {
		m.createMarket(g)
	}
	return m
}

func (m *Marketplace) Name() string { return ArtifactName }

func (m *Marketplace) ActionSpace() []sim.ActionSpec {
	return []sim.ActionSpec{
		{Name: "buy", Kind: KindBuy, Decode: decodeBuy},
		{Name: "sell", Kind: KindSell, Decode: decodeSell},
	}
}

func (m *Marketplace) QuerySpace() []sim.ActionSpec {
	return []sim.ActionSpec{
		{Name: "market_query", Kind: KindQuery, Decode: decodeQuery},
	}
}

// Compile infers tradable goods from every agent's starting inventory.
func (m *Marketplace) Compile(ctx *sim.Context) error {
	for _, a := range ctx.Agents() {
		for item := range a.StartingInventory() {
			if item == sim.Capital {
				continue
			}
			m.createMarket(item)
		}
	}
	ctx.Log.Infow("marketplace_compiled", "goods", m.goods)
	return nil
}

func (m *Marketplace) createMarket(good string) {
	if _, ok := m.books[good]; ok {
		return
	}
	m.books[good] = NewOrderBook(good)
	m.goods = append(m.goods, good)
	sort.Strings(m.goods)
}

// Book returns the order book for a good, creating it on first use.
func (m *Marketplace) Book(good string) *OrderBook {
	if b, ok := m.books[good]; ok {
		return b
	}
	m.createMarket(good)
	return m.books[good]
}

// Lookup returns the book for a good without creating one.
func (m *Marketplace) Lookup(good string) (*OrderBook, bool) {
	b, ok := m.books[good]
	return b, ok
}

// Goods returns the traded goods, sorted.
func (m *Marketplace) Goods() []string {
	out := make([]string, len(m.goods))
	copy(out, m.goods)
	return out
}

// ProcessAction routes buy/sell orders to the owning book. The good must
// already have a market: orders never open new markets.
func (m *Marketplace) ProcessAction(ctx *sim.Context, agent *sim.Agent, action sim.Action) (string, error) {
	switch a := action.(type) {
	case BuyOrder:
		book, ok := m.books[a.Good]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownGood, a.Good)
		}
		if a.Quantity < 0 {
			return "", fmt.Errorf("%w: buy quantity must be positive", sim.ErrIllegitimateOrder)
		}
		return book.Add(ctx, agent, &Order{Good: a.Good, Price: a.Price, Quantity: a.Quantity, Agent: agent.ID})
	case SellOrder:
		book, ok := m.books[a.Good]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownGood, a.Good)
		}
		if a.Quantity < 0 {
			return "", fmt.Errorf("%w: sell quantity must be positive", sim.ErrIllegitimateOrder)
		}
		return book.Add(ctx, agent, &Order{Good: a.Good, Price: a.Price, Quantity: -a.Quantity, Agent: agent.ID})
	default:
		return "", fmt.Errorf("%w: %T", sim.ErrInvalidActionType, action)
	}
}

// ProcessQuery answers market queries. Never mutates state.
func (m *Marketplace) ProcessQuery(ctx *sim.Context, _ *sim.Agent, query sim.Action) (string, error) {
	q, ok := query.(MarketQuery)
	if !ok {
		return "", fmt.Errorf("%w: %T", sim.ErrInvalidActionType, query)
	}
	book, exists := m.books[q.Good]
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrUnknownGood, q.Good)
	}
	return book.Render(ctx), nil
}

// Step advances every book's observability series.
func (m *Marketplace) Step(_ *sim.Context) {
	for _, good := range m.goods {
		m.books[good].Step()
	}
}

// Reset clears every book at episode start.
func (m *Marketplace) Reset(_ *sim.Context) error {
	for _, book := range m.books {
		book.Reset()
	}
	return nil
}

// ShouldContinue is always true; market health is not a termination
// condition today.
func (m *Marketplace) ShouldContinue() bool { return true }

// Quotes publishes each good's top of book into agent observations.
func (m *Marketplace) Quotes() map[string]sim.Quote {
	out := make(map[string]sim.Quote, len(m.goods))
	for _, good := range m.goods {
		b := m.books[good]
		q := sim.Quote{Good: good, LastPrice: b.LastPrice()}
		if bid, ok := b.BestBid(); ok {
			q.BestBid, q.HasBid = bid, true
		}
		if ask, ok := b.BestAsk(); ok {
			q.BestAsk, q.HasAsk = ask, true
		}
		out[good] = q
	}
	return out
}
