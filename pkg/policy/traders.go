package policy

import (
	"context"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/uhyunpark/agora/pkg/sim"
)

// Buyer wants up to one unit of Good per turn and will pay at most Value.
// It starts bidding low and walks its bid up each step until it crosses the
// best ask or hits its reservation value.
type Buyer struct {
	Good  string
	Value int64 // reservation price, never exceeded
	Start int64 // opening bid (defaults to Value/2)
	Step  int64 // bid increment per simulation step (defaults to 1)
}

func (p *Buyer) Decide(_ context.Context, obs sim.Observation) (sim.Descriptor, error) {
	start, inc := p.Start, p.Step
	if start <= 0 {
		start = p.Value / 2
	}
	if inc <= 0 {
		inc = 1
	}
	bid := start + int64(obs.Step)*inc
	if bid > p.Value {
		bid = p.Value
	}
	// Lift a crossable ask at the maker's price.
	if q, ok := obs.Quotes[p.Good]; ok && q.HasAsk && q.BestAsk <= p.Value {
		bid = q.BestAsk
	}
	if bid <= 0 || obs.Inventory[sim.Capital] < bid {
		return skip(), nil
	}
	return buy(p.Good, bid, 1), nil
}

// Seller offers one unit of Good per turn and will accept no less than Cost.
// It starts asking high and walks its offer down each step.
type Seller struct {
	Good  string
	Cost  int64 // reservation price, never undercut
	Start int64 // opening ask (defaults to 2*Cost)
	Step  int64 // ask decrement per simulation step (defaults to 1)
}

func (p *Seller) Decide(_ context.Context, obs sim.Observation) (sim.Descriptor, error) {
	if obs.Inventory[p.Good] < 1 {
		return skip(), nil
	}
	start, dec := p.Start, p.Step
	if start <= 0 {
		start = 2 * p.Cost
	}
	if dec <= 0 {
		dec = 1
	}
	ask := start - int64(obs.Step)*dec
	if ask < p.Cost {
		ask = p.Cost
	}
	// Hit a crossable bid at the maker's price.
	if q, ok := obs.Quotes[p.Good]; ok && q.HasBid && q.BestBid >= p.Cost {
		ask = q.BestBid
	}
	if ask <= 0 {
		return skip(), nil
	}
	return sell(p.Good, ask, 1), nil
}

// NoiseTrader drifts its reservation price on a smooth noise field and
// trades one unit a turn against it: it sells when the field sits above its
// base price and holds the good, buys when below and capital allows.
type NoiseTrader struct {
	Good      string
	Base      int64 // center price
	Amplitude int64 // max offset from Base
	Seed      int64

	noise opensimplex.Noise
	t     float64
}

func NewNoiseTrader(good string, base, amplitude, seed int64) *NoiseTrader {
	return &NoiseTrader{
		Good:      good,
		Base:      base,
		Amplitude: amplitude,
		Seed:      seed,
		noise:     opensimplex.NewNormalized(seed),
	}
}

func (p *NoiseTrader) Decide(_ context.Context, obs sim.Observation) (sim.Descriptor, error) {
	if p.noise == nil {
		p.noise = opensimplex.NewNormalized(p.Seed)
	}
	p.t += 0.1
	// Normalized noise is in [0,1]; recenter to [-1,1].
	n := p.noise.Eval2(p.t, float64(p.Seed))*2 - 1
	price := p.Base + int64(n*float64(p.Amplitude))
	if price <= 0 {
		return skip(), nil
	}
	if n >= 0 && obs.Inventory[p.Good] > 0 {
		return sell(p.Good, price, 1), nil
	}
	if obs.Inventory[sim.Capital] >= price {
		return buy(p.Good, price, 1), nil
	}
	return skip(), nil
}
