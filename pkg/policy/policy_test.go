package policy

import (
	"context"
	"testing"

	"github.com/uhyunpark/agora/pkg/sim"
)

func obsWith(step int, inventory map[string]int64, quotes map[string]sim.Quote) sim.Observation {
	return sim.Observation{Step: step, Inventory: inventory, Quotes: quotes}
}

func price(t *testing.T, d sim.Descriptor) int64 {
	t.Helper()
	p, err := sim.IntParam(d.Params, "price")
	if err != nil {
		t.Fatalf("descriptor %+v: %v", d, err)
	}
	return p
}

func TestSequenceReplaysThenSkips(t *testing.T) {
	seq := &Sequence{Steps: []sim.Descriptor{
		buy("widget", 10, 1),
		sell("widget", 12, 1),
	}}

	d, err := seq.Decide(context.Background(), sim.Observation{})
	if err != nil || d.Name != "buy" {
		t.Fatalf("first = %+v, %v", d, err)
	}
	d, _ = seq.Decide(context.Background(), sim.Observation{})
	if d.Name != "sell" {
		t.Fatalf("second = %+v", d)
	}
	for i := 0; i < 3; i++ {
		d, _ = seq.Decide(context.Background(), sim.Observation{})
		if d.Name != "skip" {
			t.Fatalf("exhausted sequence = %+v, want skip", d)
		}
	}
}

func TestBuyerWalksBidUpToValue(t *testing.T) {
	p := &Buyer{Good: "widget", Value: 100, Start: 50, Step: 10}
	inv := map[string]int64{sim.Capital: 1000}

	tests := []struct {
		step int
		want int64
	}{
		{0, 50},
		{1, 60},
		{4, 90},
		{5, 100},
		{9, 100}, // capped at reservation value
	}
	for _, tt := range tests {
		d, err := p.Decide(context.Background(), obsWith(tt.step, inv, nil))
		if err != nil {
			t.Fatalf("step %d: %v", tt.step, err)
		}
		if d.Name != "buy" || price(t, d) != tt.want {
			t.Fatalf("step %d: %+v, want buy at %d", tt.step, d, tt.want)
		}
	}
}

func TestBuyerLiftsCrossableAsk(t *testing.T) {
	p := &Buyer{Good: "widget", Value: 100, Start: 50, Step: 10}
	quotes := map[string]sim.Quote{
		"widget": {Good: "widget", HasAsk: true, BestAsk: 70},
	}
	d, err := p.Decide(context.Background(), obsWith(0, map[string]int64{sim.Capital: 1000}, quotes))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Name != "buy" || price(t, d) != 70 {
		t.Fatalf("decision = %+v, want buy at the ask 70", d)
	}
}

func TestBuyerSkipsWithoutCapital(t *testing.T) {
	p := &Buyer{Good: "widget", Value: 100, Start: 50, Step: 10}
	d, err := p.Decide(context.Background(), obsWith(0, map[string]int64{sim.Capital: 10}, nil))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Name != "skip" {
		t.Fatalf("decision = %+v, want skip", d)
	}
}

func TestSellerWalksAskDownToCost(t *testing.T) {
	p := &Seller{Good: "widget", Cost: 50, Start: 100, Step: 10}
	inv := map[string]int64{"widget": 5}

	tests := []struct {
		step int
		want int64
	}{
		{0, 100},
		{1, 90},
		{5, 50},
		{9, 50}, // floored at cost
	}
	for _, tt := range tests {
		d, err := p.Decide(context.Background(), obsWith(tt.step, inv, nil))
		if err != nil {
			t.Fatalf("step %d: %v", tt.step, err)
		}
		if d.Name != "sell" || price(t, d) != tt.want {
			t.Fatalf("step %d: %+v, want sell at %d", tt.step, d, tt.want)
		}
	}
}

func TestSellerHitsCrossableBid(t *testing.T) {
	p := &Seller{Good: "widget", Cost: 50, Start: 100, Step: 10}
	quotes := map[string]sim.Quote{
		"widget": {Good: "widget", HasBid: true, BestBid: 80},
	}
	d, err := p.Decide(context.Background(), obsWith(0, map[string]int64{"widget": 5}, quotes))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Name != "sell" || price(t, d) != 80 {
		t.Fatalf("decision = %+v, want sell at the bid 80", d)
	}
}

func TestSellerSkipsWithoutGoods(t *testing.T) {
	p := &Seller{Good: "widget", Cost: 50}
	d, err := p.Decide(context.Background(), obsWith(0, map[string]int64{sim.Capital: 100}, nil))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Name != "skip" {
		t.Fatalf("decision = %+v, want skip", d)
	}
}

func TestNoiseTraderIsDeterministicPerSeed(t *testing.T) {
	inv := map[string]int64{sim.Capital: 10000, "widget": 10}
	run := func(seed int64) []sim.Descriptor {
		p := NewNoiseTrader("widget", 100, 20, seed)
		var out []sim.Descriptor
		for i := 0; i < 20; i++ {
			d, err := p.Decide(context.Background(), obsWith(i, inv, nil))
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			out = append(out, d)
		}
		return out
	}

	a, b := run(7), run(7)
	for i := range a {
		if a[i].Name != b[i].Name {
			t.Fatalf("turn %d: %q vs %q, same seed must replay identically", i, a[i].Name, b[i].Name)
		}
		if a[i].Name == "skip" {
			continue
		}
		pa, pb := price(t, a[i]), price(t, b[i])
		if pa != pb {
			t.Fatalf("turn %d: price %d vs %d", i, pa, pb)
		}
		if pa < 80 || pa > 120 {
			t.Fatalf("turn %d: price %d outside base 100 +/- amplitude 20", i, pa)
		}
	}
}
