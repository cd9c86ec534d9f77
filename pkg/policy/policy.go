// Package policy provides scripted decision collaborators for simulation
// agents. Each policy implements sim.Policy: it receives the agent's current
// observation and returns the next action descriptor, or skip. Language
// model backed collaborators would plug in at the same seam.
package policy

import (
	"context"

	"github.com/uhyunpark/agora/pkg/sim"
)

func skip() sim.Descriptor { return sim.Descriptor{Name: "skip"} }

func buy(good string, price, qty int64) sim.Descriptor {
	return sim.Descriptor{Name: "buy", Params: map[string]any{
		"good": good, "price": price, "quantity": qty,
	}}
}

func sell(good string, price, qty int64) sim.Descriptor {
	return sim.Descriptor{Name: "sell", Params: map[string]any{
		"good": good, "price": price, "quantity": qty,
	}}
}

// Sequence replays a fixed list of descriptors, one per turn, then skips.
// Useful for tests and deterministic scenario replays.
type Sequence struct {
	Steps []sim.Descriptor
	next  int
}

func (p *Sequence) Decide(_ context.Context, _ sim.Observation) (sim.Descriptor, error) {
	if p.next >= len(p.Steps) {
		return skip(), nil
	}
	d := p.Steps[p.next]
	p.next++
	return d, nil
}
