package sim

import "sort"

// AgentID identifies an agent in the simulation context. Orders, trades and
// artifacts refer to agents by id, never by pointer, so nothing outside the
// context holds an owning reference.
type AgentID int

// Hook runs before or after an agent's turn. Hooks are an explicit ordered
// list; nothing is discovered by reflection.
type Hook func(*Agent)

// Agent is one participant in the simulation. Its inventory is mutated only
// through the item handler during its own processing window.
type Agent struct {
	ID   AgentID
	Name string

	Inventory *Inventory
	starting  map[string]int64

	Policy Policy

	restrictions map[ActionKind][]*ActionRestriction

	// Per-episode traces.
	Observations []string
	History      []Record

	BeforeTurn []Hook
	AfterTurn  []Hook
}

// NewAgent creates an agent with a starting inventory snapshot. The live
// inventory is minted from the snapshot at Reset.
func NewAgent(name string, starting map[string]int64, policy Policy) *Agent {
	snap := make(map[string]int64, len(starting))
	for item, qty := range starting {
		snap[item] = qty
	}
	return &Agent{
		Name:         name,
		Inventory:    NewInventory(),
		starting:     snap,
		Policy:       policy,
		restrictions: make(map[ActionKind][]*ActionRestriction),
	}
}

// Restrict attaches a restriction to this agent.
func (a *Agent) Restrict(r *ActionRestriction) {
	a.restrictions[r.Kind] = append(a.restrictions[r.Kind], r)
}

// RestrictionsFor returns the restrictions guarding one action kind.
func (a *Agent) RestrictionsFor(kind ActionKind) []*ActionRestriction {
	return a.restrictions[kind]
}

// StartingInventory returns a copy of the starting snapshot.
func (a *Agent) StartingInventory() map[string]int64 {
	out := make(map[string]int64, len(a.starting))
	for item, qty := range a.starting {
		out[item] = qty
	}
	return out
}

// AddObservation appends the result of a turn to the agent's trace.
func (a *Agent) AddObservation(obs string) {
	if obs == "" {
		return
	}
	a.Observations = append(a.Observations, obs)
}

// LastObservation returns the most recent observation, or "".
func (a *Agent) LastObservation() string {
	if len(a.Observations) == 0 {
		return ""
	}
	return a.Observations[len(a.Observations)-1]
}

// resetForEpisode restores the starting inventory (minting fresh units from
// the context) and clears per-episode traces and retry counters.
func (a *Agent) resetForEpisode(ctx *Context) {
	inv := NewInventory()
	for _, item := range sortedItems(a.starting) {
		qty := a.starting[item]
		if item == Capital {
			inv.addCapital(qty)
			continue
		}
		units := make([]Unit, qty)
		for i := range units {
			units[i] = Unit{ID: ctx.NextUnitID()}
		}
		inv.addUnits(item, units)
	}
	a.Inventory = inv
	a.Observations = nil
	a.History = nil
	for _, rs := range a.restrictions {
		for _, r := range rs {
			r.reset()
		}
	}
}

func sortedItems(m map[string]int64) []string {
	items := make([]string, 0, len(m))
	for item := range m {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}
