package sim

import "sort"

// Capital is the distinguished scalar item used as the pricing side of every
// trade. All other items are discrete goods held as countable units.
const Capital = "capital"

// Unit is one countable unit of a discrete good. Units carry a run-scoped
// identity so transfer preserves which unit went where.
type Unit struct {
	ID int64
}

// Inventory holds one agent's capital and goods. It is mutated only through
// ItemHandler.Trade and rebuilt from the starting snapshot at episode start.
type Inventory struct {
	capital int64
	goods   map[string][]Unit
}

func NewInventory() *Inventory {
	return &Inventory{goods: make(map[string][]Unit)}
}

// Quantity returns the held amount of an item. Capital is the scalar balance;
// goods report their unit count.
func (inv *Inventory) Quantity(item string) int64 {
	if item == Capital {
		return inv.capital
	}
	return int64(len(inv.goods[item]))
}

// Goods returns the names of all discrete goods the inventory has ever held,
// sorted for deterministic iteration.
func (inv *Inventory) Goods() []string {
	names := make([]string, 0, len(inv.goods))
	for name := range inv.goods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns item name to quantity, capital included.
func (inv *Inventory) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(inv.goods)+1)
	out[Capital] = inv.capital
	for name, units := range inv.goods {
		out[name] = int64(len(units))
	}
	return out
}

func (inv *Inventory) addCapital(n int64) { inv.capital += n }

func (inv *Inventory) addUnits(item string, units []Unit) {
	inv.goods[item] = append(inv.goods[item], units...)
}

// removeUnits takes up to qty units of item, oldest first.
func (inv *Inventory) removeUnits(item string, qty int64) []Unit {
	held := inv.goods[item]
	if qty > int64(len(held)) {
		qty = int64(len(held))
	}
	taken := make([]Unit, qty)
	copy(taken, held[:qty])
	inv.goods[item] = held[qty:]
	return taken
}

// Transfer names an amount of one item changing hands.
type Transfer struct {
	Item string
	Qty  int64
}

// ItemHandler executes bilateral transfers between agents. The caller (the
// matching engine) validates sufficiency; the handler performs the transfer
// unconditionally. Keeping that split in one place is what makes the
// conservation invariant checkable.
type ItemHandler struct {
	ctx *Context
}

// Trade atomically moves giveA of a's holdings to b and giveB of b's holdings
// to a. Amounts are literal: the caller prices the trade before calling.
func (h *ItemHandler) Trade(a AgentID, giveA Transfer, b AgentID, giveB Transfer) {
	from, to := h.ctx.Agent(a), h.ctx.Agent(b)
	h.move(from.Inventory, to.Inventory, giveA)
	h.move(to.Inventory, from.Inventory, giveB)
}

func (h *ItemHandler) move(from, to *Inventory, t Transfer) {
	if t.Qty == 0 {
		return
	}
	if t.Item == Capital {
		from.addCapital(-t.Qty)
		to.addCapital(t.Qty)
		return
	}
	to.addUnits(t.Item, from.removeUnits(t.Item, t.Qty))
}
