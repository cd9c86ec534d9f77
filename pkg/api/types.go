package api

import (
	"github.com/uhyunpark/agora/pkg/market"
	"github.com/uhyunpark/agora/pkg/sim"
)

// API response types for the read-only observability endpoints.

// StatusInfo describes the running simulation.
type StatusInfo struct {
	RunID   string   `json:"runId"`
	Name    string   `json:"name"`
	Phase   string   `json:"phase"`
	Step    int      `json:"step"`
	Episode int      `json:"episode"`
	Agents  int      `json:"agents"`
	Goods   []string `json:"goods"`
}

// AgentInfo is one agent's public snapshot.
type AgentInfo struct {
	ID        int              `json:"id"`
	Name      string           `json:"name"`
	Inventory map[string]int64 `json:"inventory"`
	Actions   int              `json:"actions"` // entries in this episode's history
}

// BookSnapshot is one good's current depth.
type BookSnapshot struct {
	Good      string              `json:"good"`
	Bids      []market.PriceLevel `json:"bids"` // best first
	Asks      []market.PriceLevel `json:"asks"` // best first
	LastPrice int64               `json:"lastPrice"`
	Trades    int                 `json:"trades"`
}

// QuoteHistory is the recorded best bid/ask series for one good.
type QuoteHistory struct {
	Good string  `json:"good"`
	Bids []int64 `json:"bids"`
	Asks []int64 `json:"asks"`
}

// StatsInfo carries derived series for one good.
type StatsInfo struct {
	Good     string    `json:"good"`
	Period   int       `json:"period"`
	TradeSMA []float64 `json:"tradeSma,omitempty"`
	MidSMA   []float64 `json:"midSma,omitempty"`
}

// StepUpdate is broadcast to websocket clients after every simulation step.
type StepUpdate struct {
	Type    string               `json:"type"` // always "step"
	Step    int                  `json:"step"`
	Episode int                  `json:"episode"`
	Phase   string               `json:"phase"`
	Quotes  map[string]sim.Quote `json:"quotes"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
