package sim

import (
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trade is the immutable record of one executed transaction. It is appended
// to the owning book's history and mirrored through the recorder; it is never
// mutated after creation.
type Trade struct {
	Seq      int64  `json:"seq"`
	Good     string `json:"good"`
	Buyer    string `json:"buyer"`
	Seller   string `json:"seller"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Step     int    `json:"step"`
	Episode  int    `json:"episode"`
}

// Record is one entry in the global action log: what an agent attempted, who
// handled it, and how it resolved.
type Record struct {
	Step     int        `json:"step"`
	Episode  int        `json:"episode"`
	Agent    string     `json:"agent"`
	Artifact string     `json:"artifact,omitempty"`
	Kind     ActionKind `json:"kind"`
	Params   string     `json:"params,omitempty"`
	Status   string     `json:"status,omitempty"`
	Outcome  string     `json:"outcome"` // ok | skip | invalid | restricted | retry | rejected | error
	Err      string     `json:"err,omitempty"`
}

// Recorder mirrors the event stream to an external sink (e.g. the pebble run
// store). Mirroring is best-effort: sink failures are logged, never fatal.
type Recorder interface {
	RecordAction(r Record) error
	RecordTrade(t Trade) error
}

// Context is the simulation arena: the id-based agent registry, the item
// handler, and every run-scoped counter. Artifacts receive the context on
// each call instead of holding references back into the environment.
type Context struct {
	RunID string
	Log   *zap.SugaredLogger
	Rand  *rand.Rand

	Step    int
	Episode int

	Items    *ItemHandler
	Recorder Recorder

	agents []*Agent
	byID   map[AgentID]*Agent
	byName map[string]*Agent

	orderSeq int64
	tradeSeq int64
	unitSeq  int64
}

func newContext(log *zap.SugaredLogger, rng *rand.Rand) *Context {
	ctx := &Context{
		RunID:  uuid.NewString(),
		Log:    log,
		Rand:   rng,
		byID:   make(map[AgentID]*Agent),
		byName: make(map[string]*Agent),
	}
	ctx.Items = &ItemHandler{ctx: ctx}
	return ctx
}

func (c *Context) register(a *Agent) {
	a.ID = AgentID(len(c.agents))
	c.agents = append(c.agents, a)
	c.byID[a.ID] = a
	c.byName[a.Name] = a
}

// Agent looks up an agent by id. Ids are assigned at registration and stable
// for the lifetime of the run.
func (c *Context) Agent(id AgentID) *Agent { return c.byID[id] }

// AgentByName looks up an agent by name, or nil.
func (c *Context) AgentByName(name string) *Agent { return c.byName[name] }

// Agents returns all agents in registration order.
func (c *Context) Agents() []*Agent { return c.agents }

// NextOrderSeq issues the next order sequence number. Strictly monotonic,
// never reused, reset only with the run.
func (c *Context) NextOrderSeq() int64 {
	c.orderSeq++
	return c.orderSeq
}

// NextTradeSeq issues the next transaction sequence number.
func (c *Context) NextTradeSeq() int64 {
	c.tradeSeq++
	return c.tradeSeq
}

// NextUnitID issues the next item unit identity.
func (c *Context) NextUnitID() int64 {
	c.unitSeq++
	return c.unitSeq
}

// EmitTrade mirrors a trade to the recorder, if one is attached.
func (c *Context) EmitTrade(t Trade) {
	if c.Recorder == nil {
		return
	}
	if err := c.Recorder.RecordTrade(t); err != nil {
		c.Log.Warnw("trade_mirror_failed", "good", t.Good, "seq", t.Seq, "err", err)
	}
}

func (c *Context) emitRecord(r Record) {
	if c.Recorder == nil {
		return
	}
	if err := c.Recorder.RecordAction(r); err != nil {
		c.Log.Warnw("action_mirror_failed", "agent", r.Agent, "err", err)
	}
}

func (c *Context) resetCounters() {
	c.orderSeq = 0
	c.tradeSeq = 0
	c.unitSeq = 0
}
