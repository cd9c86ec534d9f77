package sim

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/agora/pkg/util"
)

// Phase is the environment lifecycle state machine.
type Phase int32

const (
	Uninitialized Phase = iota
	Compiled
	Running
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Compiled:
		return "compiled"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures an environment.
type Options struct {
	Name        string
	MaxSteps    int
	MaxEpisodes int
	Seed        int64

	// DecisionTimeout bounds the wait for a policy decision; expiry resolves
	// the turn to Skip.
	DecisionTimeout time.Duration

	Logger   *zap.SugaredLogger
	Clock    util.Clock
	Recorder Recorder
}

func (o *Options) fillDefaults() {
	if o.Name == "" {
		o.Name = "agora"
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 10
	}
	if o.MaxEpisodes <= 0 {
		o.MaxEpisodes = 1
	}
	if o.DecisionTimeout <= 0 {
		o.DecisionTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.Clock == nil {
		o.Clock = util.RealClock{}
	}
}

// Environment is the simulation kernel: it owns the agent turn queue, the
// step/episode calendar, and drives fetch-decision → route-action →
// artifact-step → advance-state each tick. A single goroutine drives the
// loop; exactly one agent's action is in flight against shared state at any
// instant. The mutex exists only so the observability API can take
// consistent read snapshots between mutations.
type Environment struct {
	mu sync.RWMutex

	opts   Options
	ctx    *Context
	router *Router

	pendingArtifacts []Artifact
	decoders         map[string]ActionSpec

	queue []*Agent
	phase Phase

	// Explicit step-end hooks, run in registration order after each step
	// with no lock held.
	stepEnd []func(*Context)
}

func NewEnvironment(opts Options) *Environment {
	opts.fillDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))
	ctx := newContext(opts.Logger, rng)
	ctx.Recorder = opts.Recorder
	return &Environment{
		opts:     opts,
		ctx:      ctx,
		router:   NewRouter(opts.Logger),
		decoders: make(map[string]ActionSpec),
	}
}

// Add accepts agents, artifacts, or collections thereof. Anything else is a
// fatal setup error. Additions are only legal before Compile: anything added
// later would never be wired into the action registry.
func (e *Environment) Add(item any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != Uninitialized {
		return fmt.Errorf("add: environment already %s", e.phase)
	}
	return e.addLocked(item)
}

func (e *Environment) addLocked(item any) error {
	switch v := item.(type) {
	case *Agent:
		return e.addAgent(v)
	case Artifact:
		e.pendingArtifacts = append(e.pendingArtifacts, v)
		return nil
	case []*Agent:
		for _, a := range v {
			if err := e.addAgent(a); err != nil {
				return err
			}
		}
		return nil
	case []Artifact:
		for _, a := range v {
			e.pendingArtifacts = append(e.pendingArtifacts, a)
		}
		return nil
	case []any:
		for _, it := range v {
			if err := e.addLocked(it); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedItem, item)
	}
}

func (e *Environment) addAgent(a *Agent) error {
	if a == nil {
		return fmt.Errorf("%w: nil agent", ErrUnsupportedItem)
	}
	if e.ctx.AgentByName(a.Name) != nil {
		return fmt.Errorf("duplicate agent name %q", a.Name)
	}
	e.ctx.register(a)
	return nil
}

// Compile validates the wiring and freezes the agent-visible action space.
// Artifacts that are no-op stubs, duplicate action kinds, and duplicate
// descriptor names are all rejected here, before the first step.
func (e *Environment) Compile() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != Uninitialized {
		return fmt.Errorf("compile: environment already %s", e.phase)
	}
	if len(e.ctx.Agents()) == 0 {
		return fmt.Errorf("compile: no agents added")
	}

	for _, a := range e.pendingArtifacts {
		if a == nil {
			return fmt.Errorf("%w: nil artifact", ErrUnsupportedItem)
		}
		if err := e.router.register(a); err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		for _, spec := range append(a.ActionSpace(), a.QuerySpace()...) {
			name := strings.ToLower(spec.Name)
			if name == "" || spec.Decode == nil {
				return fmt.Errorf("compile: artifact %q declares malformed action spec %q", a.Name(), spec.Name)
			}
			if _, dup := e.decoders[name]; dup {
				return fmt.Errorf("compile: duplicate action name %q", name)
			}
			e.decoders[name] = spec
		}
		if err := a.Compile(e.ctx); err != nil {
			return fmt.Errorf("compile artifact %q: %w", a.Name(), err)
		}
	}

	e.phase = Compiled
	e.opts.Logger.Infow("environment_compiled",
		"name", e.opts.Name,
		"run_id", e.ctx.RunID,
		"agents", len(e.ctx.Agents()),
		"artifacts", len(e.router.Artifacts()),
		"actions", len(e.decoders))
	return nil
}

// Reset restores every agent's starting inventory, reseeds the turn queue in
// registration order, resets every artifact, and zeroes the calendar.
func (e *Environment) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == Uninitialized {
		return ErrNotCompiled
	}

	e.ctx.Step = 0
	e.ctx.Episode = 0
	e.ctx.resetCounters()
	e.resetEpisodeLocked()
	e.router.records = nil
	e.phase = Compiled
	e.opts.Logger.Infow("environment_reset", "run_id", e.ctx.RunID)
	return nil
}

func (e *Environment) resetEpisodeLocked() {
	for _, a := range e.ctx.Agents() {
		a.resetForEpisode(e.ctx)
	}
	if err := e.router.Reset(e.ctx); err != nil {
		// Reset failures after a successful Compile indicate a broken
		// artifact; surface loudly but keep the run recoverable.
		e.opts.Logger.Errorw("artifact_reset_failed", "err", err)
	}
	e.reseedQueueLocked()
}

func (e *Environment) reseedQueueLocked() {
	e.queue = e.queue[:0]
	e.queue = append(e.queue, e.ctx.Agents()...)
}

// Step runs one full pass over the turn queue, then steps every artifact and
// advances the calendar. Agents are processed strictly in queue order; one
// agent's mutations are fully applied before the next turn begins.
func (e *Environment) Step() error {
	e.mu.Lock()
	if e.phase == Uninitialized {
		e.mu.Unlock()
		return ErrNotCompiled
	}
	if e.phase == Terminated {
		e.mu.Unlock()
		return nil
	}
	if len(e.queue) == 0 {
		e.reseedQueueLocked()
	}
	e.phase = Running

	for len(e.queue) > 0 {
		agent := e.queue[0]
		e.queue = e.queue[1:]
		e.processTurn(agent)
	}
	e.reseedQueueLocked()

	e.router.Step(e.ctx)
	cont := e.router.ShouldContinue()

	e.ctx.Step++
	if e.ctx.Step >= e.opts.MaxSteps {
		e.ctx.Episode++
		e.ctx.Step = 0
		if e.ctx.Episode < e.opts.MaxEpisodes {
			e.opts.Logger.Infow("episode_rollover", "episode", e.ctx.Episode)
			e.resetEpisodeLocked()
		}
	}
	if !cont || e.ctx.Episode >= e.opts.MaxEpisodes {
		e.phase = Terminated
		e.opts.Logger.Infow("simulation_terminated",
			"episode", e.ctx.Episode, "should_continue", cont)
	}
	ctx := e.ctx
	hooks := e.stepEnd
	e.mu.Unlock()

	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

// Run drives the environment from a fresh Reset until termination or context
// cancellation.
func (e *Environment) Run(ctx context.Context) error {
	if err := e.Reset(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.Phase() == Terminated {
			return nil
		}
		if err := e.Step(); err != nil {
			return err
		}
	}
}

func (e *Environment) processTurn(agent *Agent) {
	for _, h := range agent.BeforeTurn {
		h(agent)
	}

	desc := e.fetchDecision(agent, e.observe(agent, ""))
	action, isQuery, badName := e.decode(desc)

	var result string
	switch {
	case badName != "":
		// Unknown or malformed action names degrade to skip; the attempt is
		// still recorded for diagnosability.
		e.router.record(e.ctx, agent, Record{
			Kind:    ActionKind(badName),
			Outcome: "invalid",
			Err:     fmt.Errorf("%w: %q", ErrInvalidActionType, badName).Error(),
		})
		result = fmt.Sprintf("invalid action %q: turn skipped", badName)
	case isQuery:
		obs, err := e.router.ProcessQuery(e.ctx, agent, action)
		if err != nil {
			result = err.Error()
		} else {
			result = obs
		}
	default:
		redecide := func(notice string) Action {
			next := e.fetchDecision(agent, e.observe(agent, notice))
			a, query, bad := e.decode(next)
			if bad != "" || query {
				return Skip{}
			}
			return a
		}
		status, err := e.router.ProcessAction(e.ctx, agent, action, redecide)
		if err != nil {
			result = err.Error()
		} else {
			result = status
		}
	}
	agent.AddObservation(result)

	for _, h := range agent.AfterTurn {
		h(agent)
	}
}

// fetchDecision asks the agent's policy for its next action. The call runs on
// its own goroutine, the only suspension point in the loop, and is joined
// here before any shared state is touched. Timeouts and errors resolve to
// Skip.
func (e *Environment) fetchDecision(agent *Agent, obs Observation) Descriptor {
	if agent.Policy == nil {
		return Descriptor{Name: "skip"}
	}

	cctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		d   Descriptor
		err error
	}
	ch := make(chan result, 1)
	go func() {
		d, err := agent.Policy.Decide(cctx, obs)
		ch <- result{d, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			e.opts.Logger.Warnw("decision_failed", "agent", agent.Name, "err", res.err)
			return Descriptor{Name: "skip"}
		}
		return res.d
	case <-e.opts.Clock.After(e.opts.DecisionTimeout):
		e.opts.Logger.Warnw("decision_timeout", "agent", agent.Name)
		return Descriptor{Name: "skip"}
	}
}

// decode resolves a descriptor against the compiled action registry. The
// third return value carries the offending name when the descriptor is
// unknown or malformed (and the action degrades to Skip).
func (e *Environment) decode(d Descriptor) (action Action, isQuery bool, badName string) {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" || name == "skip" {
		return Skip{}, false, ""
	}
	spec, ok := e.decoders[name]
	if !ok {
		return Skip{}, false, name
	}
	a, err := spec.Decode(d.Params)
	if err != nil {
		return Skip{}, false, name
	}
	_, isQuery = e.router.queryOwner[spec.Kind]
	return a, isQuery, ""
}

func (e *Environment) observe(agent *Agent, notice string) Observation {
	obs := Observation{
		AgentName:  agent.Name,
		Step:       e.ctx.Step,
		Episode:    e.ctx.Episode,
		Inventory:  agent.Inventory.Snapshot(),
		LastResult: agent.LastObservation(),
		Notice:     notice,
		Quotes:     make(map[string]Quote),
	}
	for _, a := range e.router.Artifacts() {
		if qp, ok := a.(QuoteProvider); ok {
			for good, q := range qp.Quotes() {
				obs.Quotes[good] = q
			}
		}
	}
	return obs
}

// OnStepEnd registers a hook run after every completed step, outside the
// write lock. Used by the observability layer to broadcast snapshots.
func (e *Environment) OnStepEnd(h func(*Context)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepEnd = append(e.stepEnd, h)
}

// View runs fn with a read lock held, for consistent observability reads.
func (e *Environment) View(fn func(*Context)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.ctx)
}

// Phase returns the current lifecycle phase.
func (e *Environment) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// Name returns the configured environment name.
func (e *Environment) Name() string { return e.opts.Name }

// RunID returns the run identifier stamped on the context.
func (e *Environment) RunID() string { return e.ctx.RunID }

// Counters returns the current step and episode.
func (e *Environment) Counters() (step, episode int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ctx.Step, e.ctx.Episode
}

// ActionLog returns up to limit most recent entries of the global action log
// (all of it when limit <= 0).
func (e *Environment) ActionLog(limit int) []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	recs := e.router.Records()
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs
}

// Router exposes the action router, mainly for tests and wiring.
func (e *Environment) Router() *Router { return e.router }

// Context exposes the simulation context for setup code that runs before the
// loop starts (adding recorders, inspecting agents).
func (e *Environment) Context() *Context { return e.ctx }
