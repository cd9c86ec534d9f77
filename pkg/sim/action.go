package sim

import (
	"context"
	"fmt"
)

// ActionKind identifies one member of the closed action space. The full set
// is assembled at Compile time from each artifact's declared action space;
// nothing is dispatched by runtime type name.
type ActionKind string

const KindSkip ActionKind = "skip"

// Action is a typed agent intent. Concrete variants are declared by the
// artifact that owns them (plus the built-in Skip).
type Action interface {
	ActionKind() ActionKind
}

// Skip is the explicit no-op. Malformed or unrecognized decisions degrade to
// Skip instead of crashing the turn loop.
type Skip struct{}

func (Skip) ActionKind() ActionKind { return KindSkip }

// Descriptor is the wire form of a decision: an action name plus loosely
// typed parameters. It is decoded against the compiled action registry at a
// single boundary; unknown names resolve to Skip.
type Descriptor struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ActionSpec declares one decodable action (or query) kind.
type ActionSpec struct {
	Name   string // external descriptor name, lowercase
	Kind   ActionKind
	Decode func(params map[string]any) (Action, error)
}

// Policy is the decision collaborator: given the current observation it
// returns the agent's next action descriptor. Implementations may be slow
// (e.g. a remote language model); the kernel joins the call before touching
// shared state. Errors and malformed descriptors degrade to Skip.
type Policy interface {
	Decide(ctx context.Context, obs Observation) (Descriptor, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, obs Observation) (Descriptor, error)

func (f PolicyFunc) Decide(ctx context.Context, obs Observation) (Descriptor, error) {
	return f(ctx, obs)
}

// Quote is a single good's current top of book.
type Quote struct {
	Good      string `json:"good"`
	BestBid   int64  `json:"bestBid"`
	BestAsk   int64  `json:"bestAsk"`
	HasBid    bool   `json:"hasBid"`
	HasAsk    bool   `json:"hasAsk"`
	LastPrice int64  `json:"lastPrice"`
}

// QuoteProvider is implemented by artifacts that publish market quotes into
// agent observations.
type QuoteProvider interface {
	Quotes() map[string]Quote
}

// Observation is what a policy sees when deciding.
type Observation struct {
	AgentName  string           `json:"agent"`
	Step       int              `json:"step"`
	Episode    int              `json:"episode"`
	Inventory  map[string]int64 `json:"inventory"`
	LastResult string           `json:"lastResult,omitempty"`
	Notice     string           `json:"notice,omitempty"` // restriction message on retry
	Quotes     map[string]Quote `json:"quotes,omitempty"`
}

// IntParam extracts an integer parameter from a descriptor parameter map,
// tolerating the numeric types JSON and YAML decoders produce.
func IntParam(params map[string]any, key string) (int64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q: expected integer, got %T", key, v)
	}
}

// StringParam extracts a string parameter from a descriptor parameter map.
func StringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q: expected string, got %T", key, v)
	}
	return s, nil
}
