package sim

// Artifact is a pluggable domain module (marketplace, bank, gridworld) that
// owns a subset of the action space and mediates agent interaction with
// shared state.
//
// ProcessQuery must not mutate state. Compile and Reset receive the context
// instead of the artifact holding a back-reference to the environment.
type Artifact interface {
	Name() string

	// ActionSpace declares the mutating actions this artifact owns. An
	// artifact with an empty action space is rejected at Compile as a no-op
	// stub.
	ActionSpace() []ActionSpec

	// QuerySpace declares the read-only queries this artifact answers.
	QuerySpace() []ActionSpec

	ProcessAction(ctx *Context, agent *Agent, action Action) (string, error)
	ProcessQuery(ctx *Context, agent *Agent, query Action) (string, error)

	Compile(ctx *Context) error
	Reset(ctx *Context) error
	Step(ctx *Context)

	ShouldContinue() bool
}
