package sim

import "errors"

// Per-turn errors are recovered inside the turn that raised them; setup
// errors abort Compile.
var (
	// ErrInvalidActionType is returned when an action name or kind is not in
	// the registered action space.
	ErrInvalidActionType = errors.New("invalid action type")

	// ErrRestrictedAction is returned when a restriction predicate blocks an
	// action after any retries are exhausted.
	ErrRestrictedAction = errors.New("action restricted")

	// ErrIllegitimateOrder wraps order rejections (bad price/quantity,
	// insufficient capital or goods).
	ErrIllegitimateOrder = errors.New("illegitimate order")

	// ErrUnknownArtifact is returned when an action resolves to an artifact
	// name that is not registered.
	ErrUnknownArtifact = errors.New("unknown artifact")

	// ErrUnsupportedItem is returned by Add for values that are neither
	// agents, artifacts, nor collections thereof.
	ErrUnsupportedItem = errors.New("unsupported item type")

	// ErrNotCompiled is returned when the environment is driven before Compile.
	ErrNotCompiled = errors.New("environment not compiled")
)
