package sim

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Router is the single point of dispatch between an agent's intended action
// and the artifact that owns its kind. It enforces restrictions, keeps the
// global action log, and aggregates should-continue across artifacts.
type Router struct {
	log *zap.SugaredLogger

	artifacts   []Artifact
	byName      map[string]Artifact
	actionOwner map[ActionKind]string
	queryOwner  map[ActionKind]string

	records []Record
}

func NewRouter(log *zap.SugaredLogger) *Router {
	return &Router{
		log:         log,
		byName:      make(map[string]Artifact),
		actionOwner: make(map[ActionKind]string),
		queryOwner:  make(map[ActionKind]string),
	}
}

// register wires an artifact's declared action and query space into the
// dispatch tables. Configuration problems here are fatal to Compile.
func (r *Router) register(a Artifact) error {
	name := a.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("artifact %q already registered", name)
	}
	if len(a.ActionSpace()) == 0 {
		return fmt.Errorf("artifact %q declares no actions: refusing no-op stub", name)
	}
	for _, spec := range a.ActionSpace() {
		if owner, taken := r.actionOwner[spec.Kind]; taken {
			return fmt.Errorf("action kind %q claimed by both %q and %q", spec.Kind, owner, name)
		}
		r.actionOwner[spec.Kind] = name
	}
	for _, spec := range a.QuerySpace() {
		if owner, taken := r.queryOwner[spec.Kind]; taken {
			return fmt.Errorf("query kind %q claimed by both %q and %q", spec.Kind, owner, name)
		}
		r.queryOwner[spec.Kind] = name
	}
	r.artifacts = append(r.artifacts, a)
	r.byName[name] = a
	return nil
}

// ProcessAction resolves an action to its owning artifact, runs every
// restriction guarding it, and forwards on success. A blocked action may
// retry (bounded by the restriction's MaxRetries) by asking the decision
// collaborator to choose again via redecide; once exhausted the turn
// resolves to skip. Every attempt is logged.
func (r *Router) ProcessAction(ctx *Context, agent *Agent, action Action, redecide func(notice string) Action) (string, error) {
	for {
		if action == nil {
			action = Skip{}
		}
		if _, ok := action.(Skip); ok {
			r.record(ctx, agent, Record{Kind: KindSkip, Outcome: "skip", Status: "skipped"})
			return "skipped", nil
		}

		kind := action.ActionKind()
		ownerName, ok := r.actionOwner[kind]
		if !ok {
			err := fmt.Errorf("%w: %q", ErrInvalidActionType, kind)
			r.record(ctx, agent, Record{Kind: kind, Outcome: "invalid", Err: err.Error()})
			return "", err
		}
		owner, ok := r.byName[ownerName]
		if !ok {
			// dispatch table inconsistency; reported, never crashes the loop
			err := fmt.Errorf("%w: %q", ErrUnknownArtifact, ownerName)
			r.record(ctx, agent, Record{Kind: kind, Artifact: ownerName, Outcome: "error", Err: err.Error()})
			return "", err
		}

		restr, rerr := r.firstBlocked(agent, kind, action)
		if restr == nil {
			status, err := owner.ProcessAction(ctx, agent, action)
			rec := Record{Kind: kind, Artifact: ownerName, Params: marshalParams(action), Status: status}
			switch {
			case err == nil:
				rec.Outcome = "ok"
			default:
				rec.Outcome = "rejected"
				rec.Err = err.Error()
			}
			r.record(ctx, agent, rec)
			return status, err
		}

		// Blocked.
		if restr.Retry && restr.retries < restr.MaxRetries && redecide != nil {
			restr.retries++
			r.record(ctx, agent, Record{
				Kind:     kind,
				Artifact: ownerName,
				Params:   marshalParams(action),
				Outcome:  "retry",
				Err:      rerr.Error(),
			})
			action = redecide(restr.Message)
			continue
		}

		err := fmt.Errorf("%w: %v", ErrRestrictedAction, rerr)
		r.record(ctx, agent, Record{
			Kind:     kind,
			Artifact: ownerName,
			Params:   marshalParams(action),
			Status:   "skipped",
			Outcome:  "restricted",
			Err:      rerr.Error(),
		})
		return "", err
	}
}

// ProcessQuery routes a read-only query to its owning artifact.
func (r *Router) ProcessQuery(ctx *Context, agent *Agent, query Action) (string, error) {
	kind := query.ActionKind()
	ownerName, ok := r.queryOwner[kind]
	if !ok {
		err := fmt.Errorf("%w: query %q", ErrInvalidActionType, kind)
		r.record(ctx, agent, Record{Kind: kind, Outcome: "invalid", Err: err.Error()})
		return "", err
	}
	obs, err := r.byName[ownerName].ProcessQuery(ctx, agent, query)
	rec := Record{Kind: kind, Artifact: ownerName, Params: marshalParams(query), Outcome: "query", Status: obs}
	if err != nil {
		rec.Outcome = "error"
		rec.Err = err.Error()
	}
	r.record(ctx, agent, rec)
	return obs, err
}

func (r *Router) firstBlocked(agent *Agent, kind ActionKind, action Action) (*ActionRestriction, error) {
	for _, restr := range agent.RestrictionsFor(kind) {
		if err := restr.Check(agent, action); err != nil {
			return restr, err
		}
	}
	return nil, nil
}

func (r *Router) record(ctx *Context, agent *Agent, rec Record) {
	rec.Step = ctx.Step
	rec.Episode = ctx.Episode
	rec.Agent = agent.Name
	r.records = append(r.records, rec)
	agent.History = append(agent.History, rec)
	ctx.emitRecord(rec)
	r.log.Debugw("action_processed",
		"agent", rec.Agent, "kind", rec.Kind, "artifact", rec.Artifact,
		"outcome", rec.Outcome, "status", rec.Status)
}

// Step delegates to every registered artifact in registration order.
func (r *Router) Step(ctx *Context) {
	for _, a := range r.artifacts {
		a.Step(ctx)
	}
}

// ShouldContinue is the logical AND over every artifact.
func (r *Router) ShouldContinue() bool {
	for _, a := range r.artifacts {
		if !a.ShouldContinue() {
			return false
		}
	}
	return true
}

// Reset resets every artifact. The action log is left alone: records span
// episodes within a run and are cleared only by a full environment reset.
func (r *Router) Reset(ctx *Context) error {
	for _, a := range r.artifacts {
		if err := a.Reset(ctx); err != nil {
			return fmt.Errorf("reset artifact %q: %w", a.Name(), err)
		}
	}
	return nil
}

// Records returns a copy of the global action log.
func (r *Router) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Artifacts returns registered artifacts in registration order.
func (r *Router) Artifacts() []Artifact { return r.artifacts }

func marshalParams(action Action) string {
	b, err := json.Marshal(action)
	if err != nil {
		return ""
	}
	return string(b)
}
