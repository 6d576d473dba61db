// Package flow implements the guided conversation engine: the step graph,
// input validation, transition resolution, and the controller that walks a
// visitor through a flow while persisting every transition.
package flow

import (
	"fmt"
	"log/slog"

	"github.com/carebridge/leadflow/internal/models"
)

// SentinelRouteAfterContact is the placeholder edge target that the resolver
// substitutes with a branch-specific continuation based on the visitor's
// top-level flow choice. It lets every branch share one contact chain.
const SentinelRouteAfterContact = "route-after-contact"

// Next resolves the raw next-step id for a submitted value. The result may be
// the routing sentinel; resolution against the routing table and skip
// conditions happens in the resolver.
type Next interface {
	Resolve(submitted string) string
}

// NextFixed is a static edge to a single step.
type NextFixed string

// Resolve returns the fixed target regardless of the submitted value.
func (n NextFixed) Resolve(string) string { return string(n) }

// NextByValue branches on the submitted value, falling back when no entry matches.
type NextByValue struct {
	Targets  map[string]string
	Fallback string
}

// Resolve returns the target mapped to the submitted value, or the fallback.
func (n NextByValue) Resolve(submitted string) string {
	if target, ok := n.Targets[submitted]; ok {
		return target
	}
	return n.Fallback
}

// NextSentinel defers the edge to the route-after-contact routing table.
type NextSentinel struct{}

// Resolve returns the routing sentinel.
func (NextSentinel) Resolve(string) string { return SentinelRouteAfterContact }

// Option is one selectable choice presented by a choice or slot-picker step.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StepDefinition is one immutable node in the conversation graph.
type StepDefinition struct {
	ID            string
	Kind          models.StepKind
	Prompt        string
	Options       []Option
	CollectsField string
	// Validate is an optional per-step predicate applied on top of the
	// kind-level validation.
	Validate func(string) bool
	// Next is nil only for the terminal confirmation step.
	Next Next
	// SkipWhen causes the step to be bypassed without prompting when it
	// evaluates true against the collected data as the step is entered.
	SkipWhen func(models.CollectedData) bool
	// FlowCategory tags the step for analytics. No effect on transitions.
	FlowCategory string
}

// IsTerminal reports whether the step ends the active phase of a session.
func (s StepDefinition) IsTerminal() bool {
	return s.Kind == models.StepKindConfirmation
}

// staticNext returns the step's next id without a submitted value. Steps that
// branch on input have no static edge; skip conditions and message steps may
// only be attached to statically-routed steps, which Validate enforces.
func (s StepDefinition) staticNext() (string, error) {
	switch n := s.Next.(type) {
	case NextFixed:
		return string(n), nil
	case NextSentinel:
		return SentinelRouteAfterContact, nil
	default:
		return "", fmt.Errorf("%w: step %s has no static next edge", models.ErrConfiguration, s.ID)
	}
}

// StepTable is the read-only registry of steps for all flow variants plus the
// sentinel routing table. Build it once at startup and call Validate before
// serving traffic.
type StepTable struct {
	steps        map[string]StepDefinition
	rootID       string
	routing      map[string]string
	defaultRoute string
}

// NewStepTable builds a table rooted at rootID. The routing map resolves the
// route-after-contact sentinel per flow choice; defaultRoute catches choices
// with no entry.
func NewStepTable(rootID string, steps []StepDefinition, routing map[string]string, defaultRoute string) *StepTable {
	table := &StepTable{
		steps:        make(map[string]StepDefinition, len(steps)),
		rootID:       rootID,
		routing:      routing,
		defaultRoute: defaultRoute,
	}
	for _, step := range steps {
		table.steps[step.ID] = step
	}
	return table
}

// RootID returns the entry step id for new sessions.
func (t *StepTable) RootID() string { return t.rootID }

// StepByID retrieves a step definition by id.
func (t *StepTable) StepByID(id string) (StepDefinition, bool) {
	step, ok := t.steps[id]
	return step, ok
}

// Validate walks every edge in the graph and fails on the first dangling
// reference. It runs once at startup so resolution never fails at runtime.
func (t *StepTable) Validate() error {
	if _, ok := t.steps[t.rootID]; !ok {
		return fmt.Errorf("%w: root step %s not in table", models.ErrConfiguration, t.rootID)
	}
	if t.defaultRoute != "" {
		if _, ok := t.steps[t.defaultRoute]; !ok {
			return fmt.Errorf("%w: default route target %s not in table", models.ErrConfiguration, t.defaultRoute)
		}
	}
	for choice, target := range t.routing {
		if _, ok := t.steps[target]; !ok {
			return fmt.Errorf("%w: routing target %s for flow choice %s not in table", models.ErrConfiguration, target, choice)
		}
	}
	for id, step := range t.steps {
		if !models.IsValidStepKind(step.Kind) {
			return fmt.Errorf("%w: step %s has unknown kind %s", models.ErrConfiguration, id, step.Kind)
		}
		if step.IsTerminal() {
			if step.Next != nil {
				return fmt.Errorf("%w: terminal step %s must not declare a next edge", models.ErrConfiguration, id)
			}
			continue
		}
		if step.Next == nil {
			return fmt.Errorf("%w: step %s has no next edge", models.ErrConfiguration, id)
		}
		if err := t.checkEdges(step); err != nil {
			return err
		}
		if step.SkipWhen != nil {
			// A skipped step is replaced by its own static next, so that
			// edge must exist and be statically resolvable.
			next, err := step.staticNext()
			if err != nil {
				return err
			}
			if err := t.checkTarget(id, next); err != nil {
				return err
			}
		}
	}
	slog.Debug("StepTable validation passed", "steps", len(t.steps), "routes", len(t.routing))
	return nil
}

// checkEdges verifies every target a step's next edge can produce.
func (t *StepTable) checkEdges(step StepDefinition) error {
	switch n := step.Next.(type) {
	case NextFixed:
		return t.checkTarget(step.ID, string(n))
	case NextSentinel:
		return nil // resolved through the routing table, validated above
	case NextByValue:
		for value, target := range n.Targets {
			if err := t.checkTarget(step.ID, target); err != nil {
				return fmt.Errorf("%w (branch value %s)", err, value)
			}
		}
		return t.checkTarget(step.ID, n.Fallback)
	default:
		return fmt.Errorf("%w: step %s has unsupported next edge type %T", models.ErrConfiguration, step.ID, step.Next)
	}
}

func (t *StepTable) checkTarget(from, target string) error {
	if target == SentinelRouteAfterContact {
		return nil
	}
	if _, ok := t.steps[target]; !ok {
		return fmt.Errorf("%w: step %s references unknown step %s", models.ErrConfiguration, from, target)
	}
	return nil
}
