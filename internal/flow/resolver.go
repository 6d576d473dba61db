package flow

import (
	"fmt"
	"log/slog"

	"github.com/carebridge/leadflow/internal/models"
)

// ResolveNext computes the id of the step that follows the given step once a
// value has been accepted for it.
//
// Resolution order:
//  1. evaluate the step's next edge with the submitted value;
//  2. substitute the route-after-contact sentinel using the routing table
//     keyed on the collected flow choice;
//  3. apply the target's skip condition, once: a skipped step is replaced by
//     its own static next. Skips deliberately do not cascade; if the redirect
//     target is itself skippable it still prompts, which keeps a
//     misconfigured chain visible instead of silently swallowing steps.
//
// The graph is validated at startup, so an unknown id here is a configuration
// error that should have been caught before serving traffic.
func (t *StepTable) ResolveNext(step StepDefinition, submitted string, collected models.CollectedData) (string, error) {
	if step.Next == nil {
		return "", fmt.Errorf("%w: step %s is terminal", models.ErrConfiguration, step.ID)
	}

	id := t.substituteSentinel(step.Next.Resolve(submitted), collected)
	target, ok := t.steps[id]
	if !ok {
		slog.Error("ResolveNext hit unknown step", "from", step.ID, "to", id)
		return "", fmt.Errorf("%w: step %s resolved to unknown step %s", models.ErrConfiguration, step.ID, id)
	}

	if target.SkipWhen != nil && target.SkipWhen(collected) {
		next, err := target.staticNext()
		if err != nil {
			return "", err
		}
		redirected := t.substituteSentinel(next, collected)
		if _, ok := t.steps[redirected]; !ok {
			return "", fmt.Errorf("%w: skip on step %s redirected to unknown step %s", models.ErrConfiguration, id, redirected)
		}
		slog.Debug("ResolveNext skipped step", "from", step.ID, "skipped", id, "to", redirected)
		return redirected, nil
	}

	slog.Debug("ResolveNext resolved", "from", step.ID, "to", id)
	return id, nil
}

// AdvanceThroughMessages walks from the given step id past consecutive
// message-kind steps, which display a prompt without awaiting input. It
// returns the first step that awaits input (or the terminal step) along with
// the message steps passed through, in order.
func (t *StepTable) AdvanceThroughMessages(id string, collected models.CollectedData) (StepDefinition, []StepDefinition, error) {
	step, ok := t.steps[id]
	if !ok {
		return StepDefinition{}, nil, fmt.Errorf("%w: unknown step %s", models.ErrConfiguration, id)
	}

	var passed []StepDefinition
	for step.Kind == models.StepKindMessage {
		if len(passed) >= maxMessageChain {
			return StepDefinition{}, nil, fmt.Errorf("%w: message chain from %s exceeds %d steps", models.ErrConfiguration, id, maxMessageChain)
		}
		passed = append(passed, step)
		next, err := step.staticNext()
		if err != nil {
			return StepDefinition{}, nil, err
		}
		nextID := t.substituteSentinel(next, collected)
		step, ok = t.steps[nextID]
		if !ok {
			return StepDefinition{}, nil, fmt.Errorf("%w: step %s references unknown step %s", models.ErrConfiguration, passed[len(passed)-1].ID, nextID)
		}
	}
	return step, passed, nil
}

// substituteSentinel replaces the route-after-contact placeholder with the
// branch continuation for the visitor's flow choice. Unknown or missing flow
// choices fall through to the default route.
func (t *StepTable) substituteSentinel(id string, collected models.CollectedData) string {
	if id != SentinelRouteAfterContact {
		return id
	}
	choice := collected[models.FieldFlowChoice]
	if target, ok := t.routing[choice]; ok {
		return target
	}
	slog.Debug("Sentinel routing fell through to default", "flowChoice", choice, "default", t.defaultRoute)
	return t.defaultRoute
}
