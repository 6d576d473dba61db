package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carebridge/leadflow/internal/models"
	"github.com/carebridge/leadflow/internal/store"
	"github.com/google/uuid"
)

// maxMessageChain bounds consecutive message-kind steps auto-advanced in one
// transition, guarding against a cycle the validator could not see.
const maxMessageChain = 8

// StepView is the render-ready projection of a step for the widget.
type StepView struct {
	ID      string          `json:"id"`
	Kind    models.StepKind `json:"kind"`
	Prompt  string          `json:"prompt,omitempty"`
	Options []Option        `json:"options,omitempty"`
}

// StartResult is the outcome of opening the widget for a visitor.
type StartResult struct {
	Session    models.ConversationSession `json:"session"`
	Transcript []models.ChatMessage       `json:"transcript"`
	Step       StepView                   `json:"step"`
	Resumed    bool                       `json:"resumed"`
}

// SubmitResult is the outcome of one submission.
type SubmitResult struct {
	Accepted bool     `json:"accepted"`
	Messages []string `json:"messages"`
	StepID   string   `json:"step_id"`
	Step     StepView `json:"step"`
	Done     bool     `json:"done"`
	LeadID   string   `json:"lead_id,omitempty"`
}

// Controller orchestrates conversation sessions: it validates input, resolves
// transitions, persists every state change before acknowledging it, and
// triggers completion at the terminal step. Submissions within one session
// are serialized; stale submissions are rejected rather than misapplied.
type Controller struct {
	table      *StepTable
	store      store.Store
	completion *CompletionHandler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewController creates a conversation controller.
func NewController(table *StepTable, st store.Store, completion *CompletionHandler) *Controller {
	slog.Debug("Creating conversation controller")
	return &Controller{
		table:      table,
		store:      st,
		completion: completion,
		locks:      make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing submissions for one session.
func (c *Controller) sessionLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[sessionID] = lock
	}
	return lock
}

// Start opens the conversation for a visitor token. An existing active
// session is resumed verbatim: same current step, same collected data, full
// transcript, and no new messages emitted, so a page reload never loses
// progress or duplicates prompts. Otherwise a new session is created at the
// first input step and the welcome prompts are emitted.
func (c *Controller) Start(ctx context.Context, visitorToken string) (*StartResult, error) {
	if visitorToken == "" {
		return nil, fmt.Errorf("visitor token cannot be empty")
	}

	existing, err := c.store.FindActiveSessionByToken(visitorToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if existing != nil {
		transcript, err := c.store.ListMessages(existing.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		step, ok := c.table.StepByID(existing.CurrentStepID)
		if !ok {
			return nil, fmt.Errorf("%w: session %s is at unknown step %s", models.ErrConfiguration, existing.ID, existing.CurrentStepID)
		}
		slog.Info("Controller resumed session", "sessionID", existing.ID, "step", existing.CurrentStepID, "messages", len(transcript))
		return &StartResult{Session: *existing, Transcript: transcript, Step: viewOf(step), Resumed: true}, nil
	}

	// New session: auto-advance through leading message steps to the first
	// step that awaits input.
	first, intro, err := c.table.AdvanceThroughMessages(c.table.RootID(), models.CollectedData{})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := models.ConversationSession{
		ID:             uuid.NewString(),
		VisitorToken:   visitorToken,
		CurrentStepID:  first.ID,
		CollectedData:  models.CollectedData{},
		Status:         models.SessionStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := c.store.CreateSession(session); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	var transcript []models.ChatMessage
	for _, step := range append(intro, first) {
		if step.Prompt == "" {
			continue
		}
		msg, err := c.appendAssistant(session.ID, step.ID, step.Prompt)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, msg)
	}

	slog.Info("Controller started session", "sessionID", session.ID, "token", visitorToken, "step", first.ID)
	return &StartResult{Session: session, Transcript: transcript, Step: viewOf(first)}, nil
}

// Submit processes one visitor submission against the step it was computed
// for. Invalid input is answered with guidance and no state change. A
// submission whose step no longer matches the persisted current step is
// rejected as stale. Every successful transition is persisted before this
// method returns.
func (c *Controller) Submit(ctx context.Context, sessionID, stepID, input string) (*SubmitResult, error) {
	lock := c.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	switch session.Status {
	case models.SessionStatusCompleted:
		return nil, models.ErrSessionCompleted
	case models.SessionStatusAbandoned:
		// Reaped sessions are read-only; the client must start over.
		return nil, models.ErrSessionNotFound
	}
	if session.CurrentStepID != stepID {
		slog.Warn("Controller rejected stale submission", "sessionID", sessionID, "submittedStep", stepID, "currentStep", session.CurrentStepID)
		return nil, models.ErrStaleTransition
	}

	step, ok := c.table.StepByID(stepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrStepNotFound, stepID)
	}

	// A session parked at confirmation means a previous lead creation
	// attempt failed; any submission retries completion.
	if step.IsTerminal() {
		return c.finish(ctx, session, step)
	}

	normalized, valid := ValidateInput(step, input)
	if !valid {
		slog.Debug("Controller rejected invalid input", "sessionID", sessionID, "step", stepID, "kind", step.Kind)
		return &SubmitResult{
			Accepted: false,
			Messages: []string{GuidanceMessage(step.Kind)},
			StepID:   stepID,
			Step:     viewOf(step),
		}, nil
	}

	if _, err := c.appendMessage(sessionID, stepID, models.RoleUser, normalized); err != nil {
		return nil, err
	}

	if step.CollectsField != "" {
		session.CollectedData[step.CollectsField] = normalized
	}

	nextID, err := c.table.ResolveNext(step, normalized, session.CollectedData)
	if err != nil {
		return nil, err
	}
	next, between, err := c.table.AdvanceThroughMessages(nextID, session.CollectedData)
	if err != nil {
		return nil, err
	}

	session.CurrentStepID = next.ID
	session.LastActivityAt = time.Now()
	if err := c.store.UpdateSession(*session); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	var messages []string
	for _, m := range between {
		if m.Prompt == "" {
			continue
		}
		if _, err := c.appendAssistant(sessionID, m.ID, m.Prompt); err != nil {
			return nil, err
		}
		messages = append(messages, m.Prompt)
	}

	if next.IsTerminal() {
		result, err := c.finish(ctx, session, next)
		if err != nil {
			return nil, err
		}
		result.Messages = append(messages, result.Messages...)
		return result, nil
	}

	if next.Prompt != "" {
		if _, err := c.appendAssistant(sessionID, next.ID, next.Prompt); err != nil {
			return nil, err
		}
		messages = append(messages, next.Prompt)
	}

	slog.Debug("Controller transition applied", "sessionID", sessionID, "from", stepID, "to", next.ID)
	return &SubmitResult{
		Accepted: true,
		Messages: messages,
		StepID:   next.ID,
		Step:     viewOf(next),
	}, nil
}

// finish runs the completion handler for a session at the confirmation step
// and emits the confirmation prompt once the lead exists.
func (c *Controller) finish(ctx context.Context, session *models.ConversationSession, step StepDefinition) (*SubmitResult, error) {
	if err := c.completion.Complete(ctx, session); err != nil {
		return nil, err
	}

	var messages []string
	if step.Prompt != "" {
		if _, err := c.appendAssistant(session.ID, step.ID, step.Prompt); err != nil {
			return nil, err
		}
		messages = append(messages, step.Prompt)
	}

	return &SubmitResult{
		Accepted: true,
		Messages: messages,
		StepID:   step.ID,
		Step:     viewOf(step),
		Done:     true,
		LeadID:   session.LeadID,
	}, nil
}

// appendAssistant appends an assistant-role transcript entry.
func (c *Controller) appendAssistant(sessionID, stepID, content string) (models.ChatMessage, error) {
	return c.appendMessage(sessionID, stepID, models.RoleAssistant, content)
}

func (c *Controller) appendMessage(sessionID, stepID string, role models.MessageRole, content string) (models.ChatMessage, error) {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		StepID:    stepID,
		CreatedAt: time.Now(),
	}
	if err := c.store.AppendMessage(msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return msg, nil
}

// viewOf projects a step definition for rendering.
func viewOf(step StepDefinition) StepView {
	return StepView{ID: step.ID, Kind: step.Kind, Prompt: step.Prompt, Options: step.Options}
}
