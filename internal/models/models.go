// Package models defines the core data structures for the lead intake engine.
//
// It includes types for conversation sessions, transcript messages, and CRM
// leads, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// StepKind defines how a conversation step prompts the visitor and what kind
// of input it accepts.
type StepKind string

const (
	// StepKindMessage displays a prompt and advances without waiting for input.
	StepKindMessage StepKind = "message"
	// StepKindChoice presents a fixed set of options.
	StepKindChoice StepKind = "choice"
	// StepKindText collects a short free-text value.
	StepKindText StepKind = "text"
	// StepKindPhone collects and formats a phone number.
	StepKindPhone StepKind = "phone"
	// StepKindEmail collects an email address.
	StepKindEmail StepKind = "email"
	// StepKindDate collects a date value (MM-DD-YYYY).
	StepKindDate StepKind = "date"
	// StepKindParagraph collects longer free text.
	StepKindParagraph StepKind = "paragraph"
	// StepKindConfirmation is the terminal step that triggers lead creation.
	StepKindConfirmation StepKind = "confirmation"
	// StepKindSlotPicker presents selectable time slots.
	StepKindSlotPicker StepKind = "slot-picker"
)

// IsValidStepKind checks if the given step kind is supported.
func IsValidStepKind(k StepKind) bool {
	switch k {
	case StepKindMessage, StepKindChoice, StepKindText, StepKindPhone,
		StepKindEmail, StepKindDate, StepKindParagraph,
		StepKindConfirmation, StepKindSlotPicker:
		return true
	default:
		return false
	}
}

// CollectedData maps field names to the values a visitor has submitted so far.
type CollectedData map[string]string

// Clone returns a copy of the collected data so callers can mutate freely.
func (d CollectedData) Clone() CollectedData {
	out := make(CollectedData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Field name constants for collected data.
const (
	FieldFlowChoice        = "flowChoice"
	FieldFullName          = "fullName"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldPaymentType       = "paymentType"
	FieldTreatmentType     = "treatmentType"
	FieldWhoFor            = "whoFor"
	FieldContactPreference = "contactPreference"
	FieldInsuranceCarrier  = "insuranceCarrier"
	FieldMemberID          = "memberId"
	FieldDateOfBirth       = "dateOfBirth"
	FieldUrgency           = "urgency"
	FieldCallbackTime      = "callbackTime"
	FieldQuestionTopic     = "questionTopic"
	FieldQuestionText      = "questionText"
	FieldAdditionalNotes   = "additionalNotes"
)

// SessionStatus represents the lifecycle state of a conversation session.
type SessionStatus string

const (
	// SessionStatusActive indicates the visitor is mid-conversation.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusCompleted indicates the flow reached confirmation and a lead was created.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusAbandoned indicates the session was reaped after inactivity.
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// ConversationSession is the persisted state of one visitor's conversation.
// The server is the authority for this state; the owning browser is the only
// writer through the controller.
type ConversationSession struct {
	ID             string        `json:"id"`
	VisitorToken   string        `json:"visitor_token"`
	CurrentStepID  string        `json:"current_step_id"`
	CollectedData  CollectedData `json:"collected_data"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	LeadID         string        `json:"lead_id,omitempty"`
}

// MessageRole identifies the author of a transcript entry.
type MessageRole string

const (
	// RoleAssistant marks prompts and guidance emitted by the engine.
	RoleAssistant MessageRole = "assistant"
	// RoleUser marks values submitted by the visitor.
	RoleUser MessageRole = "user"
)

// ChatMessage is one append-only transcript entry. Messages are never mutated
// or deleted; ordering is by CreatedAt with ties broken by insertion order.
type ChatMessage struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	StepID    string      `json:"step_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// Error variables shared across the engine boundary.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrStaleTransition  = errors.New("submission does not match current step")
	ErrStepNotFound     = errors.New("step not found")
	ErrConfiguration    = errors.New("flow configuration invalid")
	ErrPersistence      = errors.New("session store unavailable")
	ErrLeadCreation     = errors.New("lead creation failed")
	ErrLeadNotFound     = errors.New("lead not found")
)
