// Package models defines CRM lead structures produced by the completion handler.
package models

import (
	"errors"
	"time"
)

// LeadPriority represents the triage tier computed from collected data.
type LeadPriority string

const (
	// LeadPriorityHot is the highest tier: admissions flows and call-me preferences.
	LeadPriorityHot LeadPriority = "hot"
	// LeadPriorityWarm is the middle tier: insurance verification and insured payers.
	LeadPriorityWarm LeadPriority = "warm"
	// LeadPriorityStandard is everything else.
	LeadPriorityStandard LeadPriority = "standard"
)

// QualificationScore maps a priority tier to its numeric score.
func (p LeadPriority) QualificationScore() int {
	switch p {
	case LeadPriorityHot:
		return 90
	case LeadPriorityWarm:
		return 70
	default:
		return 50
	}
}

// Lead field defaults.
const (
	// DefaultLeadName is used when no name was collected before completion.
	DefaultLeadName = "Website Visitor"
	// LeadSourceChatWidget tags leads created by the intake widget.
	LeadSourceChatWidget = "chat-widget"
	// LeadStatusNew is the initial CRM status for every created lead.
	LeadStatusNew = "new"
)

// Validation errors for lead creation.
var (
	ErrLeadMissingName    = errors.New("lead name is required")
	ErrLeadMissingContact = errors.New("lead requires a phone number or email")
	ErrLeadMissingSource  = errors.New("lead source is required")
)

// Lead is the CRM record emitted once per completed session.
type Lead struct {
	ID                 string       `json:"id"`
	SessionID          string       `json:"session_id"`
	Name               string       `json:"name"`
	Phone              string       `json:"phone,omitempty"` // digits only
	Email              string       `json:"email,omitempty"`
	Source             string       `json:"source"`
	Status             string       `json:"status"`
	Priority           LeadPriority `json:"priority"`
	ServiceNeeded      string       `json:"service_needed,omitempty"`
	InsuranceCarrier   string       `json:"insurance_carrier,omitempty"`
	MemberID           string       `json:"member_id,omitempty"`
	BestTimeToCall     string       `json:"best_time_to_call,omitempty"`
	Notes              string       `json:"notes,omitempty"`
	QualificationScore int          `json:"qualification_score"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Validate checks that the lead carries the fields the CRM requires.
func (l *Lead) Validate() error {
	if l.Name == "" {
		return ErrLeadMissingName
	}
	if l.Phone == "" && l.Email == "" {
		return ErrLeadMissingContact
	}
	if l.Source == "" {
		return ErrLeadMissingSource
	}
	return nil
}
