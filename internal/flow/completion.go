package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carebridge/leadflow/internal/models"
	"github.com/carebridge/leadflow/internal/notify"
	"github.com/carebridge/leadflow/internal/store"
	"github.com/google/uuid"
)

// CompletionHandler converts a session that reached the terminal confirmation
// step into a CRM lead and fires the notification side effects. Lead creation
// is the one side effect that must succeed; SMS and email are best-effort.
type CompletionHandler struct {
	store    store.Store
	notifier *notify.Service
}

// NewCompletionHandler creates a completion handler.
func NewCompletionHandler(st store.Store, notifier *notify.Service) *CompletionHandler {
	return &CompletionHandler{store: st, notifier: notifier}
}

// DerivePriority computes the triage tier from collected data. Rules are
// ordered; the first match wins.
func DerivePriority(data models.CollectedData) models.LeadPriority {
	if data[models.FieldFlowChoice] == FlowChoiceAdmissions ||
		data[models.FieldContactPreference] == ContactPreferenceCall {
		return models.LeadPriorityHot
	}
	if data[models.FieldFlowChoice] == FlowChoiceInsurance ||
		data[models.FieldPaymentType] == "insurance" {
		return models.LeadPriorityWarm
	}
	return models.LeadPriorityStandard
}

// noteFields is the fixed order in which collected fields appear in the lead
// notes string.
var noteFields = []struct {
	label string
	field string
}{
	{"Flow", models.FieldFlowChoice},
	{"Treatment type", models.FieldTreatmentType},
	{"Payment type", models.FieldPaymentType},
	{"Date of birth", models.FieldDateOfBirth},
	{"Contact preference", models.FieldContactPreference},
	{"Question topic", models.FieldQuestionTopic},
	{"Question", models.FieldQuestionText},
	{"Additional details", models.FieldAdditionalNotes},
}

// BuildNotes assembles the structured notes string from the fields present in
// the collected data, as labeled fragments joined by ". " and terminated with
// a period.
func BuildNotes(data models.CollectedData) string {
	var fragments []string
	for _, nf := range noteFields {
		if value := data[nf.field]; value != "" {
			fragments = append(fragments, fmt.Sprintf("%s: %s", nf.label, value))
		}
	}
	if len(fragments) == 0 {
		return ""
	}
	return strings.Join(fragments, ". ") + "."
}

// BestTimeToCall derives the callback window from the contact preference. A
// call-me preference means anytime; admissions flows carry an explicit slot.
func BestTimeToCall(data models.CollectedData) string {
	if data[models.FieldContactPreference] == ContactPreferenceCall {
		return "anytime"
	}
	return data[models.FieldCallbackTime]
}

// BuildLead assembles the CRM lead record for a session's collected data.
func BuildLead(session *models.ConversationSession) models.Lead {
	data := session.CollectedData
	name := data[models.FieldFullName]
	if name == "" {
		name = models.DefaultLeadName
	}
	priority := DerivePriority(data)
	return models.Lead{
		ID:                 uuid.NewString(),
		SessionID:          session.ID,
		Name:               name,
		Phone:              DigitsOnly(data[models.FieldPhone]),
		Email:              data[models.FieldEmail],
		Source:             models.LeadSourceChatWidget,
		Status:             models.LeadStatusNew,
		Priority:           priority,
		ServiceNeeded:      data[models.FieldTreatmentType],
		InsuranceCarrier:   data[models.FieldInsuranceCarrier],
		MemberID:           data[models.FieldMemberID],
		BestTimeToCall:     BestTimeToCall(data),
		Notes:              BuildNotes(data),
		QualificationScore: priority.QualificationScore(),
		CreatedAt:          time.Now(),
	}
}

// Complete creates the lead for the session and marks it completed. On lead
// creation failure the session is left active at the confirmation step so the
// visitor can retry; on success the session is completed exactly once and the
// notification side effects fire, each attempted once.
func (h *CompletionHandler) Complete(ctx context.Context, session *models.ConversationSession) error {
	if session.Status == models.SessionStatusCompleted || session.LeadID != "" {
		slog.Debug("Completion already performed", "sessionID", session.ID, "leadID", session.LeadID)
		return nil
	}

	lead := BuildLead(session)
	if err := h.store.CreateLead(lead); err != nil {
		slog.Error("Completion lead creation failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("%w: %v", models.ErrLeadCreation, err)
	}
	slog.Info("Completion lead created", "sessionID", session.ID, "leadID", lead.ID, "priority", lead.Priority, "score", lead.QualificationScore)

	now := time.Now()
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &now
	session.LastActivityAt = now
	session.LeadID = lead.ID
	if err := h.store.UpdateSession(*session); err != nil {
		slog.Error("Completion session update failed", "error", err, "sessionID", session.ID, "leadID", lead.ID)
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	h.sendNotifications(ctx, session, lead)
	return nil
}

// sendNotifications fires the SMS and email side effects. Failures are logged
// and never surfaced; completion does not depend on delivery.
func (h *CompletionHandler) sendNotifications(ctx context.Context, session *models.ConversationSession, lead models.Lead) {
	if h.notifier == nil {
		return
	}
	data := session.CollectedData

	if lead.Phone != "" && data[models.FieldContactPreference] != ContactPreferenceCall {
		body := fmt.Sprintf("Hi %s, thanks for reaching out to Carebridge Recovery. Our team will be in touch shortly.", lead.Name)
		if err := h.notifier.SendSMS(ctx, lead.Phone, body); err != nil {
			slog.Warn("Completion SMS notification failed", "error", err, "leadID", lead.ID)
		}
	}

	if lead.Email != "" {
		subject := "We received your request"
		body := fmt.Sprintf("Hi %s,\n\nThanks for contacting Carebridge Recovery. A member of our team will reach out soon.\n", lead.Name)
		if err := h.notifier.SendConfirmationEmail(ctx, lead.Email, subject, body); err != nil {
			slog.Warn("Completion email notification failed", "error", err, "leadID", lead.ID)
		}
	}
}
