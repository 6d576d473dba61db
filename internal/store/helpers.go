package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/leadflow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime converts an optional time into a nullable column value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// scanSession scans a ConversationSession from a single sql.Row, returning
// nil when the row does not exist.
func scanSession(row *sql.Row) (*models.ConversationSession, error) {
	var session models.ConversationSession
	var dataJSON, leadID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&session.ID, &session.VisitorToken, &session.CurrentStepID, &dataJSON,
		&session.Status, &session.StartedAt, &session.LastActivityAt, &completedAt, &leadID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session failed: %w", err)
	}
	session.LeadID = leadID.String
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	session.CollectedData = make(models.CollectedData)
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &session.CollectedData); err != nil {
			slog.Error("Failed to unmarshal collected data, continuing with empty map", "error", err, "sessionID", session.ID)
			session.CollectedData = make(models.CollectedData)
		}
	}
	return &session, nil
}

// scanLead scans a Lead from a single sql.Row, returning nil when missing.
func scanLead(row *sql.Row) (*models.Lead, error) {
	var lead models.Lead
	err := row.Scan(
		&lead.ID, &lead.SessionID, &lead.Name, &lead.Phone, &lead.Email, &lead.Source,
		&lead.Status, &lead.Priority, &lead.ServiceNeeded, &lead.InsuranceCarrier,
		&lead.MemberID, &lead.BestTimeToCall, &lead.Notes, &lead.QualificationScore, &lead.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan lead failed: %w", err)
	}
	return &lead, nil
}
