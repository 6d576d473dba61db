// Package store provides storage backends for the lead intake engine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/carebridge/leadflow/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")

	return &PostgresStore{db: db}, nil
}

// CreateSession persists a new conversation session.
func (s *PostgresStore) CreateSession(session models.ConversationSession) error {
	dataJSON, err := marshalCollectedData(session.CollectedData)
	if err != nil {
		slog.Error("PostgresStore CreateSession marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, visitor_token, current_step_id, collected_data, status, started_at, last_activity_at, completed_at, lead_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.VisitorToken, session.CurrentStepID, dataJSON, session.Status,
		session.StartedAt, session.LastActivityAt, nullableTime(session.CompletedAt), nilIfEmpty(session.LeadID))
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by id, nil if missing.
func (s *PostgresStore) GetSession(id string) (*models.ConversationSession, error) {
	row := s.db.QueryRow(`
		SELECT id, visitor_token, current_step_id, collected_data, status, started_at, last_activity_at, completed_at, lead_id
		FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// FindActiveSessionByToken retrieves the active session for a visitor token.
func (s *PostgresStore) FindActiveSessionByToken(token string) (*models.ConversationSession, error) {
	row := s.db.QueryRow(`
		SELECT id, visitor_token, current_step_id, collected_data, status, started_at, last_activity_at, completed_at, lead_id
		FROM sessions WHERE visitor_token = $1 AND status = $2 ORDER BY started_at DESC LIMIT 1`,
		token, models.SessionStatusActive)
	return scanSession(row)
}

// UpdateSession persists the session's mutable fields as one statement.
func (s *PostgresStore) UpdateSession(session models.ConversationSession) error {
	dataJSON, err := marshalCollectedData(session.CollectedData)
	if err != nil {
		slog.Error("PostgresStore UpdateSession marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	res, err := s.db.Exec(`
		UPDATE sessions
		SET current_step_id = $1, collected_data = $2, status = $3, last_activity_at = $4, completed_at = $5, lead_id = $6
		WHERE id = $7`,
		session.CurrentStepID, dataJSON, session.Status, session.LastActivityAt,
		nullableTime(session.CompletedAt), nilIfEmpty(session.LeadID), session.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// AppendMessage adds one transcript entry.
func (s *PostgresStore) AppendMessage(message models.ChatMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (id, session_id, role, content, step_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		message.ID, message.SessionID, message.Role, message.Content, nilIfEmpty(message.StepID), message.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AppendMessage failed", "error", err, "sessionID", message.SessionID)
		return fmt.Errorf("failed to insert message for session %s: %w", message.SessionID, err)
	}
	return nil
}

// ListMessages returns a session's transcript ordered by creation time, ties
// broken by insertion order (the bigserial seq).
func (s *PostgresStore) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, COALESCE(step_id, ''), created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at, seq`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.StepID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// CreateLead persists a CRM lead after validating required fields.
func (s *PostgresStore) CreateLead(lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO leads (id, session_id, name, phone, email, source, status, priority, service_needed, insurance_carrier, member_id, best_time_to_call, notes, qualification_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		lead.ID, nilIfEmpty(lead.SessionID), lead.Name, nilIfEmpty(lead.Phone), nilIfEmpty(lead.Email),
		lead.Source, lead.Status, lead.Priority, nilIfEmpty(lead.ServiceNeeded), nilIfEmpty(lead.InsuranceCarrier),
		nilIfEmpty(lead.MemberID), nilIfEmpty(lead.BestTimeToCall), nilIfEmpty(lead.Notes),
		lead.QualificationScore, lead.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "leadID", lead.ID)
		return fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
	}
	return nil
}

// GetLead retrieves a lead by id, nil if missing.
func (s *PostgresStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`
		SELECT id, COALESCE(session_id, ''), name, COALESCE(phone, ''), COALESCE(email, ''), source, status, priority,
		       COALESCE(service_needed, ''), COALESCE(insurance_carrier, ''), COALESCE(member_id, ''),
		       COALESCE(best_time_to_call, ''), COALESCE(notes, ''), qualification_score, created_at
		FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// MarkAbandonedBefore flips idle active sessions to abandoned.
func (s *PostgresStore) MarkAbandonedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE sessions SET status = $1 WHERE status = $2 AND last_activity_at < $3`,
		models.SessionStatusAbandoned, models.SessionStatusActive, cutoff)
	if err != nil {
		slog.Error("PostgresStore MarkAbandonedBefore failed", "error", err)
		return 0, fmt.Errorf("failed to mark abandoned sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the PostgreSQL connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
