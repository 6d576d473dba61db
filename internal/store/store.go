// Package store provides storage backends for the lead intake engine.
//
// It defines the session store contract the conversation controller persists
// through, with in-memory, SQLite, and PostgreSQL implementations.
package store

import (
	"time"

	"github.com/carebridge/leadflow/internal/models"
)

// Store is the persistence boundary for sessions, transcript messages, and
// leads. Read methods return nil with a nil error when a record is missing;
// callers decide whether that is an error.
type Store interface {
	// CreateSession persists a new conversation session.
	CreateSession(session models.ConversationSession) error

	// GetSession retrieves a session by id.
	GetSession(id string) (*models.ConversationSession, error)

	// FindActiveSessionByToken retrieves the active session for a visitor
	// token, if one exists. Completed and abandoned sessions never match.
	FindActiveSessionByToken(token string) (*models.ConversationSession, error)

	// UpdateSession persists the session's mutable fields (current step,
	// collected data, status, lead id, timestamps) as one unit. A reader
	// never observes a partial update.
	UpdateSession(session models.ConversationSession) error

	// AppendMessage adds one transcript entry. The transcript is append-only.
	AppendMessage(message models.ChatMessage) error

	// ListMessages returns a session's transcript ordered by creation time,
	// ties broken by insertion order.
	ListMessages(sessionID string) ([]models.ChatMessage, error)

	// CreateLead persists a CRM lead after validating required fields.
	CreateLead(lead models.Lead) error

	// GetLead retrieves a lead by id.
	GetLead(id string) (*models.Lead, error)

	// MarkAbandonedBefore flips active sessions whose last activity predates
	// the cutoff to abandoned, returning how many were flipped.
	MarkAbandonedBefore(cutoff time.Time) (int, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN (a file path for SQLite, a connection string
// for PostgreSQL).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
