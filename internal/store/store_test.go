package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/carebridge/leadflow/internal/models"
	"github.com/google/uuid"
)

// backends returns a named constructor for every Store implementation the
// suite runs against.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewInMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			dsn := filepath.Join(t.TempDir(), "leadflow-test.db")
			st, err := NewSQLiteStore(WithDSN(dsn))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			t.Cleanup(func() { st.Close() })
			return st
		},
	}
}

func testSession(token string) models.ConversationSession {
	now := time.Now().UTC().Truncate(time.Second)
	return models.ConversationSession{
		ID:            uuid.NewString(),
		VisitorToken:  token,
		CurrentStepID: "main-menu",
		CollectedData: models.CollectedData{
			"flowChoice": "pricing",
		},
		Status:         models.SessionStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			session := testSession("tok-round-trip")
			if err := st.CreateSession(session); err != nil {
				t.Fatalf("CreateSession: %v", err)
			}

			got, err := st.GetSession(session.ID)
			if err != nil {
				t.Fatalf("GetSession: %v", err)
			}
			if got == nil {
				t.Fatal("GetSession returned nil for existing session")
			}
			if got.VisitorToken != session.VisitorToken || got.CurrentStepID != session.CurrentStepID {
				t.Errorf("got %+v, want %+v", got, session)
			}
			if got.CollectedData["flowChoice"] != "pricing" {
				t.Errorf("collected data did not round-trip: %v", got.CollectedData)
			}
			if got.Status != models.SessionStatusActive {
				t.Errorf("status = %s, want active", got.Status)
			}
		})
	}
}

func TestGetSessionMissingReturnsNil(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)
			got, err := st.GetSession("does-not-exist")
			if err != nil {
				t.Fatalf("GetSession: %v", err)
			}
			if got != nil {
				t.Errorf("expected nil for missing session, got %+v", got)
			}
		})
	}
}

func TestFindActiveSessionByToken(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			active := testSession("tok-find")
			if err := st.CreateSession(active); err != nil {
				t.Fatal(err)
			}
			completed := testSession("tok-other")
			completed.Status = models.SessionStatusCompleted
			if err := st.CreateSession(completed); err != nil {
				t.Fatal(err)
			}

			got, err := st.FindActiveSessionByToken("tok-find")
			if err != nil {
				t.Fatalf("FindActiveSessionByToken: %v", err)
			}
			if got == nil || got.ID != active.ID {
				t.Fatalf("expected session %s, got %+v", active.ID, got)
			}

			// Completed sessions never match.
			got, err = st.FindActiveSessionByToken("tok-other")
			if err != nil {
				t.Fatal(err)
			}
			if got != nil {
				t.Errorf("completed session matched token lookup: %+v", got)
			}

			got, err = st.FindActiveSessionByToken("tok-unknown")
			if err != nil {
				t.Fatal(err)
			}
			if got != nil {
				t.Errorf("unknown token matched: %+v", got)
			}
		})
	}
}

func TestUpdateSession(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			session := testSession("tok-update")
			if err := st.CreateSession(session); err != nil {
				t.Fatal(err)
			}

			session.CurrentStepID = "contact-name"
			session.CollectedData["fullName"] = "Jane Doe"
			now := time.Now().UTC().Truncate(time.Second)
			session.Status = models.SessionStatusCompleted
			session.CompletedAt = &now
			session.LeadID = uuid.NewString()
			if err := st.UpdateSession(session); err != nil {
				t.Fatalf("UpdateSession: %v", err)
			}

			got, err := st.GetSession(session.ID)
			if err != nil || got == nil {
				t.Fatalf("GetSession after update: %v", err)
			}
			if got.CurrentStepID != "contact-name" || got.Status != models.SessionStatusCompleted {
				t.Errorf("update not applied: %+v", got)
			}
			if got.CollectedData["fullName"] != "Jane Doe" {
				t.Errorf("collected data not updated: %v", got.CollectedData)
			}
			if got.LeadID != session.LeadID {
				t.Errorf("lead id = %q, want %q", got.LeadID, session.LeadID)
			}
			if got.CompletedAt == nil {
				t.Error("completed_at not persisted")
			}
		})
	}
}

func TestUpdateSessionMissing(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)
			session := testSession("tok-ghost")
			if err := st.UpdateSession(session); err != models.ErrSessionNotFound {
				t.Errorf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestMessagesOrderedWithinSession(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			session := testSession("tok-messages")
			if err := st.CreateSession(session); err != nil {
				t.Fatal(err)
			}
			other := testSession("tok-noise")
			if err := st.CreateSession(other); err != nil {
				t.Fatal(err)
			}

			base := time.Now().UTC().Truncate(time.Second)
			contents := []string{"welcome", "menu", "pricing"}
			for i, content := range contents {
				msg := models.ChatMessage{
					ID:        uuid.NewString(),
					SessionID: session.ID,
					Role:      models.RoleAssistant,
					Content:   content,
					StepID:    "welcome",
					CreatedAt: base.Add(time.Duration(i) * time.Second),
				}
				if err := st.AppendMessage(msg); err != nil {
					t.Fatalf("AppendMessage: %v", err)
				}
			}
			noise := models.ChatMessage{
				ID:        uuid.NewString(),
				SessionID: other.ID,
				Role:      models.RoleUser,
				Content:   "other session",
				CreatedAt: base,
			}
			if err := st.AppendMessage(noise); err != nil {
				t.Fatal(err)
			}

			messages, err := st.ListMessages(session.ID)
			if err != nil {
				t.Fatalf("ListMessages: %v", err)
			}
			if len(messages) != len(contents) {
				t.Fatalf("message count = %d, want %d", len(messages), len(contents))
			}
			for i, content := range contents {
				if messages[i].Content != content {
					t.Errorf("messages[%d] = %q, want %q", i, messages[i].Content, content)
				}
			}
		})
	}
}

func TestMessagesTieBrokenByInsertionOrder(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			session := testSession("tok-ties")
			if err := st.CreateSession(session); err != nil {
				t.Fatal(err)
			}

			at := time.Now().UTC().Truncate(time.Second)
			for _, content := range []string{"first", "second", "third"} {
				msg := models.ChatMessage{
					ID:        uuid.NewString(),
					SessionID: session.ID,
					Role:      models.RoleAssistant,
					Content:   content,
					CreatedAt: at,
				}
				if err := st.AppendMessage(msg); err != nil {
					t.Fatal(err)
				}
			}

			messages, err := st.ListMessages(session.ID)
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"first", "second", "third"}
			for i := range want {
				if messages[i].Content != want[i] {
					t.Errorf("messages[%d] = %q, want %q", i, messages[i].Content, want[i])
				}
			}
		})
	}
}

func testLead(sessionID string) models.Lead {
	return models.Lead{
		ID:                 uuid.NewString(),
		SessionID:          sessionID,
		Name:               "Jane Doe",
		Phone:              "5551112222",
		Email:              "jane@example.com",
		Source:             models.LeadSourceChatWidget,
		Status:             models.LeadStatusNew,
		Priority:           models.LeadPriorityHot,
		ServiceNeeded:      "outpatient",
		BestTimeToCall:     "anytime",
		Notes:              "Flow: pricing.",
		QualificationScore: 90,
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
	}
}

func TestLeadRoundTrip(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			lead := testLead(uuid.NewString())
			if err := st.CreateLead(lead); err != nil {
				t.Fatalf("CreateLead: %v", err)
			}

			got, err := st.GetLead(lead.ID)
			if err != nil {
				t.Fatalf("GetLead: %v", err)
			}
			if got == nil {
				t.Fatal("GetLead returned nil for existing lead")
			}
			if got.Name != lead.Name || got.Phone != lead.Phone || got.Priority != lead.Priority {
				t.Errorf("lead did not round-trip: %+v", got)
			}
			if got.QualificationScore != 90 {
				t.Errorf("score = %d, want 90", got.QualificationScore)
			}

			missing, err := st.GetLead("does-not-exist")
			if err != nil {
				t.Fatal(err)
			}
			if missing != nil {
				t.Errorf("expected nil for missing lead, got %+v", missing)
			}
		})
	}
}

func TestCreateLeadRejectsInvalid(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			lead := testLead(uuid.NewString())
			lead.Phone = ""
			lead.Email = ""
			if err := st.CreateLead(lead); err == nil {
				t.Error("expected validation error for lead without contact info")
			}
		})
	}
}

func TestMarkAbandonedBefore(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore(t)

			stale := testSession("tok-stale")
			stale.LastActivityAt = time.Now().UTC().Add(-48 * time.Hour)
			if err := st.CreateSession(stale); err != nil {
				t.Fatal(err)
			}
			fresh := testSession("tok-fresh")
			if err := st.CreateSession(fresh); err != nil {
				t.Fatal(err)
			}
			done := testSession("tok-done")
			done.Status = models.SessionStatusCompleted
			done.LastActivityAt = time.Now().UTC().Add(-48 * time.Hour)
			if err := st.CreateSession(done); err != nil {
				t.Fatal(err)
			}

			count, err := st.MarkAbandonedBefore(time.Now().UTC().Add(-24 * time.Hour))
			if err != nil {
				t.Fatalf("MarkAbandonedBefore: %v", err)
			}
			if count != 1 {
				t.Errorf("abandoned count = %d, want 1", count)
			}

			got, _ := st.GetSession(stale.ID)
			if got.Status != models.SessionStatusAbandoned {
				t.Errorf("stale session status = %s, want abandoned", got.Status)
			}
			got, _ = st.GetSession(fresh.ID)
			if got.Status != models.SessionStatusActive {
				t.Errorf("fresh session status = %s, want active", got.Status)
			}
			got, _ = st.GetSession(done.ID)
			if got.Status != models.SessionStatusCompleted {
				t.Errorf("completed session status = %s, want completed", got.Status)
			}
		})
	}
}
