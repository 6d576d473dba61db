package reaper

import (
	"testing"
	"time"

	"github.com/carebridge/leadflow/internal/models"
	"github.com/carebridge/leadflow/internal/store"
	"github.com/google/uuid"
)

func seedSession(t *testing.T, st store.Store, status models.SessionStatus, lastActivity time.Time) string {
	t.Helper()
	session := models.ConversationSession{
		ID:             uuid.NewString(),
		VisitorToken:   uuid.NewString(),
		CurrentStepID:  "main-menu",
		CollectedData:  models.CollectedData{},
		Status:         status,
		StartedAt:      lastActivity,
		LastActivityAt: lastActivity,
	}
	if err := st.CreateSession(session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session.ID
}

func TestRunOnceAbandonsOnlyIdleActiveSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	idle := seedSession(t, st, models.SessionStatusActive, time.Now().Add(-48*time.Hour))
	fresh := seedSession(t, st, models.SessionStatusActive, time.Now())
	completed := seedSession(t, st, models.SessionStatusCompleted, time.Now().Add(-48*time.Hour))

	r := New(st, 24*time.Hour)
	if count := r.RunOnce(); count != 1 {
		t.Errorf("RunOnce = %d, want 1", count)
	}

	assertStatus := func(id string, want models.SessionStatus) {
		t.Helper()
		session, err := st.GetSession(id)
		if err != nil || session == nil {
			t.Fatalf("GetSession(%s): %v", id, err)
		}
		if session.Status != want {
			t.Errorf("session %s status = %s, want %s", id, session.Status, want)
		}
	}
	assertStatus(idle, models.SessionStatusAbandoned)
	assertStatus(fresh, models.SessionStatusActive)
	assertStatus(completed, models.SessionStatusCompleted)
}

func TestRunOnceIsRepeatable(t *testing.T) {
	st := store.NewInMemoryStore()
	seedSession(t, st, models.SessionStatusActive, time.Now().Add(-48*time.Hour))

	r := New(st, 24*time.Hour)
	if count := r.RunOnce(); count != 1 {
		t.Fatalf("first RunOnce = %d, want 1", count)
	}
	if count := r.RunOnce(); count != 0 {
		t.Errorf("second RunOnce = %d, want 0", count)
	}
}

func TestNewDefaultsIdleWindow(t *testing.T) {
	r := New(store.NewInMemoryStore(), 0)
	if r.idleWindow != DefaultIdleWindow {
		t.Errorf("idleWindow = %v, want %v", r.idleWindow, DefaultIdleWindow)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := New(store.NewInMemoryStore(), time.Hour)
	if err := r.Start("not a schedule"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
