package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carebridge/leadflow/internal/flow"
	"github.com/carebridge/leadflow/internal/models"
	"github.com/carebridge/leadflow/internal/notify"
	"github.com/carebridge/leadflow/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	table := flow.DefaultScript()
	if err := table.Validate(); err != nil {
		t.Fatalf("script validation: %v", err)
	}
	st := store.NewInMemoryStore()
	completion := flow.NewCompletionHandler(st, notify.NewService(&notify.MockSMSSender{}, &notify.MockEmailSender{}))
	controller := flow.NewController(table, st, completion)
	return NewServer(controller, st), st
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if envelope.Status != "ok" {
		t.Fatalf("status = %q, body %s", envelope.Status, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestStartEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := postJSON(t, handler, "/intake/start", map[string]string{"visitor_token": "tok-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result flow.StartResult
	decodeResult(t, rec, &result)
	if result.Step.ID != flow.StepMainMenu {
		t.Errorf("step = %s, want %s", result.Step.ID, flow.StepMainMenu)
	}
	if result.Session.ID == "" {
		t.Error("missing session id")
	}
	if len(result.Transcript) == 0 {
		t.Error("expected welcome transcript")
	}
}

func TestStartEndpointRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/intake/start", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStartEndpointRejectsGet(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/intake/start", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestSubmitEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	var start flow.StartResult
	decodeResult(t, postJSON(t, handler, "/intake/start", map[string]string{"visitor_token": "tok-2"}), &start)

	rec := postJSON(t, handler, "/intake/submit", map[string]string{
		"session_id": start.Session.ID,
		"step_id":    flow.StepMainMenu,
		"input":      flow.FlowChoicePricing,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result flow.SubmitResult
	decodeResult(t, rec, &result)
	if !result.Accepted {
		t.Errorf("submission rejected: %v", result.Messages)
	}
	if result.StepID != "pricing-payment-type" {
		t.Errorf("next step = %s", result.StepID)
	}
}

func TestSubmitEndpointStaleConflict(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	var start flow.StartResult
	decodeResult(t, postJSON(t, handler, "/intake/start", map[string]string{"visitor_token": "tok-3"}), &start)

	submit := func() *httptest.ResponseRecorder {
		return postJSON(t, handler, "/intake/submit", map[string]string{
			"session_id": start.Session.ID,
			"step_id":    flow.StepMainMenu,
			"input":      flow.FlowChoicePricing,
		})
	}
	if rec := submit(); rec.Code != http.StatusOK {
		t.Fatalf("first submit status = %d", rec.Code)
	}
	if rec := submit(); rec.Code != http.StatusConflict {
		t.Errorf("stale submit status = %d, want 409", rec.Code)
	}
}

func TestSubmitEndpointUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/intake/submit", map[string]string{
		"session_id": "ghost",
		"step_id":    flow.StepMainMenu,
		"input":      "x",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	var start flow.StartResult
	decodeResult(t, postJSON(t, handler, "/intake/start", map[string]string{"visitor_token": "tok-4"}), &start)

	req := httptest.NewRequest(http.MethodGet, "/intake/session?visitor_token=tok-4", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Session    models.ConversationSession `json:"session"`
		Transcript []models.ChatMessage       `json:"transcript"`
	}
	decodeResult(t, rec, &result)
	if result.Session.ID != start.Session.ID {
		t.Errorf("session id = %s, want %s", result.Session.ID, start.Session.ID)
	}
	if len(result.Transcript) != len(start.Transcript) {
		t.Errorf("transcript length = %d, want %d", len(result.Transcript), len(start.Transcript))
	}

	req = httptest.NewRequest(http.MethodGet, "/intake/session?visitor_token=nobody", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want 404", rec.Code)
	}
}

func TestLeadEndpoint(t *testing.T) {
	server, st := newTestServer(t)
	handler := server.Handler()

	var start flow.StartResult
	decodeResult(t, postJSON(t, handler, "/intake/start", map[string]string{"visitor_token": "tok-5"}), &start)

	steps := []struct {
		step  string
		input string
	}{
		{flow.StepMainMenu, flow.FlowChoicePricing},
		{"pricing-payment-type", "private-pay"},
		{"pricing-treatment-type", "outpatient"},
		{"pricing-who-for", "myself"},
		{flow.StepContactName, "Jane Doe"},
		{flow.StepContactEmail, "jane@example.com"},
		{flow.StepContactPhone, "5551112222"},
		{flow.StepContactPreference, flow.ContactPreferenceCall},
	}
	var last flow.SubmitResult
	for _, s := range steps {
		rec := postJSON(t, handler, "/intake/submit", map[string]string{
			"session_id": start.Session.ID,
			"step_id":    s.step,
			"input":      s.input,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("submit %s status = %d, body %s", s.step, rec.Code, rec.Body.String())
		}
		decodeResult(t, rec, &last)
	}
	if !last.Done || last.LeadID == "" {
		t.Fatalf("flow did not complete: %+v", last)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/leads/%s", last.LeadID), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lead fetch status = %d, body %s", rec.Code, rec.Body.String())
	}

	var lead models.Lead
	decodeResult(t, rec, &lead)
	if lead.Priority != models.LeadPriorityHot {
		t.Errorf("priority = %s, want hot", lead.Priority)
	}
	if lead.BestTimeToCall != "anytime" {
		t.Errorf("bestTimeToCall = %q, want anytime", lead.BestTimeToCall)
	}

	stored, err := st.GetLead(last.LeadID)
	if err != nil || stored == nil {
		t.Fatalf("lead missing from store: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/leads/missing", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing lead status = %d, want 404", rec.Code)
	}
}

func TestSubmitEndpointInvalidJSON(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/intake/submit", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
