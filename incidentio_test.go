package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testIncidentClient(t *testing.T, handler http.Handler) (*IncidentIOClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewIncidentIOClient(Config{
		IncidentIOBaseURL: srv.URL,
		IncidentIOAPIKey:  "test-key",
	})
	return client, srv
}

func TestListIncidentsPaginates(t *testing.T) {
	var seenAuth string
	calls := 0
	client, _ := testIncidentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/incidents" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		seenAuth = r.Header.Get("Authorization")
		calls++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("after") {
		case "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"incidents":       []map[string]string{{"id": "inc-1", "name": "first"}},
				"pagination_meta": map[string]string{"after": "inc-1"},
			})
		case "inc-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"incidents":       []map[string]string{{"id": "inc-2", "name": "second"}},
				"pagination_meta": map[string]string{"after": ""},
			})
		default:
			t.Fatalf("unexpected after cursor: %s", r.URL.Query().Get("after"))
		}
	}))

	incidents, err := client.ListIncidents(context.Background())
	if err != nil {
		t.Fatalf("ListIncidents failed: %v", err)
	}
	if len(incidents) != 2 || incidents[0].ID != "inc-1" || incidents[1].ID != "inc-2" {
		t.Fatalf("unexpected incidents: %+v", incidents)
	}
	if calls != 2 {
		t.Fatalf("expected 2 pages, got %d", calls)
	}
	if seenAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", seenAuth)
	}
}

func TestCreateIncidentFillsIdempotencyKey(t *testing.T) {
	var received map[string]any
	client, _ := testIncidentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/v2/incidents" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"incident": map[string]string{"id": "inc-9", "name": "Created"},
		})
	}))

	incident, err := client.CreateIncident(context.Background(), CreateIncidentRequest{Name: "Created"})
	if err != nil {
		t.Fatalf("CreateIncident failed: %v", err)
	}
	if incident.ID != "inc-9" {
		t.Fatalf("unexpected incident: %+v", incident)
	}
	if key, _ := received["idempotency_key"].(string); key == "" {
		t.Fatal("idempotency key should be generated when empty")
	}
	if vis, _ := received["visibility"].(string); vis != "public" {
		t.Fatalf("visibility should default to public, got %q", vis)
	}
}

func TestUpdateIncidentPostsEditAction(t *testing.T) {
	var path string
	client, _ := testIncidentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["incident"]; !ok {
			t.Fatalf("edit body missing incident wrapper: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"incident": map[string]string{"id": "inc-1"}})
	}))

	if _, err := client.UpdateIncident(context.Background(), "inc-1", UpdateIncidentRequest{Summary: "updated"}); err != nil {
		t.Fatalf("UpdateIncident failed: %v", err)
	}
	if path != "/v2/incidents/inc-1/actions/edit" {
		t.Fatalf("unexpected path: %s", path)
	}
}

func TestListScheduleEntriesSendsWindow(t *testing.T) {
	client, _ := testIncidentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("schedule_id") != "sched-1" {
			t.Fatalf("missing schedule_id: %v", q)
		}
		if q.Get("entry_window_start") == "" || q.Get("entry_window_end") == "" {
			t.Fatalf("missing window params: %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"schedule_entries": map[string]any{
				"final": []map[string]any{{
					"rotation_id": "rot-1",
					"user":        map[string]string{"name": "Carlo Kok", "email": "carlo@rb2.nl"},
					"start_at":    "2025-10-01T06:00:00Z",
					"end_at":      "2025-10-01T20:00:00Z",
				}},
			},
		})
	}))

	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	payload, err := client.ListScheduleEntries(context.Background(), "sched-1", start, start.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("ListScheduleEntries failed: %v", err)
	}
	entries := selectScheduleEntries(payload)
	if len(entries) != 1 || entries[0].User.Email != "carlo@rb2.nl" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestAPIErrorIncludesStatusAndBody(t *testing.T) {
	client, _ := testIncidentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"authentication_error"}`, http.StatusUnauthorized)
	}))

	_, err := client.ListSeverities(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "401") || !strings.Contains(got, "authentication_error") {
		t.Fatalf("error should carry status and body: %v", err)
	}
}

func TestEnsureWebhookRegistrations(t *testing.T) {
	db := testDB(t)
	created := 0
	client, _ := testIncidentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/v2/webhooks":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"webhooks": []map[string]any{{
					"id":          "wh-existing",
					"webhook_url": "https://bot.example.com/webhook/incidentio",
					"event_type":  "incident.created",
					"enabled":     true,
				}},
			})
		case r.Method == "POST" && r.URL.Path == "/v2/webhooks":
			created++
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"webhook": map[string]any{
					"id":          "wh-new",
					"webhook_url": body["webhook_url"],
					"event_type":  body["event_type"],
					"enabled":     true,
				},
			})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	cfg := Config{
		WebhookPublicURL: "https://bot.example.com/webhook/incidentio",
		WebhookEvents:    []string{"incident.created", "incident.status_updated"},
	}
	if err := EnsureWebhookRegistrations(context.Background(), cfg, client, db); err != nil {
		t.Fatalf("EnsureWebhookRegistrations failed: %v", err)
	}

	// incident.created already exists upstream; only the second event needs
	// a new registration.
	if created != 1 {
		t.Fatalf("expected 1 creation, got %d", created)
	}
	regs, err := ListWebhookRegistrations(db)
	if err != nil {
		t.Fatalf("ListWebhookRegistrations failed: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("expected 2 recorded registrations, got %+v", regs)
	}
}
