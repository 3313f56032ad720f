package main

import (
	"testing"
	"time"
)

func TestCheckRunRoundTrip(t *testing.T) {
	db := testDB(t)

	first := CheckRun{
		ID:            "run-1",
		Trigger:       "schedule",
		HasConflicts:  true,
		ConflictCount: 3,
		PeopleChecked: 2,
		TotalBookings: 2,
		TotalEntries:  4,
		Summary:       "=== ON-CALL HOLIDAY CONFLICT CHECK ===",
		StartedAt:     time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	second := CheckRun{
		ID:        "run-2",
		Trigger:   "slash",
		StartedAt: time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC),
	}
	if err := InsertCheckRun(db, first); err != nil {
		t.Fatalf("InsertCheckRun failed: %v", err)
	}
	if err := InsertCheckRun(db, second); err != nil {
		t.Fatalf("InsertCheckRun failed: %v", err)
	}

	runs, err := RecentCheckRuns(db, 10)
	if err != nil {
		t.Fatalf("RecentCheckRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first.
	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
	if !runs[1].HasConflicts || runs[1].ConflictCount != 3 || runs[1].PeopleChecked != 2 {
		t.Fatalf("round trip lost fields: %+v", runs[1])
	}

	limited, err := RecentCheckRuns(db, 1)
	if err != nil {
		t.Fatalf("RecentCheckRuns failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-2" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestWebhookEventRoundTrip(t *testing.T) {
	db := testDB(t)

	payload := []byte(`{"event_type":"incident.created","incident":{"id":"01ABC"}}`)
	if err := InsertWebhookEvent(db, "incident.created", "01ABC", "Database down", payload); err != nil {
		t.Fatalf("InsertWebhookEvent failed: %v", err)
	}
	if err := InsertWebhookEvent(db, "incident.updated", "01ABC", "Database down", payload); err != nil {
		t.Fatalf("InsertWebhookEvent failed: %v", err)
	}

	events, err := RecentWebhookEvents(db, 10)
	if err != nil {
		t.Fatalf("RecentWebhookEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "incident.updated" {
		t.Fatalf("expected newest first, got %s", events[0].EventType)
	}
	if events[1].Payload != string(payload) {
		t.Fatalf("payload lost: %q", events[1].Payload)
	}
}

func TestWebhookRegistrationLifecycle(t *testing.T) {
	db := testDB(t)

	if err := SaveWebhookRegistration(db, "wh-1", "https://bot.example.com/webhook/incidentio", "incident.created"); err != nil {
		t.Fatalf("SaveWebhookRegistration failed: %v", err)
	}
	// Saving the same id again replaces rather than duplicating.
	if err := SaveWebhookRegistration(db, "wh-1", "https://bot.example.com/webhook/incidentio", "incident.created"); err != nil {
		t.Fatalf("SaveWebhookRegistration failed: %v", err)
	}

	regs, err := ListWebhookRegistrations(db)
	if err != nil {
		t.Fatalf("ListWebhookRegistrations failed: %v", err)
	}
	if len(regs) != 1 || regs[0].WebhookID != "wh-1" {
		t.Fatalf("unexpected registrations: %+v", regs)
	}

	if err := DeleteWebhookRegistration(db, "wh-1"); err != nil {
		t.Fatalf("DeleteWebhookRegistration failed: %v", err)
	}
	regs, err = ListWebhookRegistrations(db)
	if err != nil {
		t.Fatalf("ListWebhookRegistrations failed: %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("expected empty registrations, got %+v", regs)
	}
}
