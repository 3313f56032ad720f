package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS check_runs (
		id             TEXT PRIMARY KEY,
		trigger        TEXT NOT NULL,
		has_conflicts  INTEGER NOT NULL DEFAULT 0,
		conflict_count INTEGER NOT NULL DEFAULT 0,
		people_checked INTEGER NOT NULL DEFAULT 0,
		total_bookings INTEGER NOT NULL DEFAULT 0,
		total_entries  INTEGER NOT NULL DEFAULT 0,
		summary        TEXT DEFAULT '',
		started_at     DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_check_runs_started_at ON check_runs(started_at);

	CREATE TABLE IF NOT EXISTS webhook_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type    TEXT NOT NULL,
		incident_id   TEXT DEFAULT '',
		incident_name TEXT DEFAULT '',
		payload       TEXT DEFAULT '',
		received_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_webhook_events_received_at ON webhook_events(received_at);

	CREATE TABLE IF NOT EXISTS webhook_registrations (
		webhook_id  TEXT PRIMARY KEY,
		webhook_url TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return db, nil
}

type CheckRun struct {
	ID            string
	Trigger       string // "schedule", "slash", or "manual"
	HasConflicts  bool
	ConflictCount int
	PeopleChecked int
	TotalBookings int
	TotalEntries  int
	Summary       string
	StartedAt     time.Time
}

func InsertCheckRun(db *sql.DB, run CheckRun) error {
	_, err := db.Exec(
		`INSERT INTO check_runs (id, trigger, has_conflicts, conflict_count, people_checked, total_bookings, total_entries, summary, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.HasConflicts, run.ConflictCount, run.PeopleChecked,
		run.TotalBookings, run.TotalEntries, run.Summary, run.StartedAt,
	)
	return err
}

func RecentCheckRuns(db *sql.DB, limit int) ([]CheckRun, error) {
	rows, err := db.Query(
		`SELECT id, trigger, has_conflicts, conflict_count, people_checked, total_bookings, total_entries, summary, started_at
		 FROM check_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CheckRun
	for rows.Next() {
		var run CheckRun
		if err := rows.Scan(&run.ID, &run.Trigger, &run.HasConflicts, &run.ConflictCount,
			&run.PeopleChecked, &run.TotalBookings, &run.TotalEntries, &run.Summary, &run.StartedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type StoredWebhookEvent struct {
	ID           int64
	EventType    string
	IncidentID   string
	IncidentName string
	Payload      string
	ReceivedAt   time.Time
}

func InsertWebhookEvent(db *sql.DB, eventType, incidentID, incidentName string, payload []byte) error {
	_, err := db.Exec(
		`INSERT INTO webhook_events (event_type, incident_id, incident_name, payload) VALUES (?, ?, ?, ?)`,
		eventType, incidentID, incidentName, string(payload),
	)
	return err
}

func RecentWebhookEvents(db *sql.DB, limit int) ([]StoredWebhookEvent, error) {
	rows, err := db.Query(
		`SELECT id, event_type, incident_id, incident_name, payload, received_at
		 FROM webhook_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StoredWebhookEvent
	for rows.Next() {
		var ev StoredWebhookEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.IncidentID, &ev.IncidentName, &ev.Payload, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func SaveWebhookRegistration(db *sql.DB, webhookID, webhookURL, eventType string) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO webhook_registrations (webhook_id, webhook_url, event_type) VALUES (?, ?, ?)`,
		webhookID, webhookURL, eventType,
	)
	return err
}

type StoredWebhookRegistration struct {
	WebhookID  string
	WebhookURL string
	EventType  string
}

func ListWebhookRegistrations(db *sql.DB) ([]StoredWebhookRegistration, error) {
	rows, err := db.Query(`SELECT webhook_id, webhook_url, event_type FROM webhook_registrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []StoredWebhookRegistration
	for rows.Next() {
		var reg StoredWebhookRegistration
		if err := rows.Scan(&reg.WebhookID, &reg.WebhookURL, &reg.EventType); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func DeleteWebhookRegistration(db *sql.DB, webhookID string) error {
	_, err := db.Exec(`DELETE FROM webhook_registrations WHERE webhook_id = ?`, webhookID)
	return err
}
