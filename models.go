package main

// JSON:API payload returned by the absence tracker's bookings endpoint.
type BookingsPayload struct {
	Data []Booking `json:"data"`
}

type Booking struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	Attributes    BookingAttributes    `json:"attributes"`
	Relationships BookingRelationships `json:"relationships"`
}

type BookingAttributes struct {
	StartedOn string `json:"started_on"` // calendar date, "2006-01-02"
	EndedOn   string `json:"ended_on"`   // calendar date, "2006-01-02"
	Note      string `json:"note"`
	Approved  bool   `json:"approved"`
	Rejected  bool   `json:"rejected"`
	Canceled  bool   `json:"canceled"`
}

type BookingRelationships struct {
	Person RelationshipRef `json:"person"`
}

type RelationshipRef struct {
	Data *ResourceID `json:"data"`
}

type ResourceID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type PeoplePayload struct {
	Data []Person `json:"data"`
}

type Person struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Attributes PersonAttributes `json:"attributes"`
}

type PersonAttributes struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SchedulePayload is the shape of the incident.io schedule entries response.
// Older exports carried a bare top-level "scheduled" list instead of the
// nested schedule_entries object; both are accepted.
type SchedulePayload struct {
	ScheduleEntries *ScheduleEntrySet `json:"schedule_entries,omitempty"`
	Scheduled       []ScheduleEntry   `json:"scheduled,omitempty"`
}

type ScheduleEntrySet struct {
	Final     []ScheduleEntry `json:"final"`
	Scheduled []ScheduleEntry `json:"scheduled"`
}

type ScheduleEntry struct {
	RotationID  string       `json:"rotation_id"`
	User        ScheduleUser `json:"user"`
	StartAt     string       `json:"start_at"` // RFC 3339 timestamp
	EndAt       string       `json:"end_at"`   // RFC 3339 timestamp
	Fingerprint string       `json:"fingerprint"`
}

type ScheduleUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	SlackUserID string `json:"slack_user_id"`
	Role        string `json:"role"`
}

// Conflict links one on-call shift to the first active booking that overlaps it.
type Conflict struct {
	Date          string `json:"date"`
	PersonName    string `json:"person_name"`
	PersonEmail   string `json:"person_email"`
	SlackUserID   string `json:"slack_user_id"`
	BookingStart  string `json:"booking_start"`
	BookingEnd    string `json:"booking_end"`
	ScheduleStart string `json:"schedule_start"`
	ScheduleEnd   string `json:"schedule_end"`
	BookingNote   string `json:"booking_note"`
	RotationID    string `json:"rotation_id"`
}

type OnCallPerson struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Shift        string `json:"shift"`
	HasConflict  bool   `json:"has_conflict"`
	HolidayCount int    `json:"holiday_count"`
}

type DailySummary struct {
	Date          string         `json:"date"`
	OnCallCount   int            `json:"on_call_count"`
	ConflictCount int            `json:"conflict_count"`
	OnCallPeople  []OnCallPerson `json:"on_call_people"`
	Conflicts     []string       `json:"conflicts"`
}

type ConflictReport struct {
	Summary              string         `json:"summary"`
	HasConflicts         bool           `json:"has_conflicts"`
	ConflictCount        int            `json:"conflict_count"`
	TotalPeopleChecked   int            `json:"total_people_checked"`
	TotalBookings        int            `json:"total_bookings"`
	TotalScheduleEntries int            `json:"total_schedule_entries"`
	DailySummaries       []DailySummary `json:"daily_summaries"`
	Conflicts            []Conflict     `json:"conflicts"`
}
