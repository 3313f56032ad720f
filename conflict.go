package main

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// selectScheduleEntries picks exactly one entry list: final entries include
// manual overrides so they win, the scheduled projection is next, and a bare
// top-level scheduled list is the last fallback. Lists are never merged.
func selectScheduleEntries(payload SchedulePayload) []ScheduleEntry {
	if payload.ScheduleEntries != nil {
		if len(payload.ScheduleEntries.Final) > 0 {
			return payload.ScheduleEntries.Final
		}
		if len(payload.ScheduleEntries.Scheduled) > 0 {
			return payload.ScheduleEntries.Scheduled
		}
	}
	return payload.Scheduled
}

// A booking participates in conflict checks only while approved and neither
// rejected nor canceled.
func bookingActive(b Booking) bool {
	return b.Attributes.Approved && !b.Attributes.Rejected && !b.Attributes.Canceled
}

// parseWhen accepts a bare calendar date (anchored at midnight UTC) or a full
// RFC 3339 timestamp.
func parseWhen(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// rangesOverlap treats both intervals as closed: a booking ending the day a
// shift starts still counts. Booking boundaries are bare dates while shift
// boundaries are timestamps; they are compared directly without normalizing
// granularity, which is load-bearing for which shifts get flagged.
func rangesOverlap(start1, end1, start2, end2 string) bool {
	s1, ok1 := parseWhen(start1)
	e1, ok2 := parseWhen(end1)
	s2, ok3 := parseWhen(start2)
	e2, ok4 := parseWhen(end2)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return !s1.After(e2) && !s2.After(e1)
}

// entryDay returns the UTC calendar date of a shift's start. A shift spanning
// midnight is attributed only to its start day.
func entryDay(startAt string) (string, bool) {
	t, ok := parseWhen(startAt)
	if !ok {
		return "", false
	}
	return t.UTC().Format("2006-01-02"), true
}

func formatShiftTime(s string) string {
	t, ok := parseWhen(s)
	if !ok {
		return s
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// DetectConflicts reports on-call shifts that overlap an approved absence.
// It is a total function: malformed or missing fields degrade to empty
// sequences and the result is always a well-formed (possibly sparse) report.
func DetectConflicts(bookingsPayload BookingsPayload, peoplePayload PeoplePayload, schedulePayload SchedulePayload) ConflictReport {
	bookings := bookingsPayload.Data
	people := peoplePayload.Data
	entries := selectScheduleEntries(schedulePayload)

	// People keyed by lower-cased email; last write wins on duplicates.
	peopleByEmail := make(map[string]Person)
	for _, person := range people {
		if email := strings.ToLower(person.Attributes.Email); email != "" {
			peopleByEmail[email] = person
		}
	}

	// Active bookings grouped by the person the booking belongs to. Booking
	// person ids and schedule user ids are independent identifier spaces,
	// bridged only through the email index above.
	bookingsByPersonID := make(map[string][]Booking)
	for _, booking := range bookings {
		if !bookingActive(booking) {
			continue
		}
		ref := booking.Relationships.Person.Data
		if ref == nil || ref.ID == "" {
			continue
		}
		bookingsByPersonID[ref.ID] = append(bookingsByPersonID[ref.ID], booking)
	}

	scheduleByDate := make(map[string][]ScheduleEntry)
	for _, entry := range entries {
		day, ok := entryDay(entry.StartAt)
		if !ok {
			continue
		}
		scheduleByDate[day] = append(scheduleByDate[day], entry)
	}
	dates := make([]string, 0, len(scheduleByDate))
	for date := range scheduleByDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var conflicts []Conflict
	var dailySummaries []DailySummary
	checkedPeople := make(map[string]struct{})

	for _, date := range dates {
		var dayConflicts []string
		var onCallPeople []OnCallPerson

		for _, entry := range scheduleByDate[date] {
			email := strings.ToLower(entry.User.Email)
			if email == "" {
				continue
			}
			checkedPeople[entry.User.Name] = struct{}{}

			var personBookings []Booking
			if person, ok := peopleByEmail[email]; ok {
				personBookings = bookingsByPersonID[person.ID]
			}

			// First overlapping booking wins; the rest are not checked, but
			// the count below still reflects all of the person's active
			// bookings.
			hasConflict := false
			for _, booking := range personBookings {
				if !rangesOverlap(booking.Attributes.StartedOn, booking.Attributes.EndedOn, entry.StartAt, entry.EndAt) {
					continue
				}
				note := booking.Attributes.Note
				if note == "" {
					note = "No note"
				}
				conflicts = append(conflicts, Conflict{
					Date:          date,
					PersonName:    entry.User.Name,
					PersonEmail:   entry.User.Email,
					SlackUserID:   entry.User.SlackUserID,
					BookingStart:  booking.Attributes.StartedOn,
					BookingEnd:    booking.Attributes.EndedOn,
					ScheduleStart: entry.StartAt,
					ScheduleEnd:   entry.EndAt,
					BookingNote:   note,
					RotationID:    entry.RotationID,
				})
				dayConflicts = append(dayConflicts, entry.User.Name)
				hasConflict = true
				break
			}

			onCallPeople = append(onCallPeople, OnCallPerson{
				Name:         entry.User.Name,
				Email:        entry.User.Email,
				Shift:        formatShiftTime(entry.StartAt) + " - " + formatShiftTime(entry.EndAt),
				HasConflict:  hasConflict,
				HolidayCount: len(personBookings),
			})
		}

		dailySummaries = append(dailySummaries, DailySummary{
			Date:          date,
			OnCallCount:   len(onCallPeople),
			ConflictCount: len(dayConflicts),
			OnCallPeople:  onCallPeople,
			Conflicts:     dayConflicts,
		})
	}

	report := ConflictReport{
		HasConflicts:         len(conflicts) > 0,
		ConflictCount:        len(conflicts),
		TotalPeopleChecked:   len(checkedPeople),
		TotalBookings:        len(bookings),
		TotalScheduleEntries: len(entries),
		DailySummaries:       dailySummaries,
		Conflicts:            conflicts,
	}
	report.Summary = renderConflictSummary(report)
	return report
}

// renderConflictSummary produces the report text consumed downstream. The
// layout (headers, status markers, blank-line placement) is a delivery
// contract; keep it stable.
func renderConflictSummary(r ConflictReport) string {
	lines := []string{
		"=== ON-CALL HOLIDAY CONFLICT CHECK ===",
		"",
		"📊 Summary:",
		fmt.Sprintf("- Total people checked: %d", r.TotalPeopleChecked),
		fmt.Sprintf("- Total bookings (holidays): %d", r.TotalBookings),
		fmt.Sprintf("- Total schedule entries: %d", r.TotalScheduleEntries),
		fmt.Sprintf("- Days with on-call shifts: %d", len(r.DailySummaries)),
		fmt.Sprintf("- Conflicts found: %d", r.ConflictCount),
		"",
		"📅 Daily Breakdown:",
	}

	for _, day := range r.DailySummaries {
		lines = append(lines, fmt.Sprintf("\n%s:", day.Date))
		lines = append(lines, fmt.Sprintf("  On-call: %d person(s)", day.OnCallCount))
		for _, person := range day.OnCallPeople {
			status := "✅ OK"
			if person.HasConflict {
				status = "⚠️ CONFLICT"
			}
			lines = append(lines, fmt.Sprintf("    - %s (%s) %s", person.Name, person.Shift, status))
			if person.HolidayCount > 0 {
				lines = append(lines, fmt.Sprintf("      Has %d holiday booking(s)", person.HolidayCount))
			}
		}
	}

	if len(r.Conflicts) > 0 {
		lines = append(lines, "\n⚠️ CONFLICTS DETECTED:")
		for i, c := range r.Conflicts {
			lines = append(lines, fmt.Sprintf("\n%d. %s (%s)", i+1, c.PersonName, c.PersonEmail))
			lines = append(lines, fmt.Sprintf("   Holiday: %s to %s", c.BookingStart, c.BookingEnd))
			lines = append(lines, fmt.Sprintf("   On-call: %s to %s", formatShiftTime(c.ScheduleStart), formatShiftTime(c.ScheduleEnd)))
			lines = append(lines, fmt.Sprintf("   Note: %s", c.BookingNote))
		}
	} else {
		lines = append(lines, "\n✅ No conflicts detected - all on-call schedules are clear!")
	}

	return strings.Join(lines, "\n")
}
