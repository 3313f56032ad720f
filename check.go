package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// CheckResult carries the detector output plus what went wrong on the way in.
type CheckResult struct {
	Report ConflictReport
	RunID  string
	Errors []string
}

// RunConflictCheck fetches the three input payloads, runs the detector, and
// records the run. Schedule fetch failures degrade to fewer entries (logged
// and surfaced in Errors); bookings or people failing is fatal for the run
// since the result would be silently conflict-free.
func RunConflictCheck(ctx context.Context, cfg Config, db *sql.DB, incidentAPI *IncidentIOClient, productiveAPI *ProductiveClient, trigger string) (CheckResult, error) {
	now := time.Now().In(cfg.Location)
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowEnd := windowStart.AddDate(0, 0, cfg.CheckWindowDays)
	log.Printf("conflict check trigger=%s window %s - %s", trigger,
		windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02"))

	bookings, err := productiveAPI.FetchBookings(ctx, windowStart, windowEnd)
	if err != nil {
		return CheckResult{}, fmt.Errorf("fetching bookings: %w", err)
	}
	people, err := productiveAPI.FetchPeople(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("fetching people: %w", err)
	}

	var result CheckResult

	// Each schedule resolves its own final/scheduled priority before the
	// entry lists are combined.
	combined := SchedulePayload{ScheduleEntries: &ScheduleEntrySet{}}
	for _, scheduleID := range cfg.ScheduleIDs {
		payload, err := incidentAPI.ListScheduleEntries(ctx, scheduleID, windowStart, windowEnd)
		if err != nil {
			log.Printf("conflict check schedule=%s error: %v", scheduleID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("schedule %s: %v", scheduleID, err))
			continue
		}
		combined.ScheduleEntries.Final = append(combined.ScheduleEntries.Final, selectScheduleEntries(payload)...)
	}
	if len(cfg.ScheduleIDs) > 0 && len(result.Errors) == len(cfg.ScheduleIDs) {
		return result, fmt.Errorf("all schedule fetches failed: %s", strings.Join(result.Errors, "; "))
	}

	result.Report = DetectConflicts(bookings, people, combined)
	result.RunID = uuid.NewString()

	run := CheckRun{
		ID:            result.RunID,
		Trigger:       trigger,
		HasConflicts:  result.Report.HasConflicts,
		ConflictCount: result.Report.ConflictCount,
		PeopleChecked: result.Report.TotalPeopleChecked,
		TotalBookings: result.Report.TotalBookings,
		TotalEntries:  result.Report.TotalScheduleEntries,
		Summary:       result.Report.Summary,
		StartedAt:     now,
	}
	if err := InsertCheckRun(db, run); err != nil {
		log.Printf("Error storing check run: %v", err)
	}

	checksTotal.WithLabelValues(trigger).Inc()
	conflictsFoundTotal.Add(float64(result.Report.ConflictCount))
	log.Printf("conflict check done conflicts=%d people=%d entries=%d",
		result.Report.ConflictCount, result.Report.TotalPeopleChecked, result.Report.TotalScheduleEntries)

	return result, nil
}

// PostConflictReport posts the rendered summary to the report channel.
func PostConflictReport(api *slack.Client, cfg Config, result CheckResult) error {
	if cfg.ReportChannelID == "" {
		return nil
	}
	msg := "```" + result.Report.Summary + "```"
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	_, _, err := api.PostMessage(cfg.ReportChannelID, slack.MsgOptionText(msg, false))
	return err
}

// NotifyConflictedUsers DMs each person whose shift overlaps an absence.
// People are deduplicated by chat handle so multiple conflicting shifts
// produce one message.
func NotifyConflictedUsers(api *slack.Client, cfg Config, report ConflictReport) {
	if !cfg.NotifyConflicted {
		return
	}

	byUser := make(map[string][]Conflict)
	var order []string
	for _, c := range report.Conflicts {
		if c.SlackUserID == "" {
			continue
		}
		if _, seen := byUser[c.SlackUserID]; !seen {
			order = append(order, c.SlackUserID)
		}
		byUser[c.SlackUserID] = append(byUser[c.SlackUserID], c)
	}

	for _, userID := range order {
		conflicts := byUser[userID]
		var lines []string
		lines = append(lines, "Heads up! You are scheduled on-call during an approved absence:")
		for _, c := range conflicts {
			lines = append(lines, fmt.Sprintf("- %s shift %s - %s overlaps your absence %s to %s (%s)",
				c.Date, formatShiftTime(c.ScheduleStart), formatShiftTime(c.ScheduleEnd),
				c.BookingStart, c.BookingEnd, c.BookingNote))
		}
		lines = append(lines, "Please arrange a swap or an override.")
		msg := strings.Join(lines, "\n")

		channel, _, _, err := api.OpenConversation(&slack.OpenConversationParameters{
			Users: []string{userID},
		})
		if err != nil {
			log.Printf("Error opening DM with %s: %v", userID, err)
			continue
		}
		if _, _, err := api.PostMessage(channel.ID, slack.MsgOptionText(msg, false)); err != nil {
			log.Printf("Error notifying %s: %v", userID, err)
		} else {
			log.Printf("Notified %s about %d conflict(s)", userID, len(conflicts))
		}
	}
}
