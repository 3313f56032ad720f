package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const incidentListPageSize = 100

// IncidentIOClient is a typed client for the incident.io REST API. All calls
// share one rate limiter tuned below the documented API limits.
type IncidentIOClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
}

func NewIncidentIOClient(cfg Config) *IncidentIOClient {
	return &IncidentIOClient{
		baseURL: strings.TrimRight(cfg.IncidentIOBaseURL, "/"),
		apiKey:  cfg.IncidentIOAPIKey,
		httpc:   externalHTTPClient,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (c *IncidentIOClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	apiURL := c.baseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	upstreamRequestDuration.WithLabelValues("incidentio").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("incident.io API returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// ==========================================
//            Incidents
// ==========================================

type Incident struct {
	ID         string `json:"id"`
	Reference  string `json:"reference"`
	Name       string `json:"name"`
	Summary    string `json:"summary"`
	Visibility string `json:"visibility"`
	Mode       string `json:"mode"`
	CreatedAt  string `json:"created_at"`
}

type incidentListResponse struct {
	Incidents      []Incident `json:"incidents"`
	PaginationMeta struct {
		After string `json:"after"`
	} `json:"pagination_meta"`
}

type incidentResponse struct {
	Incident Incident `json:"incident"`
}

func (c *IncidentIOClient) ListIncidents(ctx context.Context) ([]Incident, error) {
	var all []Incident
	after := ""

	for {
		query := url.Values{}
		query.Set("page_size", fmt.Sprint(incidentListPageSize))
		if after != "" {
			query.Set("after", after)
		}

		var page incidentListResponse
		if err := c.do(ctx, "GET", "/v2/incidents", query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Incidents...)

		if page.PaginationMeta.After == "" || len(page.Incidents) == 0 {
			break
		}
		after = page.PaginationMeta.After
	}

	return all, nil
}

func (c *IncidentIOClient) GetIncident(ctx context.Context, id string) (Incident, error) {
	var resp incidentResponse
	err := c.do(ctx, "GET", "/v2/incidents/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Incident, err
}

type CreateIncidentRequest struct {
	IdempotencyKey   string `json:"idempotency_key"`
	Visibility       string `json:"visibility"`
	Name             string `json:"name,omitempty"`
	Summary          string `json:"summary,omitempty"`
	SeverityID       string `json:"severity_id,omitempty"`
	IncidentStatusID string `json:"incident_status_id,omitempty"`
	IncidentTypeID   string `json:"incident_type_id,omitempty"`
	Mode             string `json:"mode,omitempty"`
}

// CreateIncident fills in an idempotency key when the caller does not supply
// one, so a retried call cannot open a duplicate incident.
func (c *IncidentIOClient) CreateIncident(ctx context.Context, req CreateIncidentRequest) (Incident, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	if req.Visibility == "" {
		req.Visibility = "public"
	}
	var resp incidentResponse
	err := c.do(ctx, "POST", "/v2/incidents", nil, req, &resp)
	return resp.Incident, err
}

type UpdateIncidentRequest struct {
	Name             string `json:"name,omitempty"`
	Summary          string `json:"summary,omitempty"`
	SeverityID       string `json:"severity_id,omitempty"`
	IncidentStatusID string `json:"incident_status_id,omitempty"`
}

func (c *IncidentIOClient) UpdateIncident(ctx context.Context, id string, req UpdateIncidentRequest) (Incident, error) {
	body := map[string]any{"incident": req}
	var resp incidentResponse
	err := c.do(ctx, "POST", "/v2/incidents/"+url.PathEscape(id)+"/actions/edit", nil, body, &resp)
	return resp.Incident, err
}

// ==========================================
//            Severities, statuses, types
// ==========================================

type Severity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Rank        int    `json:"rank"`
}

func (c *IncidentIOClient) ListSeverities(ctx context.Context) ([]Severity, error) {
	var resp struct {
		Severities []Severity `json:"severities"`
	}
	err := c.do(ctx, "GET", "/v1/severities", nil, nil, &resp)
	return resp.Severities, err
}

func (c *IncidentIOClient) GetSeverity(ctx context.Context, id string) (Severity, error) {
	var resp struct {
		Severity Severity `json:"severity"`
	}
	err := c.do(ctx, "GET", "/v1/severities/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Severity, err
}

type IncidentStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (c *IncidentIOClient) ListIncidentStatuses(ctx context.Context) ([]IncidentStatus, error) {
	var resp struct {
		IncidentStatuses []IncidentStatus `json:"incident_statuses"`
	}
	err := c.do(ctx, "GET", "/v1/incident_statuses", nil, nil, &resp)
	return resp.IncidentStatuses, err
}

func (c *IncidentIOClient) GetIncidentStatus(ctx context.Context, id string) (IncidentStatus, error) {
	var resp struct {
		IncidentStatus IncidentStatus `json:"incident_status"`
	}
	err := c.do(ctx, "GET", "/v1/incident_statuses/"+url.PathEscape(id), nil, nil, &resp)
	return resp.IncidentStatus, err
}

type IncidentType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *IncidentIOClient) ListIncidentTypes(ctx context.Context) ([]IncidentType, error) {
	var resp struct {
		IncidentTypes []IncidentType `json:"incident_types"`
	}
	err := c.do(ctx, "GET", "/v1/incident_types", nil, nil, &resp)
	return resp.IncidentTypes, err
}

func (c *IncidentIOClient) GetIncidentType(ctx context.Context, id string) (IncidentType, error) {
	var resp struct {
		IncidentType IncidentType `json:"incident_type"`
	}
	err := c.do(ctx, "GET", "/v1/incident_types/"+url.PathEscape(id), nil, nil, &resp)
	return resp.IncidentType, err
}

// ==========================================
//            Custom fields
// ==========================================

type CustomField struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FieldType   string `json:"field_type"`
}

func (c *IncidentIOClient) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	var resp struct {
		CustomFields []CustomField `json:"custom_fields"`
	}
	err := c.do(ctx, "GET", "/v2/custom_fields", nil, nil, &resp)
	return resp.CustomFields, err
}

func (c *IncidentIOClient) GetCustomField(ctx context.Context, id string) (CustomField, error) {
	var resp struct {
		CustomField CustomField `json:"custom_field"`
	}
	err := c.do(ctx, "GET", "/v2/custom_fields/"+url.PathEscape(id), nil, nil, &resp)
	return resp.CustomField, err
}

// ==========================================
//            Schedules + schedule entries
// ==========================================

type OnCallSchedule struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (c *IncidentIOClient) ListSchedules(ctx context.Context) ([]OnCallSchedule, error) {
	var resp struct {
		Schedules []OnCallSchedule `json:"schedules"`
	}
	err := c.do(ctx, "GET", "/v2/schedules", nil, nil, &resp)
	return resp.Schedules, err
}

func (c *IncidentIOClient) GetSchedule(ctx context.Context, id string) (OnCallSchedule, error) {
	var resp struct {
		Schedule OnCallSchedule `json:"schedule"`
	}
	err := c.do(ctx, "GET", "/v2/schedules/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Schedule, err
}

// ListScheduleEntries returns who is on call for a schedule within a time
// window. The response shape is fed to DetectConflicts unmodified.
func (c *IncidentIOClient) ListScheduleEntries(ctx context.Context, scheduleID string, windowStart, windowEnd time.Time) (SchedulePayload, error) {
	query := url.Values{}
	query.Set("schedule_id", scheduleID)
	if !windowStart.IsZero() {
		query.Set("entry_window_start", windowStart.Format(time.RFC3339))
	}
	if !windowEnd.IsZero() {
		query.Set("entry_window_end", windowEnd.Format(time.RFC3339))
	}

	var payload SchedulePayload
	err := c.do(ctx, "GET", "/v2/schedule_entries", query, nil, &payload)
	return payload, err
}

// ==========================================
//            Escalations, actions, follow-ups
// ==========================================

type Escalation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *IncidentIOClient) ListEscalations(ctx context.Context) ([]Escalation, error) {
	var resp struct {
		Escalations []Escalation `json:"escalations"`
	}
	err := c.do(ctx, "GET", "/v2/escalations", nil, nil, &resp)
	return resp.Escalations, err
}

func (c *IncidentIOClient) GetEscalation(ctx context.Context, id string) (Escalation, error) {
	var resp struct {
		Escalation Escalation `json:"escalation"`
	}
	err := c.do(ctx, "GET", "/v2/escalations/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Escalation, err
}

type IncidentAction struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (c *IncidentIOClient) ListActions(ctx context.Context) ([]IncidentAction, error) {
	var resp struct {
		Actions []IncidentAction `json:"actions"`
	}
	err := c.do(ctx, "GET", "/v2/actions", nil, nil, &resp)
	return resp.Actions, err
}

func (c *IncidentIOClient) GetAction(ctx context.Context, id string) (IncidentAction, error) {
	var resp struct {
		Action IncidentAction `json:"action"`
	}
	err := c.do(ctx, "GET", "/v2/actions/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Action, err
}

type FollowUp struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (c *IncidentIOClient) ListFollowUps(ctx context.Context) ([]FollowUp, error) {
	var resp struct {
		FollowUps []FollowUp `json:"follow_ups"`
	}
	err := c.do(ctx, "GET", "/v2/follow_ups", nil, nil, &resp)
	return resp.FollowUps, err
}

func (c *IncidentIOClient) GetFollowUp(ctx context.Context, id string) (FollowUp, error) {
	var resp struct {
		FollowUp FollowUp `json:"follow_up"`
	}
	err := c.do(ctx, "GET", "/v2/follow_ups/"+url.PathEscape(id), nil, nil, &resp)
	return resp.FollowUp, err
}

// ==========================================
//            Catalog
// ==========================================

type CatalogType struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
}

func (c *IncidentIOClient) ListCatalogTypes(ctx context.Context) ([]CatalogType, error) {
	var resp struct {
		CatalogTypes []CatalogType `json:"catalog_types"`
	}
	err := c.do(ctx, "GET", "/v3/catalog_types", nil, nil, &resp)
	return resp.CatalogTypes, err
}

func (c *IncidentIOClient) GetCatalogType(ctx context.Context, id string) (CatalogType, error) {
	var resp struct {
		CatalogType CatalogType `json:"catalog_type"`
	}
	err := c.do(ctx, "GET", "/v3/catalog_types/"+url.PathEscape(id), nil, nil, &resp)
	return resp.CatalogType, err
}

type CatalogEntry struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

func (c *IncidentIOClient) ListCatalogEntries(ctx context.Context, catalogTypeID string) ([]CatalogEntry, error) {
	query := url.Values{}
	query.Set("catalog_type_id", catalogTypeID)
	var resp struct {
		CatalogEntries []CatalogEntry `json:"catalog_entries"`
	}
	err := c.do(ctx, "GET", "/v3/catalog_entries", query, nil, &resp)
	return resp.CatalogEntries, err
}

func (c *IncidentIOClient) GetCatalogEntry(ctx context.Context, id string) (CatalogEntry, error) {
	var resp struct {
		CatalogEntry CatalogEntry `json:"catalog_entry"`
	}
	err := c.do(ctx, "GET", "/v3/catalog_entries/"+url.PathEscape(id), nil, nil, &resp)
	return resp.CatalogEntry, err
}

// ==========================================
//            Webhooks
// ==========================================

type WebhookRegistration struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
	EventType  string `json:"event_type"`
	Enabled    bool   `json:"enabled"`
}

func (c *IncidentIOClient) ListWebhooks(ctx context.Context) ([]WebhookRegistration, error) {
	var resp struct {
		Webhooks []WebhookRegistration `json:"webhooks"`
	}
	err := c.do(ctx, "GET", "/v2/webhooks", nil, nil, &resp)
	return resp.Webhooks, err
}

func (c *IncidentIOClient) CreateWebhook(ctx context.Context, webhookURL, eventType, name string) (WebhookRegistration, error) {
	body := map[string]any{
		"webhook_url": webhookURL,
		"event_type":  eventType,
		"name":        name,
		"enabled":     true,
	}
	var resp struct {
		Webhook WebhookRegistration `json:"webhook"`
	}
	err := c.do(ctx, "POST", "/v2/webhooks", nil, body, &resp)
	return resp.Webhook, err
}

func (c *IncidentIOClient) DeleteWebhook(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v2/webhooks/"+url.PathEscape(id), nil, nil, nil)
}
