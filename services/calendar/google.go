package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"nexus/utils"

	"go.uber.org/zap"
)

const (
	externalTimeout   = 5 * time.Second
	defaultCalendarID = "primary"
	eventsBaseURL     = "https://www.googleapis.com/calendar/v3/calendars"
)

// TokenSource returns a user-scoped OAuth access token. Token storage and
// refresh belong to the auth layer outside this engine.
type TokenSource func(ctx context.Context, userID string) (string, error)

// StaticTokenSource serves one fixed token for every user. Suits
// single-tenant deployments where the engine daemon owns one calendar.
func StaticTokenSource(token string) TokenSource {
	return func(context.Context, string) (string, error) {
		return token, nil
	}
}

// GoogleCalendar implements Service against the Calendar v3 REST API with a
// per-user OAuth token.
type GoogleCalendar struct {
	tokens TokenSource
	http   *http.Client
}

func NewGoogleCalendar(tokens TokenSource) *GoogleCalendar {
	return &GoogleCalendar{
		tokens: tokens,
		http:   &http.Client{Timeout: externalTimeout},
	}
}

func (g *GoogleCalendar) IsBusy(ctx context.Context, userID, date, timeOfDay string, durationMin int) (bool, []string, error) {
	start, err := slotStart(date, timeOfDay)
	if err != nil {
		return false, nil, fmt.Errorf("invalid slot: %w", err)
	}
	end := start.Add(time.Duration(durationMin) * time.Minute)

	token, err := g.tokens(ctx, userID)
	if err != nil || token == "" {
		// No calendar access for this user is not a conflict.
		return false, nil, nil
	}

	q := url.Values{}
	q.Set("timeMin", start.Format(time.RFC3339))
	q.Set("timeMax", end.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	reqURL := fmt.Sprintf("%s/%s/events?%s", eventsBaseURL, defaultCalendarID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.http.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("calendar events list failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, nil, fmt.Errorf("calendar events list returned %d", resp.StatusCode)
	}

	var body struct {
		Items []struct {
			Summary string `json:"summary"`
			Status  string `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, nil, fmt.Errorf("calendar events decode failed: %w", err)
	}

	var conflicts []string
	for _, item := range body.Items {
		if item.Status != "confirmed" {
			continue
		}
		summary := item.Summary
		if summary == "" {
			summary = "Event"
		}
		conflicts = append(conflicts, summary)
	}
	return len(conflicts) > 0, conflicts, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	start, err := slotStart(req.Date, req.Time)
	if err != nil {
		return "", fmt.Errorf("invalid slot: %w", err)
	}
	end := start.Add(time.Duration(req.DurationMin) * time.Minute)

	token, err := g.tokens(ctx, req.UserID)
	if err != nil {
		return "", fmt.Errorf("no calendar token for user: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("no calendar token for user %s", req.UserID)
	}

	payload := map[string]interface{}{
		"summary":     req.Summary,
		"description": req.Description,
		"start":       map[string]string{"dateTime": start.Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": end.Format(time.RFC3339)},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/%s/events", eventsBaseURL, defaultCalendarID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calendar event insert failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("calendar event insert returned %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("calendar event decode failed: %w", err)
	}
	utils.GetLogger().Info("calendar event created",
		zap.String("userId", req.UserID), zap.String("eventId", created.ID))
	return created.ID, nil
}

func slotStart(date, timeOfDay string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04", date+" "+timeOfDay)
}
