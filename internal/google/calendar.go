package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/config"
)

// EventDetails is the result of a successful event creation.
type EventDetails struct {
	JoinURL         string
	MeetingID       string
	CalendarEventID string
}

// EventStatus reports whether a previously created event still backs a
// usable meeting link.
type EventStatus struct {
	Valid   bool
	JoinURL string
}

// CalendarClient creates and inspects calendar events with Meet
// conferencing. Every call is authenticated with the refresh token of one
// tutor, never a shared credential.
type CalendarClient struct {
	cfg        config.GoogleConfig
	oauth      *OAuthClient
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewCalendarClient creates a calendar client. The rate limiter keeps a
// burst of provisioning requests under the per-project Calendar API quota.
func NewCalendarClient(cfg config.GoogleConfig, oauthClient *OAuthClient) *CalendarClient {
	return &CalendarClient{
		cfg:        cfg,
		oauth:      oauthClient,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

type eventDateTime struct {
	DateTime string `json:"dateTime"`
}

type conferenceEntryPoint struct {
	URI string `json:"uri"`
}

type eventPayload struct {
	Summary        string         `json:"summary"`
	Start          eventDateTime  `json:"start"`
	End            eventDateTime  `json:"end"`
	ConferenceData conferenceData `json:"conferenceData"`
}

type conferenceData struct {
	CreateRequest *conferenceCreateRequest `json:"createRequest,omitempty"`
	ConferenceID  string                   `json:"conferenceId,omitempty"`
	EntryPoints   []conferenceEntryPoint   `json:"entryPoints,omitempty"`
}

type conferenceCreateRequest struct {
	RequestID             string            `json:"requestId"`
	ConferenceSolutionKey map[string]string `json:"conferenceSolutionKey"`
}

type eventResponse struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	HangoutLink    string          `json:"hangoutLink"`
	ConferenceData *conferenceData `json:"conferenceData"`
}

func (e *eventResponse) joinURL() string {
	if e.HangoutLink != "" {
		return e.HangoutLink
	}
	if e.ConferenceData != nil && len(e.ConferenceData.EntryPoints) > 0 {
		return e.ConferenceData.EntryPoints[0].URI
	}
	return ""
}

func (e *eventResponse) meetingID() string {
	if e.ConferenceData != nil && e.ConferenceData.ConferenceID != "" {
		return e.ConferenceData.ConferenceID
	}
	return e.ID
}

// CreateEventWithConferencing creates a calendar event with a Meet room
// attached. A fresh requestId is generated per call, so a caller-initiated
// retry of a failed request cannot produce a duplicate conference.
// Fails AUTH_FAILED before any network call when no refresh token is given.
func (c *CalendarClient) CreateEventWithConferencing(ctx context.Context, refreshToken, title string, start, end time.Time) (*EventDetails, error) {
	if refreshToken == "" {
		return nil, apperrors.NotConnected()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, MapError(err)
	}

	payload := eventPayload{
		Summary: title,
		Start:   eventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     eventDateTime{DateTime: end.Format(time.RFC3339)},
		ConferenceData: conferenceData{
			CreateRequest: &conferenceCreateRequest{
				RequestID:             uuid.NewString(),
				ConferenceSolutionKey: map[string]string{"type": "hangoutsMeet"},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, MapError(err)
	}

	endpoint := c.eventsURL() + "?conferenceDataVersion=1"
	var event eventResponse
	if err := c.doAuthenticated(ctx, refreshToken, http.MethodPost, endpoint, body, &event); err != nil {
		return nil, err
	}

	details := &EventDetails{
		JoinURL:         event.joinURL(),
		MeetingID:       event.meetingID(),
		CalendarEventID: event.ID,
	}
	if details.JoinURL == "" || details.MeetingID == "" || details.CalendarEventID == "" {
		return nil, apperrors.New(apperrors.CodeMeetingLinkFailed, http.StatusInternalServerError,
			"Failed to generate meeting link")
	}
	return details, nil
}

// GetEventStatus checks whether the event behind a cached link is still
// live. A missing token, missing event (404/410), cancelled event or an
// event without a join URL all report invalid; other failures are mapped
// and propagated since they signal infrastructure trouble, not staleness.
func (c *CalendarClient) GetEventStatus(ctx context.Context, refreshToken, calendarEventID string) (*EventStatus, error) {
	if refreshToken == "" {
		return &EventStatus{Valid: false}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, MapError(err)
	}

	endpoint := c.eventsURL() + "/" + url.PathEscape(calendarEventID)
	var event eventResponse
	if err := c.doAuthenticated(ctx, refreshToken, http.MethodGet, endpoint, nil, &event); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusGone) {
			return &EventStatus{Valid: false}, nil
		}
		return nil, err
	}

	if event.Status == "cancelled" {
		return &EventStatus{Valid: false}, nil
	}
	joinURL := event.joinURL()
	if joinURL == "" {
		return &EventStatus{Valid: false}, nil
	}
	return &EventStatus{Valid: true, JoinURL: joinURL}, nil
}

func (c *CalendarClient) eventsURL() string {
	return c.cfg.CalendarBaseURL + "/calendars/" + url.PathEscape(c.cfg.CalendarID) + "/events"
}

// doAuthenticated performs a calendar request authenticated through the
// oauth2 transport, which exchanges the refresh token for an access token
// as needed. All failures leave here already classified.
func (c *CalendarClient) doAuthenticated(ctx context.Context, refreshToken, method, endpoint string, body []byte, out interface{}) error {
	conf, err := c.oauth.Config()
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return MapError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return MapError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return MapError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return MapError(newAPIError(resp.StatusCode, respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return MapError(err)
		}
	}
	return nil
}
