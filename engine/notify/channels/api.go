package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// API POSTs a JSON serialization of the notification to target.Endpoint,
// §4.9. 4xx/5xx responses are recorded as failures but never panic.
type API struct {
	Client *http.Client
}

func NewAPI() *API {
	return &API{Client: &http.Client{Timeout: 10 * time.Second}}
}

type apiPayload struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Title           string            `json:"title"`
	Body            string            `json:"body"`
	Source          string            `json:"source"`
	CreatedAt       time.Time         `json:"created_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ProgressCurrent int               `json:"progress_current,omitempty"`
	ProgressTotal   int               `json:"progress_total,omitempty"`
}

func (a *API) Deliver(ctx context.Context, n models.Notification, target models.Channel) error {
	if target.Endpoint == "" {
		return fortitude.New(fortitude.ErrInvalidInput, "api channel requires an endpoint")
	}

	body, err := json.Marshal(apiPayload{
		ID: n.ID, Type: string(n.Type), Title: n.Title, Body: n.Body, Source: n.Source,
		CreatedAt: n.CreatedAt, Metadata: n.Metadata,
		ProgressCurrent: n.ProgressCurrent, ProgressTotal: n.ProgressTotal,
	})
	if err != nil {
		return fortitude.Wrap(fortitude.ErrInvalidInput, err, "marshal notification payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fortitude.Wrap(fortitude.ErrInvalidInput, err, "build api delivery request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return fortitude.Wrap(fortitude.ErrServiceUnavailable, err, "post notification to %s", target.Endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fortitude.New(fortitude.ErrServiceUnavailable, "notification endpoint %s returned status %d", target.Endpoint, resp.StatusCode)
	}
	return nil
}
