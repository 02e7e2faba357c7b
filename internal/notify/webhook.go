package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"calwidget/internal/model"
)

// WebhookNotifier delivers new-event notifications as one JSON POST per
// event to a configured endpoint (typically the dashboard host's
// notification API). Delivery is best-effort; the engine logs and ignores
// failures.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhook builds a notifier for the given endpoint URL.
func NewWebhook(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// payload is the wire shape of one notification.
type payload struct {
	Key    string    `json:"key"`
	Title  string    `json:"title"`
	Source string    `json:"source"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
	Link   string    `json:"link,omitempty"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, ev model.NormalizedEvent) error {
	body, err := json.Marshal(payload{
		Key:    ev.Key,
		Title:  ev.Title,
		Source: ev.SourceID,
		Start:  ev.Start,
		End:    ev.End,
		AllDay: ev.AllDay,
		Link:   ev.Link,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New("notify webhook: " + resp.Status)
	}
	return nil
}
