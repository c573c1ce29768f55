package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukex/changewatch/pkg/models"
)

// WebhookPayload is the JSON body posted for each delivered change.
type WebhookPayload struct {
	EntryID    string            `json:"entry_id"`
	WorkflowID string            `json:"workflow_id"`
	TargetURL  string            `json:"target_url"`
	TargetType models.TargetType `json:"target_type"`
	Summary    string            `json:"summary"`
	Method     string            `json:"method"`
	Recipient  string            `json:"recipient,omitempty"`
	DetectedAt time.Time         `json:"detected_at"`
}

type WebhookSink struct {
	client *http.Client
	url    string
	header http.Header
}

func NewWebhookSink(client *http.Client, url string, header http.Header) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}

	return &WebhookSink{client: client, url: url, header: header}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Notify(ctx context.Context, entry models.ChangeEntry, recipient string) error {
	body, err := json.Marshal(WebhookPayload{
		EntryID:    entry.ID,
		WorkflowID: entry.WorkflowID,
		TargetURL:  entry.Target.URL,
		TargetType: entry.Target.Type,
		Summary:    entry.Summary,
		Method:     entry.Method,
		Recipient:  recipient,
		DetectedAt: entry.DetectedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	for key, values := range s.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	return nil
}
