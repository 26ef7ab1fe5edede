package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrUpstream is returned when the Orbit service rejects or never receives a
// notification. The relay does not retry; resending is the caller's decision.
var ErrUpstream = errors.New("orbit upstream unavailable")

// Message is one user chat message to forward to the Orbit service.
type Message struct {
	ID      string `json:"id"`
	TopicID int64  `json:"topic_id"`
	UserID  int64  `json:"user_id"`
	Text    string `json:"text"`
}

// notification is the wire envelope for the outbound webhook call.
type notification struct {
	Event   string  `json:"event"`
	Message Message `json:"message"`
}

// Client notifies the Orbit service of new user messages. The call is
// fire-and-forget: a 2xx means Orbit accepted the event; the assistant's reply
// arrives later through the inbound webhook, never on this connection.
type Client struct {
	baseURL    string
	notifyPath string
	apiKeyName string
	apiKeyVal  string
	httpClient *http.Client
}

// NewClient creates a relay client for the given Orbit endpoint.
func NewClient(baseURL, notifyPath, apiKeyName, apiKeyVal string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		notifyPath: notifyPath,
		apiKeyName: apiKeyName,
		apiKeyVal:  apiKeyVal,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send delivers a new_message event. Any 2xx from Orbit is acceptance;
// anything else wraps ErrUpstream. No local state is mutated.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(notification{Event: "new_message", Message: msg})
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.notifyPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_key_name", c.apiKeyName)
	req.Header.Set("api_key_val", c.apiKeyVal)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
