package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jikku/phishsim/internal/config"
	"github.com/jikku/phishsim/internal/models"
)

// Priorities understood by ntfy
const (
	PriorityHigh    = 4
	PriorityDefault = 3
	PriorityLow     = 2
)

// Client publishes simulation events to an ntfy topic
type Client struct {
	baseURL     string
	topic       string
	notifyOpens bool
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a client from the ntfy config section
func New(cfg config.NtfyConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		topic:       cfg.Topic,
		notifyOpens: cfg.NotifyOpens,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type payload struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags"`
	Priority int      `json:"priority"`
}

// Notify publishes ev. Opens are skipped unless notify_opens is set.
// Captured passwords are never included in the message.
func (c *Client) Notify(ctx context.Context, ev models.Event) error {
	if c.topic == "" {
		return nil
	}

	var p payload
	switch ev.Kind {
	case models.KindCredentials:
		p = payload{
			Title:    "Credentials submitted",
			Message:  fmt.Sprintf("Username: %s - IP: %s - %s", ev.Username, ev.SourceIP, ev.FormattedTime()),
			Tags:     []string{"phishsim", "credentials"},
			Priority: PriorityHigh,
		}
	case models.KindOpen:
		if !c.notifyOpens {
			return nil
		}
		p = payload{
			Title:    "Email opened",
			Message:  fmt.Sprintf("Recipient ID: %s - IP: %s - %s", ev.RecipientID, ev.SourceIP, ev.FormattedTime()),
			Tags:     []string{"phishsim", "open"},
			Priority: PriorityLow,
		}
	default:
		return nil
	}
	p.Topic = c.topic

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	// ntfy accepts JSON publishes on the root URL with the topic in the body
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.String("kind", string(ev.Kind)), zap.String("title", p.Title))
	return nil
}
