package capi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SergeiKhy/lead-attribution/internal/config"
)

// Имена стандартных событий Conversions API.
const (
	EventPageView = "PageView"
	EventContact  = "Contact"
)

// Event — одно серверное событие для пикселя.
type Event struct {
	PixelID     string
	AccessToken string
	EventName   string
	EventTime   time.Time
	SourceURL   string
	ClientIP    string
	UserAgent   string
	FBClid      string
	Phone       string
}

type Client interface {
	Send(ctx context.Context, event Event) error
}

type client struct {
	endpoint string
	http     *http.Client
}

func NewClient(cfg config.ConversionsConfig) Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://graph.facebook.com/v18.0"
	}

	return &client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type eventPayload struct {
	Data []eventData `json:"data"`
}

type eventData struct {
	EventName      string   `json:"event_name"`
	EventTime      int64    `json:"event_time"`
	ActionSource   string   `json:"action_source"`
	EventSourceURL string   `json:"event_source_url,omitempty"`
	UserData       userData `json:"user_data"`
}

type userData struct {
	ClientIP  string   `json:"client_ip_address,omitempty"`
	UserAgent string   `json:"client_user_agent,omitempty"`
	FBC       string   `json:"fbc,omitempty"`
	Phones    []string `json:"ph,omitempty"`
}

func (c *client) Send(ctx context.Context, event Event) error {
	if event.PixelID == "" || event.AccessToken == "" {
		return fmt.Errorf("conversions api credentials missing")
	}

	data := eventData{
		EventName:      event.EventName,
		EventTime:      event.EventTime.Unix(),
		ActionSource:   "website",
		EventSourceURL: event.SourceURL,
		UserData: userData{
			ClientIP:  event.ClientIP,
			UserAgent: event.UserAgent,
		},
	}

	if event.FBClid != "" {
		data.UserData.FBC = fmt.Sprintf("fb.1.%d.%s", event.EventTime.UnixMilli(), event.FBClid)
	}
	if event.Phone != "" {
		data.UserData.Phones = []string{hashValue(event.Phone)}
	}

	body, err := json.Marshal(eventPayload{Data: []eventData{data}})
	if err != nil {
		return fmt.Errorf("failed to marshal conversions payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/events?access_token=%s", c.endpoint, event.PixelID, event.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build conversions request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("conversions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("conversions api responded with status %d", resp.StatusCode)
	}

	return nil
}

// Персональные данные уходят только в хэшированном виде.
func hashValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
