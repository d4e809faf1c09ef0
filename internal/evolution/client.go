package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/SergeiKhy/lead-attribution/internal/config"
)

// Client — минимальный клиент Evolution API: нам нужна только
// аватарка контакта при создании лида.
type Client interface {
	FetchProfilePicture(ctx context.Context, instanceName, phone string) (string, error)
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.EvolutionConfig) Client {
	return &client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type profilePictureRequest struct {
	Number string `json:"number"`
}

type profilePictureResponse struct {
	ProfilePictureURL string `json:"profilePictureUrl"`
}

func (c *client) FetchProfilePicture(ctx context.Context, instanceName, phone string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("evolution api not configured")
	}

	body, err := json.Marshal(profilePictureRequest{Number: phone})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/fetchProfilePictureUrl/%s", c.baseURL, url.PathEscape(instanceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile picture request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("evolution api responded with status %d", resp.StatusCode)
	}

	var picture profilePictureResponse
	if err := json.NewDecoder(resp.Body).Decode(&picture); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return picture.ProfilePictureURL, nil
}
