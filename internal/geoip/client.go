package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/SergeiKhy/lead-attribution/internal/config"
)

// Location — результат геолокации по IP. Нулевое значение допустимо:
// геоданные необязательны и их отсутствие не блокирует редирект.
type Location struct {
	City    string `json:"city"`
	Region  string `json:"regionName"`
	Country string `json:"country"`
	ISP     string `json:"isp"`
}

type Client interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

type client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.GeoIPConfig) Client {
	return &client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type apiResponse struct {
	Status string `json:"status"`
	Location
}

func (c *client) Lookup(ctx context.Context, ip string) (*Location, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=status,city,regionName,country,isp", c.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geoip request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip responded with status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geoip response: %w", err)
	}

	if body.Status != "success" {
		return nil, fmt.Errorf("geoip lookup failed for %s", ip)
	}

	return &body.Location, nil
}
