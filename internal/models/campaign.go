package models

import (
	"time"
)

// Campaign — рекламная кампания с настройками WhatsApp-редиректа.
type Campaign struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Name                 string    `json:"name"`
	Active               bool      `json:"active"`
	RedirectType         string    `json:"redirect_type"`
	WhatsAppNumber       string    `json:"whatsapp_number"`
	CustomMessage        string    `json:"custom_message,omitempty"`
	UTMSource            string    `json:"utm_source,omitempty"`
	UTMMedium            string    `json:"utm_medium,omitempty"`
	UTMCampaign          string    `json:"utm_campaign,omitempty"`
	UTMContent           string    `json:"utm_content,omitempty"`
	UTMTerm              string    `json:"utm_term,omitempty"`
	ConversionAPIEnabled bool      `json:"conversion_api_enabled"`
	PixelID              string    `json:"pixel_id,omitempty"`
	AccessToken          string    `json:"-"`
	ConversionKeywords   []string  `json:"conversion_keywords,omitempty"`
	CancellationKeywords []string  `json:"cancellation_keywords,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// UTM возвращает дефолтный UTM-набор кампании.
func (c *Campaign) UTM() UTMSet {
	return UTMSet{
		Source:   c.UTMSource,
		Medium:   c.UTMMedium,
		Campaign: c.UTMCampaign,
		Content:  c.UTMContent,
		Term:     c.UTMTerm,
	}
}

// Channel — зарегистрированный канал (инстанс) мессенджера.
type Channel struct {
	ID           int64     `json:"id"`
	InstanceName string    `json:"instance_name"`
	BaseURL      string    `json:"base_url"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Статусы канала
const (
	ChannelConnected    = "connected"
	ChannelDisconnected = "disconnected"
)
