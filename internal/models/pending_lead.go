package models

import (
	"time"
)

// PlaceholderPhone — сентинел "телефон ещё не известен" в заявках с формы.
const PlaceholderPhone = "PENDING_CONTACT"

// Статусы ожидающей заявки. Переход pending -> converted терминален.
const (
	PendingStatusPending   = "pending"
	PendingStatusConverted = "converted"
)

// PendingLead — предварительная заявка, созданная формой захвата до того,
// как появилось первое WhatsApp-сообщение.
type PendingLead struct {
	ID           string         `json:"id"`
	TrackingID   string         `json:"tracking_id,omitempty"`
	CampaignID   *string        `json:"campaign_id,omitempty"`
	CampaignName string         `json:"campaign_name,omitempty"`
	Name         string         `json:"name"`
	Phone        string         `json:"phone"`
	UTMSource    string         `json:"utm_source,omitempty"`
	UTMMedium    string         `json:"utm_medium,omitempty"`
	UTMCampaign  string         `json:"utm_campaign,omitempty"`
	UTMContent   string         `json:"utm_content,omitempty"`
	UTMTerm      string         `json:"utm_term,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// UTM возвращает UTM-набор заявки.
func (p *PendingLead) UTM() UTMSet {
	return UTMSet{
		Source:   p.UTMSource,
		Medium:   p.UTMMedium,
		Campaign: p.UTMCampaign,
		Content:  p.UTMContent,
		Term:     p.UTMTerm,
	}
}
