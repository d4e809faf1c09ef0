package models

import (
	"time"
)

// Статусы лида. Статус "lead" означает "сообщение получено, ещё не оценён".
const (
	LeadStatusNew       = "new"
	LeadStatusLead      = "lead"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
	LeadStatusCancelled = "cancelled"
)

// Lead — атрибутированный контакт. Не более одного лида на телефон и владельца.
type Lead struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id,omitempty"`
	CampaignID        *string    `json:"campaign_id,omitempty"`
	Campaign          string     `json:"campaign"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Status            string     `json:"status"`
	TrackingID        string     `json:"tracking_id,omitempty"`
	TrackingMethod    string     `json:"tracking_method,omitempty"`
	UTMSource         string     `json:"utm_source,omitempty"`
	UTMMedium         string     `json:"utm_medium,omitempty"`
	UTMCampaign       string     `json:"utm_campaign,omitempty"`
	UTMContent        string     `json:"utm_content,omitempty"`
	UTMTerm           string     `json:"utm_term,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	InitialMessage    string     `json:"initial_message,omitempty"`
	LastMessage       string     `json:"last_message,omitempty"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	ExternalStatus    string     `json:"external_status,omitempty"`
	Location          string     `json:"location,omitempty"`
	IPAddress         string     `json:"ip_address,omitempty"`
	Browser           string     `json:"browser,omitempty"`
	OS                string     `json:"os,omitempty"`
	DeviceType        string     `json:"device_type,omitempty"`
	DeviceModel       string     `json:"device_model,omitempty"`
	Country           string     `json:"country,omitempty"`
	City              string     `json:"city,omitempty"`
	FirstContact      *time.Time `json:"first_contact,omitempty"`
	LastContact       *time.Time `json:"last_contact,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// UTM возвращает UTM-набор лида.
func (l *Lead) UTM() UTMSet {
	return UTMSet{
		Source:   l.UTMSource,
		Medium:   l.UTMMedium,
		Campaign: l.UTMCampaign,
		Content:  l.UTMContent,
		Term:     l.UTMTerm,
	}
}

// SetUTM записывает UTM-набор в поля лида.
func (l *Lead) SetUTM(u UTMSet) {
	l.UTMSource = u.Source
	l.UTMMedium = u.Medium
	l.UTMCampaign = u.Campaign
	l.UTMContent = u.Content
	l.UTMTerm = u.Term
}

// Terminal сообщает, находится ли лид в терминальном статусе.
func (l *Lead) Terminal() bool {
	return l.Status == LeadStatusConverted || l.Status == LeadStatusLost ||
		l.Status == LeadStatusCancelled
}

// LeadMessage — запись истории переписки (append-only).
type LeadMessage struct {
	ID             int64     `json:"id"`
	LeadID         string    `json:"lead_id"`
	Text           string    `json:"text"`
	IsFromMe       bool      `json:"is_from_me"`
	ExternalID     string    `json:"external_id,omitempty"`
	DeliveryStatus string    `json:"delivery_status,omitempty"`
	InstanceName   string    `json:"instance_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
