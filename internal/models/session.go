package models

import (
	"time"
)

// UTMSession — персистентная сессия с UTM-метками, записанная веб-фронтендом
// до первого контакта. Только чтение со стороны атрибуции.
type UTMSession struct {
	SessionID   string    `json:"session_id"`
	CampaignID  string    `json:"campaign_id,omitempty"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	UTMContent  string    `json:"utm_content,omitempty"`
	UTMTerm     string    `json:"utm_term,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DeviceData — снимок устройства посетителя, привязанный к телефону.
type DeviceData struct {
	Phone            string `json:"phone"`
	Location         string `json:"location,omitempty"`
	IPAddress        string `json:"ip_address,omitempty"`
	Browser          string `json:"browser,omitempty"`
	OS               string `json:"os,omitempty"`
	DeviceType       string `json:"device_type,omitempty"`
	DeviceModel      string `json:"device_model,omitempty"`
	Country          string `json:"country,omitempty"`
	City             string `json:"city,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	Language         string `json:"language,omitempty"`
}
