package models

import (
	"time"
)

// Click — один переход по рекламному редиректу со всеми маркетинговыми параметрами.
// Строка создаётся при редиректе и мутируется ровно один раз — при конверсии.
type Click struct {
	ID                 int64      `json:"id"`
	TrackingID         string     `json:"tracking_id"`
	Token              string     `json:"token"`
	CampaignID         string     `json:"campaign_id"`
	Phone              string     `json:"phone,omitempty"`
	UTMSource          string     `json:"utm_source,omitempty"`
	UTMMedium          string     `json:"utm_medium,omitempty"`
	UTMCampaign        string     `json:"utm_campaign,omitempty"`
	UTMContent         string     `json:"utm_content,omitempty"`
	UTMTerm            string     `json:"utm_term,omitempty"`
	FBClid             string     `json:"fbclid,omitempty"`
	GClid              string     `json:"gclid,omitempty"`
	CTWAClid           string     `json:"ctwa_clid,omitempty"`
	FacebookAdID       string     `json:"facebook_ad_id,omitempty"`
	FacebookAdsetID    string     `json:"facebook_adset_id,omitempty"`
	FacebookCampaignID string     `json:"facebook_campaign_id,omitempty"`
	IPAddress          string     `json:"ip_address,omitempty"`
	UserAgent          string     `json:"user_agent,omitempty"`
	SourceURL          string     `json:"source_url,omitempty"`
	SourceID           string     `json:"source_id,omitempty"`
	City               string     `json:"city,omitempty"`
	Region             string     `json:"region,omitempty"`
	Country            string     `json:"country,omitempty"`
	ISP                string     `json:"isp,omitempty"`
	Converted          bool       `json:"converted"`
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`
	LeadID             *string    `json:"lead_id,omitempty"`
	ClickedAt          time.Time  `json:"clicked_at"`
}

// UTM возвращает UTM-набор клика.
func (c *Click) UTM() UTMSet {
	return UTMSet{
		Source:   c.UTMSource,
		Medium:   c.UTMMedium,
		Campaign: c.UTMCampaign,
		Content:  c.UTMContent,
		Term:     c.UTMTerm,
	}
}
