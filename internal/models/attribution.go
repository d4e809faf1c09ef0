package models

// UTMSet — полный набор UTM-меток.
type UTMSet struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Content  string `json:"utm_content,omitempty"`
	Term     string `json:"utm_term,omitempty"`
}

// Merge возвращает набор, в котором пустые поля заполнены значениями из other.
func (u UTMSet) Merge(other UTMSet) UTMSet {
	if u.Source == "" {
		u.Source = other.Source
	}
	if u.Medium == "" {
		u.Medium = other.Medium
	}
	if u.Campaign == "" {
		u.Campaign = other.Campaign
	}
	if u.Content == "" {
		u.Content = other.Content
	}
	if u.Term == "" {
		u.Term = other.Term
	}
	return u
}

// Методы атрибуции в порядке убывания достоверности.
const (
	TrackingMethodToken    = "token_correlation"
	TrackingMethodRecent   = "recent_click"
	TrackingMethodCampaign = "campaign_whatsapp"
	TrackingMethodDirect   = "direct"
)

// Attribution — результат разрешения атрибуции для входящего контакта:
// кампания, UTM-набор, ответственный владелец и метод корреляции.
type Attribution struct {
	Campaign       *Campaign `json:"campaign,omitempty"`
	Click          *Click    `json:"click,omitempty"`
	UTM            UTMSet    `json:"utm"`
	TrackingID     string    `json:"tracking_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	TrackingMethod string    `json:"tracking_method"`
}

// CampaignID возвращает идентификатор кампании, если она определена.
func (a *Attribution) CampaignID() *string {
	if a.Campaign == nil {
		return nil
	}
	id := a.Campaign.ID
	return &id
}

// CampaignName возвращает имя кампании либо метку органического трафика.
func (a *Attribution) CampaignName() string {
	if a.Campaign != nil {
		return a.Campaign.Name
	}
	return "WhatsApp Organic"
}
