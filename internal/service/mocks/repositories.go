package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/lead-attribution/internal/models"
	"github.com/SergeiKhy/lead-attribution/internal/repository"
)

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks []*models.Click
	nextID int64
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{nextID: 1}
}

func (m *MockClickRepository) Create(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	click.ID = m.nextID
	m.nextID++
	m.clicks = append(m.clicks, click)
	return nil
}

func (m *MockClickRepository) GetUnconvertedByToken(ctx context.Context, token string) (*models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.Click
	for _, c := range m.clicks {
		if c.Token == token && !c.Converted {
			if best == nil || c.ClickedAt.After(best.ClickedAt) {
				best = c
			}
		}
	}
	if best == nil {
		return nil, repository.ErrClickNotFound
	}
	return best, nil
}

func (m *MockClickRepository) GetRecentByPhone(ctx context.Context, phones []string, window time.Duration) (*models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var best *models.Click
	for _, c := range m.clicks {
		if c.Converted || c.ClickedAt.Before(cutoff) {
			continue
		}
		for _, phone := range phones {
			if c.Phone == phone {
				if best == nil || c.ClickedAt.After(best.ClickedAt) {
					best = c
				}
				break
			}
		}
	}
	if best == nil {
		return nil, repository.ErrClickNotFound
	}
	return best, nil
}

func (m *MockClickRepository) MarkConverted(ctx context.Context, clickID int64, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clicks {
		if c.ID == clickID && !c.Converted {
			now := time.Now()
			c.Converted = true
			c.ConvertedAt = &now
			c.LeadID = &leadID
			return nil
		}
	}
	return repository.ErrClickNotFound
}

func (m *MockClickRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = nil
	m.nextID = 1
}

// MockCampaignRepository implements repository.CampaignRepository for testing
type MockCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{campaigns: make(map[string]*models.Campaign)}
}

func (m *MockCampaignRepository) Add(campaign *models.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[campaign.ID] = campaign
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	campaign, exists := m.campaigns[id]
	if !exists {
		return nil, repository.ErrCampaignNotFound
	}
	return campaign, nil
}

func (m *MockCampaignRepository) GetActiveWhatsApp(ctx context.Context, userID string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.campaigns {
		if c.UserID == userID && c.Active && c.RedirectType == "whatsapp" {
			return c, nil
		}
	}
	return nil, repository.ErrCampaignNotFound
}

func (m *MockCampaignRepository) CountActiveWhatsApp(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, c := range m.campaigns {
		if c.UserID == userID && c.Active && c.RedirectType == "whatsapp" {
			count++
		}
	}
	return count, nil
}

func (m *MockCampaignRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns = make(map[string]*models.Campaign)
}

// MockChannelRepository implements repository.ChannelRepository for testing
type MockChannelRepository struct {
	mu       sync.RWMutex
	channels map[string]*models.Channel
}

func NewMockChannelRepository() *MockChannelRepository {
	return &MockChannelRepository{channels: make(map[string]*models.Channel)}
}

func (m *MockChannelRepository) Add(channel *models.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.InstanceName] = channel
}

func (m *MockChannelRepository) GetByInstance(ctx context.Context, instanceName string) (*models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channel, exists := m.channels[instanceName]
	if !exists {
		return nil, repository.ErrChannelNotFound
	}
	return channel, nil
}

// MockLeadRepository implements repository.LeadRepository for testing
type MockLeadRepository struct {
	mu    sync.RWMutex
	leads map[string]*models.Lead // key: user_id + "/" + phone
}

func NewMockLeadRepository() *MockLeadRepository {
	return &MockLeadRepository{leads: make(map[string]*models.Lead)}
}

func leadKey(userID, phone string) string {
	return userID + "/" + phone
}

func (m *MockLeadRepository) GetByPhone(ctx context.Context, userID string, phones []string) (*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, phone := range phones {
		if lead, exists := m.leads[leadKey(userID, phone)]; exists {
			return lead, nil
		}
	}
	return nil, repository.ErrLeadNotFound
}

func (m *MockLeadRepository) Upsert(ctx context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := leadKey(lead.UserID, lead.Phone)
	existing, exists := m.leads[key]
	if !exists {
		m.leads[key] = lead
		return nil
	}

	// Merge: UTM только там, где пусто
	if existing.Name == "" {
		existing.Name = lead.Name
	}
	if existing.CampaignID == nil {
		existing.CampaignID = lead.CampaignID
	}
	if existing.Campaign == "" {
		existing.Campaign = lead.Campaign
	}
	existing.SetUTM(existing.UTM().Merge(lead.UTM()))
	existing.LastMessage = lead.LastMessage
	existing.LastContact = lead.LastContact
	lead.ID = existing.ID
	lead.CreatedAt = existing.CreatedAt
	return nil
}

func (m *MockLeadRepository) UpdateContact(ctx context.Context, leadID, lastMessage string, initialMessage *string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead := m.findByID(leadID)
	if lead == nil {
		return repository.ErrLeadNotFound
	}

	now := time.Now()
	lead.LastMessage = lastMessage
	if initialMessage != nil {
		lead.InitialMessage = *initialMessage
	}
	lead.Status = status
	lead.LastContact = &now
	if lead.FirstContact == nil {
		lead.FirstContact = &now
	}
	return nil
}

func (m *MockLeadRepository) TouchLastContact(ctx context.Context, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead := m.findByID(leadID)
	if lead == nil {
		return repository.ErrLeadNotFound
	}

	now := time.Now()
	lead.LastContact = &now
	return nil
}

func (m *MockLeadRepository) UpdateStatus(ctx context.Context, leadID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead := m.findByID(leadID)
	if lead == nil {
		return repository.ErrLeadNotFound
	}

	lead.Status = status
	return nil
}

func (m *MockLeadRepository) findByID(leadID string) *models.Lead {
	for _, lead := range m.leads {
		if lead.ID == leadID {
			return lead
		}
	}
	return nil
}

func (m *MockLeadRepository) All() []*models.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leads := make([]*models.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		leads = append(leads, lead)
	}
	return leads
}

func (m *MockLeadRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = make(map[string]*models.Lead)
}

// MockPendingLeadRepository implements repository.PendingLeadRepository for testing
type MockPendingLeadRepository struct {
	mu       sync.RWMutex
	pendings []*models.PendingLead
}

func NewMockPendingLeadRepository() *MockPendingLeadRepository {
	return &MockPendingLeadRepository{}
}

func (m *MockPendingLeadRepository) Create(ctx context.Context, pending *models.PendingLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendings = append(m.pendings, pending)
	return nil
}

func (m *MockPendingLeadRepository) GetPendingByTrackingID(ctx context.Context, trackingID string) (*models.PendingLead, error) {
	return m.find(func(p *models.PendingLead) bool {
		return p.TrackingID == trackingID
	}, 0)
}

func (m *MockPendingLeadRepository) GetPendingByPhone(ctx context.Context, phones []string, window time.Duration) (*models.PendingLead, error) {
	return m.find(func(p *models.PendingLead) bool {
		for _, phone := range phones {
			if p.Phone == phone {
				return true
			}
		}
		return false
	}, window)
}

func (m *MockPendingLeadRepository) GetPendingPlaceholder(ctx context.Context, window time.Duration) (*models.PendingLead, error) {
	return m.find(func(p *models.PendingLead) bool {
		return p.Phone == models.PlaceholderPhone
	}, window)
}

func (m *MockPendingLeadRepository) GetPendingByCampaign(ctx context.Context, campaignID string, window time.Duration) (*models.PendingLead, error) {
	return m.find(func(p *models.PendingLead) bool {
		return p.CampaignID != nil && *p.CampaignID == campaignID
	}, window)
}

func (m *MockPendingLeadRepository) MarkConverted(ctx context.Context, pendingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pendings {
		if p.ID == pendingID && p.Status == models.PendingStatusPending {
			p.Status = models.PendingStatusConverted
			return true, nil
		}
	}
	return false, nil
}

func (m *MockPendingLeadRepository) find(match func(*models.PendingLead) bool, window time.Duration) (*models.PendingLead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	var best *models.PendingLead
	for _, p := range m.pendings {
		if p.Status != models.PendingStatusPending || !match(p) {
			continue
		}
		if window > 0 && p.CreatedAt.Before(cutoff) {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, repository.ErrPendingNotFound
	}
	return best, nil
}

func (m *MockPendingLeadRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendings = nil
}

// MockSessionRepository implements repository.SessionRepository for testing
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions []models.UTMSession
	devices  map[string]*models.DeviceData
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{devices: make(map[string]*models.DeviceData)}
}

func (m *MockSessionRepository) SaveSession(ctx context.Context, session *models.UTMSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *MockSessionRepository) GetValidSessions(ctx context.Context, window time.Duration) ([]models.UTMSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var valid []models.UTMSession
	for _, s := range m.sessions {
		if s.ExpiresAt.After(time.Now()) && !s.CreatedAt.Before(cutoff) {
			valid = append(valid, s)
		}
	}
	return valid, nil
}

func (m *MockSessionRepository) SaveDeviceData(ctx context.Context, data *models.DeviceData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[data.Phone] = data
	return nil
}

func (m *MockSessionRepository) GetDeviceDataByPhone(ctx context.Context, phones []string) (*models.DeviceData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, phone := range phones {
		if data, exists := m.devices[phone]; exists {
			return data, nil
		}
	}
	return nil, repository.ErrDeviceDataNotFound
}

// MockMessageRepository implements repository.MessageRepository for testing
type MockMessageRepository struct {
	mu       sync.RWMutex
	messages []*models.LeadMessage
	nextID   int64
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{nextID: 1}
}

func (m *MockMessageRepository) Append(ctx context.Context, msg *models.LeadMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = m.nextID
	m.nextID++
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockMessageRepository) UpdateStatusByExternalID(ctx context.Context, externalID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ExternalID == externalID {
			msg.DeliveryStatus = status
		}
	}
	return nil
}

func (m *MockMessageRepository) All() []*models.LeadMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.LeadMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *MockMessageRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.nextID = 1
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu        sync.RWMutex
	channels  map[string]*models.Channel
	campaigns map[string]*models.Campaign
}

var errCacheMiss = errors.New("cache miss")

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		channels:  make(map[string]*models.Channel),
		campaigns: make(map[string]*models.Campaign),
	}
}

func (m *MockCacheRepository) GetChannel(ctx context.Context, instanceName string) (*models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channel, exists := m.channels[instanceName]
	if !exists {
		return nil, errCacheMiss
	}
	return channel, nil
}

func (m *MockCacheRepository) SetChannel(ctx context.Context, channel *models.Channel, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.InstanceName] = channel
	return nil
}

func (m *MockCacheRepository) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	campaign, exists := m.campaigns[id]
	if !exists {
		return nil, errCacheMiss
	}
	return campaign, nil
}

func (m *MockCacheRepository) SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[campaign.ID] = campaign
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, strings.TrimPrefix(key, "channel:"))
	delete(m.campaigns, strings.TrimPrefix(key, "campaign:"))
	return nil
}
