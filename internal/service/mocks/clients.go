package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/SergeiKhy/lead-attribution/internal/capi"
	"github.com/SergeiKhy/lead-attribution/internal/geoip"
)

// MockGeoIPClient implements geoip.Client for testing
type MockGeoIPClient struct {
	mu       sync.Mutex
	Location *geoip.Location
	Err      error
	Calls    int
}

func NewMockGeoIPClient() *MockGeoIPClient {
	return &MockGeoIPClient{}
}

func (m *MockGeoIPClient) Lookup(ctx context.Context, ip string) (*geoip.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Location == nil {
		return nil, errors.New("no location configured")
	}
	return m.Location, nil
}

// MockCAPIClient implements capi.Client for testing
type MockCAPIClient struct {
	mu     sync.Mutex
	Err    error
	Events []capi.Event
}

func NewMockCAPIClient() *MockCAPIClient {
	return &MockCAPIClient{}
}

func (m *MockCAPIClient) Send(ctx context.Context, event capi.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, event)
	return nil
}

// MockEvolutionClient implements evolution.Client for testing
type MockEvolutionClient struct {
	mu         sync.Mutex
	PictureURL string
	Err        error
}

func NewMockEvolutionClient() *MockEvolutionClient {
	return &MockEvolutionClient{}
}

func (m *MockEvolutionClient) FetchProfilePicture(ctx context.Context, instanceName, phone string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.PictureURL, nil
}
