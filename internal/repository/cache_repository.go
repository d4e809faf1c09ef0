package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SergeiKhy/lead-attribution/internal/models"
)

// CacheRepository — Redis-кэш для горячих сущностей вебхук-пути:
// канал по имени инстанса и кампания по id.
type CacheRepository interface {
	GetChannel(ctx context.Context, instanceName string) (*models.Channel, error)
	SetChannel(ctx context.Context, channel *models.Channel, ttl time.Duration) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) GetChannel(ctx context.Context, instanceName string) (*models.Channel, error) {
	data, err := r.redis.Client.Get(ctx, channelKey(instanceName)).Bytes()
	if err != nil {
		return nil, err
	}

	var channel models.Channel
	if err := json.Unmarshal(data, &channel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel: %w", err)
	}

	return &channel, nil
}

func (r *cacheRepository) SetChannel(ctx context.Context, channel *models.Channel, ttl time.Duration) error {
	data, err := json.Marshal(channel)
	if err != nil {
		return fmt.Errorf("failed to marshal channel: %w", err)
	}

	return r.redis.Client.Set(ctx, channelKey(channel.InstanceName), data, ttl).Err()
}

func (r *cacheRepository) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	data, err := r.redis.Client.Get(ctx, campaignKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var campaign models.Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
	}

	return &campaign, nil
}

func (r *cacheRepository) SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error {
	data, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}

	return r.redis.Client.Set(ctx, campaignKey(campaign.ID), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, key string) error {
	return r.redis.Client.Del(ctx, key).Err()
}

func channelKey(instanceName string) string {
	return "channel:" + instanceName
}

func campaignKey(id string) string {
	return "campaign:" + id
}
