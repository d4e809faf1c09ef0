package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Attribution AttributionConfig
	Evolution   EvolutionConfig
	GeoIP       GeoIPConfig
	Conversions ConversionsConfig
	Cache       CacheConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// AttributionConfig — окна корреляции. Размеры окон нижних ярусов —
// настраиваемые параметры, а не жёсткий контракт.
type AttributionConfig struct {
	RecentClickWindow     time.Duration // ярус "недавний клик"
	PendingWindow         time.Duration // точный телефон / плейсхолдер
	PendingCampaignWindow time.Duration // расширенное окно по кампании
	PendingSessionWindow  time.Duration // персистентные UTM-сессии
	DefaultGreeting       string
}

// EvolutionConfig — доступ к API провайдера мессенджера.
type EvolutionConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// GeoIPConfig — сервис геолокации по IP.
type GeoIPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ConversionsConfig — внешний conversions-endpoint (best-effort).
type ConversionsConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type CacheConfig struct {
	ChannelTTL  time.Duration
	CampaignTTL time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// .env опционален: в контейнере конфиг приходит через окружение
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok &&
			!strings.Contains(err.Error(), "no such file") {
			return nil, err
		}
	}

	var cfg Config
	cfg.App.Port = getString("APP_PORT", "8080")
	cfg.App.BaseURL = getString("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// Auth config - parse API keys from comma-separated string
	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(viper.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	cfg.Attribution.RecentClickWindow = getDuration("ATTR_RECENT_CLICK_WINDOW", 30*time.Minute)
	cfg.Attribution.PendingWindow = getDuration("ATTR_PENDING_WINDOW", time.Hour)
	cfg.Attribution.PendingCampaignWindow = getDuration("ATTR_PENDING_CAMPAIGN_WINDOW", 24*time.Hour)
	cfg.Attribution.PendingSessionWindow = getDuration("ATTR_PENDING_SESSION_WINDOW", 7*24*time.Hour)
	cfg.Attribution.DefaultGreeting = getString("ATTR_DEFAULT_GREETING", "Olá! Vim através do anúncio.")

	cfg.Evolution.BaseURL = viper.GetString("EVOLUTION_BASE_URL")
	cfg.Evolution.APIKey = viper.GetString("EVOLUTION_API_KEY")
	cfg.Evolution.Timeout = getDuration("EVOLUTION_TIMEOUT", 5*time.Second)

	cfg.GeoIP.BaseURL = getString("GEOIP_BASE_URL", "http://ip-api.com")
	cfg.GeoIP.Timeout = getDuration("GEOIP_TIMEOUT", 2*time.Second)

	cfg.Conversions.Endpoint = viper.GetString("CONVERSIONS_ENDPOINT")
	cfg.Conversions.Timeout = getDuration("CONVERSIONS_TIMEOUT", 3*time.Second)

	cfg.Cache.ChannelTTL = getDuration("CACHE_CHANNEL_TTL", 5*time.Minute)
	cfg.Cache.CampaignTTL = getDuration("CACHE_CAMPAIGN_TTL", time.Minute)

	return &cfg, nil
}

func getString(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := viper.GetDuration(key); v > 0 {
		return v
	}
	return fallback
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
