package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Catalog struct {
		Language         string `envconfig:"CATALOG_LANGUAGE" default:"ta"`
		PopularLimit     int    `envconfig:"CATALOG_POPULAR_LIMIT" default:"40"`
		RecentWindowDays int    `envconfig:"CATALOG_RECENT_WINDOW_DAYS" default:"90"`
	} `envconfig:""`

	Reco struct {
		DefaultLimit    int           `envconfig:"RECO_DEFAULT_LIMIT" default:"20"`
		PreferenceLimit int           `envconfig:"RECO_PREFERENCE_LIMIT" default:"20"`
		CacheTTL        time.Duration `envconfig:"RECO_CACHE_TTL" default:"60s"`
	} `envconfig:""`

	Queues struct {
		Writes string `envconfig:"WRITE_QUEUE_KEY" default:"write_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
