package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Elastic    ElasticsearchConfig
	Telemetry  TelemetryConfig
	Sync       SyncConfig
	Enrichment EnrichmentConfig
	Platforms  PlatformsConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type SyncConfig struct {
	BatchSize        int
	BatchDelay       time.Duration
	DedupWindow      time.Duration
	PollInterval     time.Duration
	JobTimeout       time.Duration
	EnableEnrichment bool
}

type EnrichmentConfig struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
}

type PlatformsConfig struct {
	AdapterTimeout time.Duration
	BigCommerce    BigCommerceConfig
	Shopify        ShopifyConfig
	Clover         CloverConfig
	Generic        GenericConfig
}

type BigCommerceConfig struct {
	TenantID     string
	StoreHash    string
	AccessToken  string
	ClientSecret string
}

type ShopifyConfig struct {
	TenantID      string
	ShopDomain    string
	AccessToken   string
	WebhookSecret string
}

type CloverConfig struct {
	TenantID      string
	MerchantID    string
	AccessToken   string
	WebhookSecret string
}

type GenericConfig struct {
	TenantID string
	URL      string
	APIKey   string
	StoreID  string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8085"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_inventory"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_WEBHOOKS", "inventory.webhooks"),
			GroupID: getEnv("KAFKA_GROUP_INVENTORY_SYNC", "inventory-sync"),
		},
		Elastic: ElasticsearchConfig{
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "omnipos-inventory-sync"),
		},
		Sync: SyncConfig{
			BatchSize:        getEnvInt("SYNC_BATCH_SIZE", 25),
			BatchDelay:       getEnvDuration("SYNC_BATCH_DELAY", 500*time.Millisecond),
			DedupWindow:      getEnvDuration("SYNC_DEDUP_WINDOW", 60*time.Second),
			PollInterval:     getEnvDuration("SYNC_POLL_INTERVAL", 15*time.Minute),
			JobTimeout:       getEnvDuration("SYNC_JOB_TIMEOUT", 10*time.Minute),
			EnableEnrichment: getEnvBool("SYNC_ENABLE_ENRICHMENT", false),
		},
		Enrichment: EnrichmentConfig{
			URL:           getEnv("ENRICHMENT_URL", ""),
			APIKey:        getEnv("ENRICHMENT_API_KEY", ""),
			Timeout:       getEnvDuration("ENRICHMENT_TIMEOUT", 10*time.Second),
			RatePerSecond: getEnvFloat("ENRICHMENT_RATE_PER_SECOND", 5),
		},
		Platforms: PlatformsConfig{
			AdapterTimeout: getEnvDuration("PLATFORM_ADAPTER_TIMEOUT", 15*time.Second),
			BigCommerce: BigCommerceConfig{
				TenantID:     getEnv("BIGCOMMERCE_TENANT_ID", ""),
				StoreHash:    getEnv("BIGCOMMERCE_STORE_HASH", ""),
				AccessToken:  getEnv("BIGCOMMERCE_ACCESS_TOKEN", ""),
				ClientSecret: getEnv("BIGCOMMERCE_CLIENT_SECRET", ""),
			},
			Shopify: ShopifyConfig{
				TenantID:      getEnv("SHOPIFY_TENANT_ID", ""),
				ShopDomain:    getEnv("SHOPIFY_SHOP_DOMAIN", ""),
				AccessToken:   getEnv("SHOPIFY_ACCESS_TOKEN", ""),
				WebhookSecret: getEnv("SHOPIFY_WEBHOOK_SECRET", ""),
			},
			Clover: CloverConfig{
				TenantID:      getEnv("CLOVER_TENANT_ID", ""),
				MerchantID:    getEnv("CLOVER_MERCHANT_ID", ""),
				AccessToken:   getEnv("CLOVER_ACCESS_TOKEN", ""),
				WebhookSecret: getEnv("CLOVER_WEBHOOK_SECRET", ""),
			},
			Generic: GenericConfig{
				TenantID: getEnv("GENERIC_TENANT_ID", ""),
				URL:      getEnv("GENERIC_FEED_URL", ""),
				APIKey:   getEnv("GENERIC_API_KEY", ""),
				StoreID:  getEnv("GENERIC_STORE_ID", "default"),
			},
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
