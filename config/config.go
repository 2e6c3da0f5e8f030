package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	ShipRecon   ShipReconConfig   `yaml:"shiprecon"`
	ShipStation ShipStationConfig `yaml:"shipstation"`
	Shopify     ShopifyConfig     `yaml:"shopify"`
	UPS         UPSConfig         `yaml:"ups"`
	RateLimits  RateLimitsConfig  `yaml:"rate_limits"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString returns URL when set, otherwise builds a postgres DSN from the parts.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	WebhookReceivedTopicName string `yaml:"webhook_received_topic_name"`
}

// Enabled reports whether webhook hand-off goes through Kafka.
// Without a broker the API reconciles in-process.
func (k KafkaConfig) Enabled() bool {
	return k.Host != ""
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ShipReconConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	SwaggerPath        string `yaml:"swagger_path"`

	// Daily tracking poll, cron syntax evaluated in PollTimezone.
	PollSchedule   string `yaml:"poll_schedule"`
	PollTimezone   string `yaml:"poll_timezone"`
	PollWindowDays int    `yaml:"poll_window_days"`

	InventoryCostTTLSeconds int `yaml:"inventory_cost_ttl_seconds"`
	CostLookupConcurrency   int `yaml:"cost_lookup_concurrency"`

	// FakeCarrier serves made-up tracking data when UPS is not configured. Demo only.
	FakeCarrier bool `yaml:"fake_carrier"`
}

type ShipStationConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	V2APIKey  string `yaml:"v2_api_key"`
	BaseURL   string `yaml:"base_url"`
	V2BaseURL string `yaml:"v2_base_url"`
}

type ShopifyConfig struct {
	StoreURL    string `yaml:"store_url"`
	AccessToken string `yaml:"access_token"`
	APIVersion  string `yaml:"api_version"`
}

type UPSConfig struct {
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	TokenURL          string `yaml:"token_url"`
	TrackingURL       string `yaml:"tracking_url"`
	TransactionSource string `yaml:"transaction_source"`
}

// RateLimitsConfig holds minimum intervals between calls, in milliseconds.
type RateLimitsConfig struct {
	ShipStationMillis int `yaml:"shipstation_ms"`
	ShopifyMillis     int `yaml:"shopify_ms"`
	UPSMillis         int `yaml:"ups_ms"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.applyEnv(os.Getenv)
	return &config, nil
}

// applyEnv lets deployments keep credentials out of the YAML file.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.ShipStation.APIKey, "SHIPSTATION_API_KEY")
	set(&c.ShipStation.APISecret, "SHIPSTATION_API_SECRET")
	set(&c.ShipStation.V2APIKey, "SHIPSTATION_V2_API_KEY")
	set(&c.Shopify.StoreURL, "SHOPIFY_STORE_URL")
	set(&c.Shopify.AccessToken, "SHOPIFY_ACCESS_TOKEN")
	set(&c.UPS.ClientID, "UPS_CLIENT_ID")
	set(&c.UPS.ClientSecret, "UPS_CLIENT_SECRET")
}
