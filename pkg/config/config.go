package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Poll      PollConfig      `mapstructure:"poll"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// ProviderConfig describes the REST snapshot provider (Twelve Data).
type ProviderConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"` // 0 disables limiting
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
}

// StreamConfig describes the push-price upstream and the reconnect policy.
type StreamConfig struct {
	Source           string        `mapstructure:"source"` // websocket, kafka
	URL              string        `mapstructure:"url"`
	Heartbeat        time.Duration `mapstructure:"heartbeat"`
	ReconnectBase    time.Duration `mapstructure:"reconnect_base"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DashboardConfig struct {
	Symbols       []string `mapstructure:"symbols"`
	DefaultSymbol string   `mapstructure:"default_symbol"`
	TabSeed       []string `mapstructure:"tab_seed"`
	Currency      string   `mapstructure:"currency"`
}

type Holding struct {
	Symbol       string  `mapstructure:"symbol"`
	Shares       float64 `mapstructure:"shares"`
	AveragePrice float64 `mapstructure:"average_price"`
}

type PortfolioConfig struct {
	Holdings []Holding `mapstructure:"holdings"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// GeneratorConfig drives cmd/generator.
type GeneratorConfig struct {
	Interval   time.Duration      `mapstructure:"interval"`
	BasePrices map[string]float64 `mapstructure:"base_prices"`
}

// LoadConfig reads configuration from .env file, an optional config.yaml,
// environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Maps dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env", "logger.level", "logger.format")
	bindEnv(v, "provider.base_url", "provider.timeout", "provider.requests_per_minute", "provider.max_concurrency")
	bindEnv(v, "stream.source", "stream.url", "stream.heartbeat", "stream.reconnect_base", "stream.reconnect_max", "stream.max_attempts")
	bindEnv(v, "poll.interval", "poll.timeout")
	bindEnv(v, "dashboard.symbols", "dashboard.default_symbol", "dashboard.tab_seed", "dashboard.currency")
	bindEnv(v, "redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.ttl")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "generator.interval")

	// The provider key is commonly exported under the provider's own name.
	if err := v.BindEnv("provider.api_key", "PROVIDER_API_KEY", "TWELVEDATA_API_KEY"); err != nil {
		log.Printf("Could not bind env var for key provider.api_key: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://api.twelvedata.com")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.requests_per_minute", 0)
	v.SetDefault("provider.max_concurrency", 4)

	v.SetDefault("stream.source", "websocket")
	v.SetDefault("stream.url", "wss://ws.twelvedata.com/v1/quotes/price")
	v.SetDefault("stream.heartbeat", 30*time.Second)
	v.SetDefault("stream.reconnect_base", 2*time.Second)
	v.SetDefault("stream.reconnect_max", 60*time.Second)
	v.SetDefault("stream.max_attempts", 2)
	v.SetDefault("stream.handshake_timeout", 10*time.Second)

	v.SetDefault("poll.interval", 10*time.Second)
	v.SetDefault("poll.timeout", 8*time.Second)

	v.SetDefault("dashboard.symbols", []string{"NVDA", "AAPL", "TSLA", "MSFT", "AMZN"})
	v.SetDefault("dashboard.default_symbol", "TSLA")
	v.SetDefault("dashboard.tab_seed", []string{"NVDA", "AAPL", "TSLA"})
	v.SetDefault("dashboard.currency", "USD")

	v.SetDefault("portfolio.holdings", []map[string]interface{}{})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "stock-dashboard")

	v.SetDefault("generator.interval", 100*time.Millisecond)
	v.SetDefault("generator.base_prices", map[string]interface{}{
		"NVDA": 120.0, "AAPL": 190.0, "TSLA": 250.0, "MSFT": 420.0, "AMZN": 180.0,
	})
}

// Validate checks the settings the application cannot run without.
func (c *Config) Validate() error {
	if len(c.Dashboard.Symbols) == 0 {
		return fmt.Errorf("dashboard symbols cannot be empty")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("stream max_attempts cannot be negative")
	}
	if c.Stream.ReconnectBase <= 0 || c.Stream.ReconnectMax < c.Stream.ReconnectBase {
		return fmt.Errorf("invalid reconnect backoff %s..%s", c.Stream.ReconnectBase, c.Stream.ReconnectMax)
	}
	switch c.Stream.Source {
	case "websocket":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers cannot be empty")
		}
	default:
		return fmt.Errorf("unknown stream source %q", c.Stream.Source)
	}
	return nil
}

// HoldingsBySymbol indexes the configured holdings by upper-case symbol.
func (c *Config) HoldingsBySymbol() map[string]Holding {
	out := make(map[string]Holding, len(c.Portfolio.Holdings))
	for _, h := range c.Portfolio.Holdings {
		h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
		out[h.Symbol] = h
	}
	return out
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
