package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"CryptoSouq/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Backend struct {
		Type string `yaml:"type"` // direct or kafka
	} `yaml:"backend"`
	Postgres struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port"`
		Database    string        `yaml:"database"`
		User        string        `yaml:"user"`
		Password    string        `yaml:"password"`
		SSLMode     string        `yaml:"ssl_mode"`
		MaxConns    int32         `yaml:"max_conns"`
		MinConns    int32         `yaml:"min_conns"`
		MaxIdleTime time.Duration `yaml:"max_idle_time"`
		MaxLifetime time.Duration `yaml:"max_lifetime"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		InitRetries      int           `yaml:"init_retries"`
		InitBackoff      time.Duration `yaml:"init_backoff"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled       bool          `yaml:"enabled"`
		Addr          string        `yaml:"addr"`
		Password      string        `yaml:"password"`
		DB            int           `yaml:"db"`
		QueueWorkers  int           `yaml:"queue_workers"`
		RetryLimit    int           `yaml:"retry_limit"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		PriceCacheTTL time.Duration `yaml:"price_cache_ttl"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		GroupID      string        `yaml:"group_id"`
		Workers      int           `yaml:"workers"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		RetryMax     int           `yaml:"retry_max"`
		BackoffMin   time.Duration `yaml:"backoff_min"`
		BackoffMax   time.Duration `yaml:"backoff_max"`
		DLQTopic     string        `yaml:"dlq_topic"`
	} `yaml:"kafka"`
	Binance struct {
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		PollInterval   time.Duration `yaml:"poll_interval"`
		MinInterval    time.Duration `yaml:"min_interval"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		FeedToStore    bool          `yaml:"feed_to_store"` // relay ticks also persisted
	} `yaml:"binance"`
	News struct {
		BaseURL        string        `yaml:"base_url"`
		APIKey         string        `yaml:"api_key"`
		PollInterval   time.Duration `yaml:"poll_interval"`
		MinInterval    time.Duration `yaml:"min_interval"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		PageSize       int           `yaml:"page_size"`
	} `yaml:"news"`
	Sentiment struct {
		Mode    string        `yaml:"mode"` // lexicon or http
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"sentiment"`
	Forecast struct {
		Lookback        int           `yaml:"lookback"`
		MinObservations int           `yaml:"min_observations"`
		TrainWindow     int           `yaml:"train_window"`
		RetrainAfter    time.Duration `yaml:"retrain_after"`
		CacheTTL        time.Duration `yaml:"cache_ttl"`
	} `yaml:"forecast"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		c.News.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Binance.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "direct"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 20
	}
	if c.Postgres.MinConns == 0 {
		c.Postgres.MinConns = 2
	}
	if c.Redis.PriceCacheTTL == 0 {
		c.Redis.PriceCacheTTL = 30 * time.Second
	}
	if c.ClickHouse.InitRetries == 0 {
		c.ClickHouse.InitRetries = 3
	}
	if c.ClickHouse.InitBackoff == 0 {
		c.ClickHouse.InitBackoff = 5 * time.Second
	}
	if len(c.Binance.Symbols) == 0 {
		c.Binance.Symbols = models.Symbols()
	}
	if c.Binance.BaseURL == "" {
		c.Binance.BaseURL = "https://api.binance.com/api/v3"
	}
	if c.Binance.WebSocketURL == "" {
		c.Binance.WebSocketURL = "wss://stream.binance.com:9443/ws"
	}
	if c.Binance.PollInterval == 0 {
		c.Binance.PollInterval = time.Minute
	}
	if c.Binance.MinInterval == 0 {
		c.Binance.MinInterval = 10 * time.Second
	}
	if c.News.BaseURL == "" {
		c.News.BaseURL = "https://cryptopanic.com/api/v1"
	}
	if c.News.PollInterval == 0 {
		c.News.PollInterval = 5 * time.Minute
	}
	if c.News.MinInterval == 0 {
		c.News.MinInterval = 30 * time.Second
	}
	if c.News.PageSize == 0 {
		c.News.PageSize = 25
	}
	if c.Sentiment.Mode == "" {
		c.Sentiment.Mode = "lexicon"
	}
	if c.Forecast.Lookback == 0 {
		c.Forecast.Lookback = 60
	}
	if c.Forecast.MinObservations == 0 {
		c.Forecast.MinObservations = c.Forecast.Lookback + 24
	}
	if c.Forecast.TrainWindow == 0 {
		c.Forecast.TrainWindow = 1000
	}
	if c.Forecast.RetrainAfter == 0 {
		c.Forecast.RetrainAfter = time.Hour
	}
	if c.Forecast.CacheTTL == 0 {
		c.Forecast.CacheTTL = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "direct" && c.Backend.Type != "kafka" {
		return fmt.Errorf("backend.type must be 'direct' or 'kafka', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty in kafka mode")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required in kafka mode")
		}
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	for _, s := range c.Binance.Symbols {
		if _, err := models.NormalizeSymbol(s); err != nil {
			return fmt.Errorf("binance.symbols: %w", err)
		}
	}
	return nil
}
