package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	Port        = "server.port"
	Environment = "server.environment"
	LogLevel    = "server.log_level"

	RedisURL      = "redis.url"
	RedisPassword = "redis.password"
	RedisDB       = "redis.db"

	EventStream       = "stream.name"
	EventStreamMaxLen = "stream.max_len"

	PubNubPublishKey   = "pubnub.publish_key"
	PubNubSubscribeKey = "pubnub.subscribe_key"
	PubNubSecretKey    = "pubnub.secret_key"
	PubNubUserID       = "pubnub.user_id"
	PubNubChannel      = "pubnub.channel_prefix"

	JournalPath = "journal.path"

	EngineAddress       = "ledger.engine_address"
	AdminAddress        = "ledger.admin"
	FeeAdminAddress     = "ledger.fee_admin"
	FeeRecipientAddress = "ledger.fee_recipient"
	ProtocolFeeBps      = "ledger.protocol_fee_bps"
	AdminKeyHash        = "ledger.admin_key_hash"
	DispatchBuffer      = "ledger.dispatch_buffer"
	DevAssetAddress     = "ledger.dev_asset"

	RateLimitRequests = "security.rate_limit_requests"
	RateLimitWindow   = "security.rate_limit_window"

	EnableMetrics   = "metrics.enabled"
	MetricsInterval = "metrics.interval"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	LogLevel    string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Domain event stream
	EventStream       string
	EventStreamMaxLen int64

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string
	PubNubChannel      string

	// Journal
	JournalPath string

	// Ledger roles and fees
	EngineAddress       string
	AdminAddress        string
	FeeAdminAddress     string
	FeeRecipientAddress string
	ProtocolFeeBps      uint32
	AdminKeyHash        string
	DispatchBuffer      int
	DevAssetAddress     string

	// Anti-bot limits
	RateLimitRequests int64
	RateLimitWindow   time.Duration

	// Monitoring
	EnableMetrics   bool
	MetricsInterval time.Duration
}

func init() {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(Port, "8090")
	viper.SetDefault(Environment, "development")
	viper.SetDefault(LogLevel, "info")
	viper.SetDefault(RedisURL, "localhost:6379")
	viper.SetDefault(RedisDB, 0)
	viper.SetDefault(EventStream, "ledger:events")
	viper.SetDefault(EventStreamMaxLen, 100000)
	viper.SetDefault(PubNubUserID, "ticket-ledger")
	viper.SetDefault(PubNubChannel, "ledger")
	viper.SetDefault(JournalPath, "ledger_journal.db")
	viper.SetDefault(EngineAddress, "0x00000000000000000000000000000000000e4e11")
	viper.SetDefault(ProtocolFeeBps, 50)
	viper.SetDefault(DispatchBuffer, 1024)
	viper.SetDefault(RateLimitRequests, 20)
	viper.SetDefault(RateLimitWindow, "10s")
	viper.SetDefault(EnableMetrics, true)
	viper.SetDefault(MetricsInterval, "30s")
}

// LoadConfig reads an optional config file, then environment overrides
// such as LEDGER_ADMIN or REDIS_URL.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loadConfig: %w", err)
		}
	}

	cfg := &Config{
		Port:        viper.GetString(Port),
		Environment: viper.GetString(Environment),
		LogLevel:    viper.GetString(LogLevel),

		RedisURL:      viper.GetString(RedisURL),
		RedisPassword: viper.GetString(RedisPassword),
		RedisDB:       viper.GetInt(RedisDB),

		EventStream:       viper.GetString(EventStream),
		EventStreamMaxLen: viper.GetInt64(EventStreamMaxLen),

		PubNubPublishKey:   viper.GetString(PubNubPublishKey),
		PubNubSubscribeKey: viper.GetString(PubNubSubscribeKey),
		PubNubSecretKey:    viper.GetString(PubNubSecretKey),
		PubNubUserID:       viper.GetString(PubNubUserID),
		PubNubChannel:      viper.GetString(PubNubChannel),

		JournalPath: viper.GetString(JournalPath),

		EngineAddress:       viper.GetString(EngineAddress),
		AdminAddress:        viper.GetString(AdminAddress),
		FeeAdminAddress:     viper.GetString(FeeAdminAddress),
		FeeRecipientAddress: viper.GetString(FeeRecipientAddress),
		ProtocolFeeBps:      viper.GetUint32(ProtocolFeeBps),
		AdminKeyHash:        viper.GetString(AdminKeyHash),
		DispatchBuffer:      viper.GetInt(DispatchBuffer),
		DevAssetAddress:     viper.GetString(DevAssetAddress),

		RateLimitRequests: viper.GetInt64(RateLimitRequests),
		RateLimitWindow:   viper.GetDuration(RateLimitWindow),

		EnableMetrics:   viper.GetBool(EnableMetrics),
		MetricsInterval: viper.GetDuration(MetricsInterval),
	}

	if cfg.AdminAddress == "" {
		return nil, fmt.Errorf("loadConfig: %s is required", AdminAddress)
	}
	if cfg.FeeAdminAddress == "" {
		cfg.FeeAdminAddress = cfg.AdminAddress
	}
	if cfg.FeeRecipientAddress == "" {
		cfg.FeeRecipientAddress = cfg.AdminAddress
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
