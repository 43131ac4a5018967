package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/magland/hchat/protocol"
	"github.com/magland/hchat/redemption"
	"gopkg.in/yaml.v3"
)

// Redemption backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Config is the gateway configuration file.
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	log_level: "info"
//	log_format: "text"
//	allowed_origins: ["*"]
//	keys:
//	  system_private_key: ""   # base64 PKCS#8 body or PEM
//	  system_public_key: ""    # optional, checked against the private key
//	hub:
//	  subscribe_key: "sub-c-local"
//	  secret_key: ""
//	policy:
//	  publish_difficulty: 13
//	  publish_delay: 500ms
//	  subscribe_difficulty: 13
//	  subscribe_delay: 500ms
//	  max_token_age: 60s
//	  max_message_size: 20000
//	  max_channels: 10
//	  credential_ttl_minutes: 60
//	redemption:
//	  backend: "memory"        # memory, redis, postgres or none
//	  redis_url: "redis://localhost:6379/0"
//	  cleanup_interval: 1m
type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	EnablePprof    bool          `yaml:"enable_pprof"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DrainDuration  time.Duration `yaml:"drain_duration"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`

	Keys       KeysConfig       `yaml:"keys"`
	Hub        HubConfig        `yaml:"hub"`
	Policy     PolicyConfig     `yaml:"policy"`
	Redemption RedemptionConfig `yaml:"redemption"`
}

type KeysConfig struct {
	SystemPrivateKey string `yaml:"system_private_key"`
	SystemPublicKey  string `yaml:"system_public_key"`
}

// HubConfig configures the in-process distribution hub.
type HubConfig struct {
	SubscribeKey string `yaml:"subscribe_key"`
	// PublishKey is accepted for compatibility with hosted pub/sub
	// deployments; the in-process hub needs none.
	PublishKey string `yaml:"publish_key"`
	SecretKey  string `yaml:"secret_key"`
	Buffer     int    `yaml:"buffer"`
}

type PolicyConfig struct {
	PublishDifficulty    int           `yaml:"publish_difficulty"`
	PublishDelay         time.Duration `yaml:"publish_delay"`
	SubscribeDifficulty  int           `yaml:"subscribe_difficulty"`
	SubscribeDelay       time.Duration `yaml:"subscribe_delay"`
	MaxTokenAge          time.Duration `yaml:"max_token_age"`
	MaxMessageSize       int           `yaml:"max_message_size"`
	MaxChannels          int           `yaml:"max_channels"`
	CredentialTTLMinutes int           `yaml:"credential_ttl_minutes"`
}

type RedemptionConfig struct {
	Backend         string                    `yaml:"backend"`
	RedisURL        string                    `yaml:"redis_url"`
	RedisPrefix     string                    `yaml:"redis_prefix"`
	Postgres        redemption.PostgresConfig `yaml:"postgres"`
	CleanupInterval time.Duration             `yaml:"cleanup_interval"`
}

// DefaultConfig returns a configuration with the default policy and an
// in-memory redemption guard. Keys must still be supplied.
func DefaultConfig() *Config {
	p := protocol.DefaultConfig()
	return &Config{
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: 10 * time.Second,
		DrainDuration:  5 * time.Second,
		ShutdownGrace:  10 * time.Second,
		Policy: PolicyConfig{
			PublishDifficulty:    p.Publish.Difficulty,
			PublishDelay:         p.Publish.Delay,
			SubscribeDifficulty:  p.Subscribe.Difficulty,
			SubscribeDelay:       p.Subscribe.Delay,
			MaxTokenAge:          p.MaxTokenAge,
			MaxMessageSize:       p.MaxMessageSize,
			MaxChannels:          p.MaxChannels,
			CredentialTTLMinutes: p.CredentialTTLMinutes,
		},
		Redemption: RedemptionConfig{
			Backend:         BackendMemory,
			RedisPrefix:     redemption.DefaultRedisPrefix,
			CleanupInterval: time.Minute,
			Postgres: redemption.PostgresConfig{
				Host: "localhost",
				Port: 5432,
			},
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	integer := func(dst *int, name string) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(dst *time.Duration, name string) {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str(&c.HTTPAddr, "HCHAT_HTTP_ADDR")
	str(&c.MetricsAddr, "HCHAT_METRICS_ADDR")
	str(&c.LogLevel, "HCHAT_LOG_LEVEL")
	str(&c.LogFormat, "HCHAT_LOG_FORMAT")
	if v, ok := lookup("HCHAT_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}

	str(&c.Keys.SystemPrivateKey, "HCHAT_SYSTEM_PRIVATE_KEY", "SYSTEM_PRIVATE_KEY")
	str(&c.Keys.SystemPublicKey, "HCHAT_SYSTEM_PUBLIC_KEY", "SYSTEM_PUBLIC_KEY")
	str(&c.Hub.SubscribeKey, "HCHAT_SUBSCRIBE_KEY", "PUBNUB_SUBSCRIBE_KEY")
	str(&c.Hub.PublishKey, "HCHAT_PUBLISH_KEY", "PUBNUB_PUBLISH_KEY")
	str(&c.Hub.SecretKey, "HCHAT_HUB_SECRET", "PUBNUB_SECRET_KEY")

	integer(&c.Policy.PublishDifficulty, "HCHAT_PUBLISH_DIFFICULTY")
	duration(&c.Policy.PublishDelay, "HCHAT_PUBLISH_DELAY")
	integer(&c.Policy.SubscribeDifficulty, "HCHAT_SUBSCRIBE_DIFFICULTY")
	duration(&c.Policy.SubscribeDelay, "HCHAT_SUBSCRIBE_DELAY")
	duration(&c.Policy.MaxTokenAge, "HCHAT_MAX_TOKEN_AGE")

	str(&c.Redemption.Backend, "HCHAT_REDEMPTION_BACKEND")
	str(&c.Redemption.RedisURL, "HCHAT_REDIS_URL")
	str(&c.Redemption.Postgres.Host, "HCHAT_POSTGRES_HOST")
	integer(&c.Redemption.Postgres.Port, "HCHAT_POSTGRES_PORT")
	str(&c.Redemption.Postgres.User, "HCHAT_POSTGRES_USER")
	str(&c.Redemption.Postgres.Password, "HCHAT_POSTGRES_PASSWORD")
	str(&c.Redemption.Postgres.Database, "HCHAT_POSTGRES_DATABASE")

	return errors.Join(errs...)
}

// ProtocolConfig converts the policy section into the gate's config.
func (c *Config) ProtocolConfig() *protocol.Config {
	return &protocol.Config{
		Publish: protocol.Policy{
			Difficulty: c.Policy.PublishDifficulty,
			Delay:      c.Policy.PublishDelay,
		},
		Subscribe: protocol.Policy{
			Difficulty: c.Policy.SubscribeDifficulty,
			Delay:      c.Policy.SubscribeDelay,
		},
		MaxTokenAge:          c.Policy.MaxTokenAge,
		MaxMessageSize:       c.Policy.MaxMessageSize,
		MaxChannels:          c.Policy.MaxChannels,
		CredentialTTLMinutes: c.Policy.CredentialTTLMinutes,
		SubscribeKey:         c.Hub.SubscribeKey,
	}
}

// Validate checks everything the gateway needs before it starts.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.Keys.SystemPrivateKey == "" {
		errs = append(errs, errors.New("system private key is required"))
	}
	if c.Hub.SecretKey == "" {
		errs = append(errs, errors.New("hub secret key is required"))
	}
	switch c.Redemption.Backend {
	case BackendMemory, BackendNone:
	case BackendRedis:
		if c.Redemption.RedisURL == "" {
			errs = append(errs, errors.New("redis_url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Redemption.Postgres.Database == "" {
			errs = append(errs, errors.New("postgres database is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown redemption backend %q", c.Redemption.Backend))
	}
	if err := c.ProtocolConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
