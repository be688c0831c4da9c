package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SHARDSCOPE"

type Config struct {
	BotAPI  BotAPIConfig  `mapstructure:"botapi"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Fleet   FleetConfig   `mapstructure:"fleet"`
	Locator LocatorConfig `mapstructure:"locator"`
	Poller  PollerConfig  `mapstructure:"poller"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	OTel    OTelConfig    `mapstructure:"otel"`

	// File is the config file actually read, empty when running on env and defaults.
	File string `mapstructure:"-"`

	v        *viper.Viper
	watching sync.Once
}

type BotAPIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	AdminAPIKey string        `mapstructure:"admin_api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

type CacheConfig struct {
	Driver    string `mapstructure:"driver"`
	Size      int    `mapstructure:"size"`
	RedisAddr string `mapstructure:"redis_addr"`
	Prefix    string `mapstructure:"prefix"`
}

type FleetConfig struct {
	FallbackShards int    `mapstructure:"fallback_shards"`
	Seed           uint64 `mapstructure:"seed"`
}

type LocatorConfig struct {
	HealthTTL time.Duration `mapstructure:"health_ttl"`
}

type PollerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type PubSubConfig struct {
	Driver  string `mapstructure:"driver"`
	AMQPURL string `mapstructure:"amqp_url"`
	Topic   string `mapstructure:"topic"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	OTel  bool   `mapstructure:"otel"`
}

// OTelConfig selects where traces, metrics and otel-routed logs go.
type OTelConfig struct {
	Exporter       string        `mapstructure:"exporter"`
	Endpoint       string        `mapstructure:"endpoint"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"

	PubSubGoChannel = "gochannel"
	PubSubAMQP      = "amqp"

	OTelNone   = "none"
	OTelStdout = "stdout"
	OTelOTLP   = "otlp"
)

func defaults(v *viper.Viper) {
	v.SetDefault("botapi.base_url", "http://localhost:3001/api")
	v.SetDefault("botapi.api_key", "")
	v.SetDefault("botapi.admin_api_key", "")
	v.SetDefault("botapi.timeout", 10*time.Second)
	v.SetDefault("botapi.breaker.enabled", true)
	v.SetDefault("botapi.breaker.failure_threshold", 5)
	v.SetDefault("botapi.breaker.open_timeout", 30*time.Second)
	v.SetDefault("botapi.breaker.half_open_requests", 1)

	v.SetDefault("cache.driver", CacheMemory)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.prefix", "shardscope:")

	v.SetDefault("fleet.fallback_shards", 5)
	v.SetDefault("fleet.seed", 0x5eed)

	v.SetDefault("locator.health_ttl", 30*time.Second)

	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", 30*time.Second)
	v.SetDefault("poller.max_backoff", 4*time.Minute)

	v.SetDefault("pubsub.driver", PubSubGoChannel)
	v.SetDefault("pubsub.amqp_url", "")
	v.SetDefault("pubsub.topic", "shardscope.fleet.summary.v1")

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.otel", false)

	v.SetDefault("otel.exporter", OTelNone)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.metric_interval", time.Minute)
}

// Flags returns the flag set bound into the configuration. Unknown flags
// are ignored so CLI subcommand flags pass through.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("shardscope", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}

	fs.String("config_file", "", "Path to the configuration file")
	fs.String("botapi.base_url", "", "Bot API base URL")
	fs.String("http.addr", "", "HTTP listen address")
	fs.String("log.level", "", "Log level (debug, info, warn, error)")
	return fs
}

// LoadConfig reads defaults, the optional config file, SHARDSCOPE_* env
// vars and command-line flags, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs := Flags()
	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}
	// only flags set explicitly override lower layers
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	file := v.GetString("config_file")
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BotAPI.BaseURL == "" {
		errs = append(errs, errors.New("botapi.base_url is required"))
	}
	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver %q is not one of memory, redis", c.Cache.Driver))
	}
	switch c.PubSub.Driver {
	case PubSubGoChannel:
	case PubSubAMQP:
		if c.PubSub.AMQPURL == "" {
			errs = append(errs, errors.New("pubsub.amqp_url is required for the amqp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("pubsub.driver %q is not one of gochannel, amqp", c.PubSub.Driver))
	}
	if c.PubSub.Topic == "" {
		errs = append(errs, errors.New("pubsub.topic is required"))
	}
	if c.Poller.Interval <= 0 {
		errs = append(errs, errors.New("poller.interval must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.OTel.Exporter {
	case OTelNone:
		if c.Log.OTel {
			errs = append(errs, errors.New("log.otel needs otel.exporter other than none"))
		}
	case OTelStdout:
	case OTelOTLP:
		if c.OTel.Endpoint == "" {
			errs = append(errs, errors.New("otel.endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("otel.exporter %q is not one of none, stdout, otlp", c.OTel.Exporter))
	}
	if c.OTel.MetricInterval <= 0 {
		errs = append(errs, errors.New("otel.metric_interval must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseLevel maps a config level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// WatchLogLevel applies log.level changes from the config file to lvl
// without a restart. It is a no-op when no file was loaded.
func (c *Config) WatchLogLevel(lvl *slog.LevelVar, logger *slog.Logger) {
	if c.v == nil || c.File == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := ParseLevel(c.v.GetString("log.level"))
		if err != nil {
			logger.Warn("CONFIG_RELOAD_REJECTED", "file", e.Name, "err", err)
			return
		}
		if next != lvl.Level() {
			lvl.Set(next)
			logger.Info("CONFIG_RELOADED", "file", e.Name, "log_level", next.String())
		}
	})
	c.watching.Do(c.v.WatchConfig)
}
