package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cron        CronConfig        `mapstructure:"cron"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Abandonment AbandonmentConfig `mapstructure:"abandonment"`
	Retention   RetentionConfig   `mapstructure:"retention"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr           string        `mapstructure:"http_addr"`
	ManualSyncTimeout  time.Duration `mapstructure:"manual_sync_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxWebhookBodySize int64         `mapstructure:"max_webhook_body_size"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig switches the sync lease and webhook limiter to a shared
// backend. Disabled means in-process state only.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type CronConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	HighFrequency    string `mapstructure:"high_frequency"`
	MediumFrequency  string `mapstructure:"medium_frequency"`
	Maintenance      string `mapstructure:"maintenance"`
	AbandonmentCheck string `mapstructure:"abandonment_check"`
}

type UpstreamConfig struct {
	// BaseURL overrides https://{shop_domain} when set.
	BaseURL      string        `mapstructure:"base_url"`
	APIVersion   string        `mapstructure:"api_version"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RatePerShop  float64       `mapstructure:"rate_per_shop"`
	BurstPerShop int           `mapstructure:"burst_per_shop"`
}

type SyncConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	MaxRecords     int           `mapstructure:"max_records"`
	PageDelay      time.Duration `mapstructure:"page_delay"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
}

type SchedulerConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	BatchDelay     time.Duration `mapstructure:"batch_delay"`
	InterTypeDelay time.Duration `mapstructure:"inter_type_delay"`
}

type WebhookConfig struct {
	SharedSecret string        `mapstructure:"shared_secret"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateWindow   time.Duration `mapstructure:"rate_window"`
}

type AbandonmentConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Delay     time.Duration `mapstructure:"delay"`
	BatchSize int           `mapstructure:"batch_size"`
	// MaxAttempts bounds re-tries of a check whose evaluation keeps failing.
	MaxAttempts int `mapstructure:"max_attempts"`
}

type RetentionConfig struct {
	SyncLogDays     int `mapstructure:"sync_log_days"`
	CustomEventDays int `mapstructure:"custom_event_days"`
	CheckDays       int `mapstructure:"check_days"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.manual_sync_timeout", "4m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_webhook_body_size", 5<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "storesync")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.high_frequency", "@every 15m")
	v.SetDefault("cron.medium_frequency", "@every 1h")
	v.SetDefault("cron.maintenance", "0 0 3 * * *")
	v.SetDefault("cron.abandonment_check", "@every 15s")

	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.api_version", "2024-01")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.rate_per_shop", 2.0)
	v.SetDefault("upstream.burst_per_shop", 4)

	v.SetDefault("sync.page_size", 250)
	v.SetDefault("sync.max_records", 5000)
	v.SetDefault("sync.page_delay", "500ms")
	v.SetDefault("sync.min_interval", "10m")
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.retry_base_delay", "1s")
	v.SetDefault("sync.retry_max_delay", "30s")
	v.SetDefault("sync.lease_ttl", "10m")

	v.SetDefault("scheduler.batch_size", 3)
	v.SetDefault("scheduler.batch_delay", "2s")
	v.SetDefault("scheduler.inter_type_delay", "1s")

	v.SetDefault("webhook.shared_secret", "")
	v.SetDefault("webhook.rate_limit", 100)
	v.SetDefault("webhook.rate_window", "1m")

	v.SetDefault("abandonment.enabled", true)
	v.SetDefault("abandonment.delay", "60s")
	v.SetDefault("abandonment.batch_size", 100)
	v.SetDefault("abandonment.max_attempts", 5)

	v.SetDefault("retention.sync_log_days", 30)
	v.SetDefault("retention.custom_event_days", 90)
	v.SetDefault("retention.check_days", 7)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "storesync.cart-events")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
