package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Instance   InstanceConfig   `mapstructure:"instance"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Federation FederationConfig `mapstructure:"federation"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// InstanceConfig 本实例的联邦身份
type InstanceConfig struct {
	Domain  string `mapstructure:"domain"`   // 例如 lemmy-alpha:8541
	BaseURL string `mapstructure:"base_url"` // 例如 https://lemmy-alpha:8541
}

type QueueConfig struct {
	InboxQueue    string `mapstructure:"inbox_queue"`
	DeliveryQueue string `mapstructure:"delivery_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type FederationConfig struct {
	HTTPTimeout           time.Duration `mapstructure:"http_timeout"`
	DeliveryMaxRetries    uint64        `mapstructure:"delivery_max_retries"`
	ResolveMaxRetries     uint64        `mapstructure:"resolve_max_retries"`
	InitialInterval       time.Duration `mapstructure:"initial_interval"`
	MaxInterval           time.Duration `mapstructure:"max_interval"`
	MaxReplyDepth         int           `mapstructure:"max_reply_depth"`
	SyncInbox             bool          `mapstructure:"sync_inbox"`
	ActivityRetentionDays int           `mapstructure:"activity_retention_days"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8536)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("queue.inbox_queue", "federation:inbox")
	v.SetDefault("queue.delivery_queue", "federation:delivery")
	v.SetDefault("queue.max_workers", 4)
	v.SetDefault("federation.http_timeout", 10*time.Second)
	v.SetDefault("federation.delivery_max_retries", 5)
	v.SetDefault("federation.resolve_max_retries", 3)
	v.SetDefault("federation.initial_interval", 500*time.Millisecond)
	v.SetDefault("federation.max_interval", 30*time.Second)
	v.SetDefault("federation.max_reply_depth", 50)
	v.SetDefault("federation.activity_retention_days", 7)
}

// Defaults 返回填充默认值的配置（测试和命令行工具使用）
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
