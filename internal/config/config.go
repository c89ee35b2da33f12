package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	// AdminKey guards the operator endpoints (volume recomputation, offboarding).
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ExecutorConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	TimeoutMs     int     `mapstructure:"timeout_ms"`
	QPS           float64 `mapstructure:"qps"`   // global pacing toward the executor
	Burst         int     `mapstructure:"burst"`
	StreamURL     string  `mapstructure:"stream_url"` // websocket execution report feed
	StreamEnabled bool    `mapstructure:"stream_enabled"`
}

type GatewayConfig struct {
	ChunkSize            int `mapstructure:"chunk_size"`             // orders dispatched concurrently per bulk chunk
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"` // rate-limit window sweep cadence
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. INSTGATE_EXECUTOR_BASE_URL
	viper.SetEnvPrefix("instgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("executor.base_url", "http://localhost:9090")
	viper.SetDefault("executor.timeout_ms", 5000)
	viper.SetDefault("executor.qps", 100)
	viper.SetDefault("executor.burst", 200)
	viper.SetDefault("executor.stream_enabled", false)
	viper.SetDefault("gateway.chunk_size", 10)
	viper.SetDefault("gateway.sweep_interval_seconds", 60)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
