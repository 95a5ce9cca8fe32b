package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
	Gateway  GatewayConfig
	Funnel   FunnelConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type DispatchConfig struct {
	Interval   time.Duration
	BatchSize  int
	SendDelay  time.Duration
	ShardCount int
}

type GatewayConfig struct {
	URL string
}

type FunnelConfig struct {
	DefaultTrigger    string
	TopFunnelTriggers []string
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Gateway: GatewayConfig{
			URL: mustEnv("GATEWAY_URL"),
		},
		Dispatch: DispatchConfig{
			Interval:   time.Duration(getEnvInt("DISPATCH_INTERVAL_SECONDS", 60)) * time.Second,
			BatchSize:  getEnvInt("DISPATCH_BATCH_SIZE", 100),
			SendDelay:  time.Duration(getEnvInt("SEND_DELAY_MS", 350)) * time.Millisecond,
			ShardCount: getEnvInt("SHARD_COUNT", 10),
		},
		Funnel: FunnelConfig{
			DefaultTrigger:    getEnv("DEFAULT_TRIGGER", "bienvenida"),
			TopFunnelTriggers: getEnvList("TOP_FUNNEL_TRIGGERS", []string{"bienvenida", "seguimiento"}),
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) {
	if cfg.Dispatch.BatchSize <= 0 {
		panic("DISPATCH_BATCH_SIZE must be > 0")
	}
	if cfg.Dispatch.Interval <= 0 {
		panic("DISPATCH_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Dispatch.SendDelay < 0 {
		panic("SEND_DELAY_MS must be >= 0")
	}
	if cfg.Dispatch.ShardCount <= 0 {
		panic("SHARD_COUNT must be > 0")
	}
	if cfg.Funnel.DefaultTrigger == "" {
		panic("DEFAULT_TRIGGER must not be empty")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
