package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка оверлеев.

type Config struct {
	Overlay OverlayConfig `yaml:"overlay"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type OverlayConfig struct {
	DataPath        string   `yaml:"data_path"`
	DefinitionsPath string   `yaml:"definitions_path"`
	Debug           int      `yaml:"debug"`
	LogDir          string   `yaml:"log_dir"`
	RecomputeWorlds []string `yaml:"recalculate_chunk_disguises_blacklist"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // badger | file | redis | memory
	Compression bool   `yaml:"compression"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

const (
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Overlay: OverlayConfig{
			DataPath:        "data",
			DefinitionsPath: "definitions",
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "overlay:",
		},
	}
}

// GetMetricsPort возвращает порт Prometheus: config -> env -> 0 (выключено)
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "OVERLAY_METRICS_PORT", 0)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, которые нельзя исправить молча
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger, BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("неизвестный backend хранилища %q", c.Storage.Backend)
	}
	if c.Overlay.Debug < 0 || c.Overlay.Debug > 5 {
		return fmt.Errorf("overlay.debug должен быть в диапазоне 0..5, получено %d", c.Overlay.Debug)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV OVERLAY_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OVERLAY_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
