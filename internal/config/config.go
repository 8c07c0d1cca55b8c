package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса генерации уровней

type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Storage  StorageConfig           `yaml:"storage"`
	Cache    CacheConfig             `yaml:"cache"`
	EventBus EventBusConfig          `yaml:"eventbus"`
	Layouts  map[string]LayoutConfig `yaml:"layouts"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
}

type EventBusConfig struct {
	URL string `yaml:"url"`
}

// LayoutConfig описывает именованную раскладку уровня: список частей
// и цепочка их взаимного размещения
type LayoutConfig struct {
	Scale          float64      `yaml:"scale"`
	Seed           int64        `yaml:"seed"`
	NoiseAmplitude float64      `yaml:"noise_amplitude"`
	Parts          []PartConfig `yaml:"parts"`
}

// PartConfig описывает одну часть раскладки.
// Первая часть размещается в начале координат; у остальных After и Align
// задают часть-предшественника (по имени) и сторону примыкания
type PartConfig struct {
	Name      string      `yaml:"name"`
	Biome     string      `yaml:"biome"`
	Width     float64     `yaml:"width"`
	Height    float64     `yaml:"height"`
	Count     int         `yaml:"count"`
	FillRatio float64     `yaml:"fill_ratio"`
	Points    [][]float64 `yaml:"points,omitempty"` // явные точки [x, y]
	After     string      `yaml:"after,omitempty"`
	Align     string      `yaml:"align,omitempty"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "LEVELGEN_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "LEVELGEN_METRICS_PORT", 2112)
}

// GetStoragePath возвращает путь к базе уровней с приоритетом config -> env -> default
func (s *StorageConfig) GetStoragePath() string {
	if s.Path != "" {
		return s.Path
	}
	if envVal := os.Getenv("LEVELGEN_STORAGE_PATH"); envVal != "" {
		return envVal
	}
	return "data/levels"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Default возвращает конфигурацию по умолчанию: одна встроенная раскладка
// "default" с цепочкой зон от стартовой поляны до арены босса
func Default() *Config {
	return &Config{
		Layouts: map[string]LayoutConfig{
			"default": {
				Scale:          4.0,
				Seed:           1,
				NoiseAmplitude: 0.35,
				Parts: []PartConfig{
					{Name: "home", Biome: "home", Width: 30, Height: 30, Count: 5, FillRatio: 0.2},
					{Name: "safe", Biome: "safe", Width: 10, Height: 10, Count: 4, FillRatio: 1.0,
						Points: [][]float64{{-3, -3}, {3, -3}, {3, 3}, {-3, 3}},
						After:  "home", Align: "right"},
					{Name: "forest", Biome: "forest", Width: 120, Height: 120, Count: 40, FillRatio: 0.35,
						After: "safe", Align: "right"},
					{Name: "cave", Biome: "cave", Width: 120, Height: 120, Count: 40, FillRatio: 0.3,
						After: "forest", Align: "down"},
					{Name: "mushroom", Biome: "mushroom", Width: 60, Height: 60, Count: 20, FillRatio: 0.25,
						After: "cave", Align: "left"},
					{Name: "meat", Biome: "meat", Width: 60, Height: 60, Count: 20, FillRatio: 0.25,
						After: "mushroom", Align: "left"},
					{Name: "boss", Biome: "boss", Width: 20, Height: 20, Count: 2, FillRatio: 1.0,
						Points: [][]float64{{0, 6}, {0, -6}},
						After:  "meat", Align: "down"},
				},
			},
		},
	}
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV LEVELGEN_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("LEVELGEN_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	for name, layout := range c.Layouts {
		if len(layout.Parts) == 0 {
			return fmt.Errorf("config: layout %q has no parts", name)
		}
		seen := make(map[string]bool, len(layout.Parts))
		for i, p := range layout.Parts {
			if p.Name == "" {
				return fmt.Errorf("config: layout %q: part %d has no name", name, i)
			}
			if seen[p.Name] {
				return fmt.Errorf("config: layout %q: duplicate part name %q", name, p.Name)
			}
			seen[p.Name] = true
			if i == 0 && p.After != "" {
				return fmt.Errorf("config: layout %q: first part %q must not have 'after'", name, p.Name)
			}
			if i > 0 {
				if p.After == "" {
					return fmt.Errorf("config: layout %q: part %q requires 'after'", name, p.Name)
				}
				if !seen[p.After] {
					return fmt.Errorf("config: layout %q: part %q placed after unknown part %q", name, p.Name, p.After)
				}
			}
		}
	}
	return nil
}
