package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Все поля имеют значения по умолчанию, см. Default().
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Client    ClientConfig    `yaml:"client"`
	World     WorldConfig     `yaml:"world"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Directory DirectoryConfig `yaml:"directory"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	HTTPPort int    `yaml:"http_port"`
	KCPAddr  string `yaml:"kcp_addr"` // пусто - KCP выключен
}

type RoomsConfig struct {
	ChangeLogCap      int           `yaml:"change_log_cap"`
	DefaultMaxPlayers int           `yaml:"default_max_players"`
	MaxPlayersLimit   int           `yaml:"max_players_limit"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	EmptyRoomGrace    time.Duration `yaml:"empty_room_grace"`
	MailboxSize       int           `yaml:"mailbox_size"`
	OutboxSize        int           `yaml:"outbox_size"`    // кадров в очереди отправки игрока
	SyncPageSize      int           `yaml:"sync_page_size"` // записей журнала в одном кадре
}

type ClientConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	UpdateRateHz   int           `yaml:"update_rate_hz"`
	MailboxSize    int           `yaml:"mailbox_size"`
}

type WorldConfig struct {
	ViewRadius  int `yaml:"view_radius"`
	EvictRadius int `yaml:"evict_radius"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type DirectoryConfig struct {
	RedisAddr     string `yaml:"redis_addr"` // пусто - каталог выключен
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Rooms: RoomsConfig{
			ChangeLogCap:      10000,
			DefaultMaxPlayers: 8,
			MaxPlayersLimit:   32,
			SweepInterval:     30 * time.Second,
			EmptyRoomGrace:    0,
			MailboxSize:       1024,
			OutboxSize:        1024,
			SyncPageSize:      1000,
		},
		Client: ClientConfig{
			ConnectTimeout: 10 * time.Second,
			UpdateRateHz:   20,
			MailboxSize:    256,
		},
		World: WorldConfig{
			ViewRadius:  3,
			EvictRadius: 6,
		},
		EventBus: EventBusConfig{
			Stream:    "BLOCKVERSE_EVENTS",
			Retention: 24,
		},
		Directory: DirectoryConfig{
			Key: "blockverse:rooms",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "blockverse-server",
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
	}
}

// GetHTTPPort возвращает HTTP порт с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, "BLOCKVERSE_HTTP_PORT", 8080)
}

// GetKCPAddr возвращает адрес KCP listener'а (config -> env)
func (s *ServerConfig) GetKCPAddr() string {
	if s.KCPAddr != "" {
		return s.KCPAddr
	}
	return os.Getenv("BLOCKVERSE_KCP_ADDR")
}

// GetJWTSecret возвращает секрет подписи admin-токенов (config -> env)
func (a *AuthConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("BLOCKVERSE_JWT_SECRET")
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

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV BLOCKVERSE_CONFIG; если и он
// пуст, возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BLOCKVERSE_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя молча исправить
func (c *Config) Validate() error {
	if c.Rooms.ChangeLogCap < 2 {
		return fmt.Errorf("rooms.change_log_cap должен быть >= 2, получено %d", c.Rooms.ChangeLogCap)
	}
	if c.Rooms.DefaultMaxPlayers < 1 || c.Rooms.DefaultMaxPlayers > c.Rooms.MaxPlayersLimit {
		return fmt.Errorf("rooms.default_max_players вне диапазона [1,%d]: %d",
			c.Rooms.MaxPlayersLimit, c.Rooms.DefaultMaxPlayers)
	}
	if c.Rooms.OutboxSize < 1 {
		return fmt.Errorf("rooms.outbox_size должен быть положительным")
	}
	if c.Rooms.SyncPageSize < 1 {
		return fmt.Errorf("rooms.sync_page_size должен быть положительным")
	}
	if c.Rooms.SweepInterval <= 0 {
		return fmt.Errorf("rooms.sweep_interval должен быть положительным")
	}
	if c.Client.UpdateRateHz <= 0 {
		return fmt.Errorf("client.update_rate_hz должен быть положительным")
	}
	if c.World.EvictRadius < c.World.ViewRadius {
		return fmt.Errorf("world.evict_radius (%d) меньше view_radius (%d)",
			c.World.EvictRadius, c.World.ViewRadius)
	}
	return nil
}
