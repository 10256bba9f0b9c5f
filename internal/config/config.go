package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	App struct {
		ENV string `env:"APP_ENV" envDefault:"development"`
	}

	Log struct {
		Level     string `env:"LOG_LEVEL" envDefault:"info"`
		Format    string `env:"LOG_FORMAT" envDefault:"text"`
		Component string `env:"LOG_COMPONENT" envDefault:"jobswipe"`
		Source    bool   `env:"LOG_SOURCE"`
	}

	API struct {
		BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`
		Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	}

	Realtime struct {
		URL               string        `env:"WS_URL" envDefault:"ws://localhost:8080/ws/websocket"`
		ReconnectDelay    time.Duration `env:"WS_RECONNECT_DELAY" envDefault:"5s"`
		HeartbeatIncoming time.Duration `env:"WS_HEARTBEAT_INCOMING" envDefault:"4s"`
		HeartbeatOutgoing time.Duration `env:"WS_HEARTBEAT_OUTGOING" envDefault:"4s"`
		HandshakeTimeout  time.Duration `env:"WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	}

	Auth struct {
		Token     string `env:"JOBSWIPE_TOKEN"`
		TokenFile string `env:"JOBSWIPE_TOKEN_FILE"`
	}

	DB struct {
		Driver   string `env:"DB_DRIVER" envDefault:"sqlite"`
		DSN      string `env:"DB_DSN"`
		Host     string `env:"DB_HOST" envDefault:"localhost"`
		Port     string `env:"DB_PORT" envDefault:"3306"`
		User     string `env:"DB_USER" envDefault:"root"`
		Password string `env:"DB_PASSWORD" envDefault:"root"`
		Name     string `env:"DB_NAME" envDefault:"jobswipe"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	GRPC struct {
		Host string `env:"GRPC_HOST" envDefault:"127.0.0.1"`
		Port string `env:"GRPC_PORT" envDefault:"50051"`
	}

	Metrics struct {
		Addr string `env:"METRICS_ADDR" envDefault:"127.0.0.1:9090"`
	}

	Chat struct {
		PageSize int `env:"CHAT_PAGE_SIZE" envDefault:"20"`
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env config: %w", err)
	}

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if cfg.DB.DSN == "" {
		switch cfg.DB.Driver {
		case "mysql":
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		default:
			cfg.DB.DSN = cfg.DB.Name + ".db"
		}
	}

	if cfg.Chat.PageSize <= 0 {
		cfg.Chat.PageSize = 20
	}

	return cfg, nil
}

// New is Load for callers that cannot continue without a valid config.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
