package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"duel_arena/internal/logger"
	"duel_arena/internal/match"
	"duel_arena/internal/presence"
)

// Config - все настройки сервиса из окружения (.env подхватывается, если есть)
type Config struct {
	AppPort       string `env:"APP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret   string        `env:"JWT_SECRET"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`
	BotToken    string        `env:"BOT_TOKEN"`
	InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"1h"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`

	RateLimit       int           `env:"RATE_LIMIT" envDefault:"60"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	Engine   EngineConfig
	Presence PresenceConfig
}

// EngineConfig - тайминги машины состояний комнат
type EngineConfig struct {
	CountdownTicks    int           `env:"COUNTDOWN_TICKS" envDefault:"3"`
	CountdownInterval time.Duration `env:"COUNTDOWN_INTERVAL" envDefault:"1s"`
	LoadTimeout       time.Duration `env:"LOAD_TIMEOUT" envDefault:"5s"`
	RoundTimeout      time.Duration `env:"ROUND_TIMEOUT" envDefault:"15s"`
	RevealDelay       time.Duration `env:"REVEAL_DELAY" envDefault:"3s"`
	FinishedDelay     time.Duration `env:"FINISHED_DELAY" envDefault:"8s"`
	SettleTimeout     time.Duration `env:"SETTLE_TIMEOUT" envDefault:"10s"`
	CleanupDelay      time.Duration `env:"ROOM_CLEANUP_DELAY" envDefault:"30s"`
	JanitorInterval   time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"30s"`
	ReconnectGrace    time.Duration `env:"RECONNECT_GRACE" envDefault:"20s"`
}

const devJWTSecret = "dev-secret"

// Parse читает окружение без .env
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, eris.Wrap(err, "failed to parse environment variables")
	}
	if cfg.JWTSecret == "" {
		// публичный секрет допустим только в локальной отладке
		if cfg.LogLevel != "debug" {
			return nil, eris.New("JWT_SECRET не задан")
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.Engine.CountdownTicks < 0 {
		return nil, eris.New("COUNTDOWN_TICKS не может быть отрицательным")
	}
	return cfg, nil
}

// Load подгружает .env и завершает процесс при ошибке конфигурации
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug(".env не найден, используем окружение")
	}
	cfg, err := Parse()
	if err != nil {
		logger.Fatal("ошибка конфигурации", "error", err)
	}
	return cfg
}

func (c *Config) Timings() match.Timings {
	return match.Timings{
		CountdownTicks:    c.Engine.CountdownTicks,
		CountdownInterval: c.Engine.CountdownInterval,
		LoadTimeout:       c.Engine.LoadTimeout,
		RoundTimeout:      c.Engine.RoundTimeout,
		RevealDelay:       c.Engine.RevealDelay,
		FinishedDelay:     c.Engine.FinishedDelay,
		SettleTimeout:     c.Engine.SettleTimeout,
		CleanupDelay:      c.Engine.CleanupDelay,
	}
}

func (c *Config) PresenceConfig() presence.Config {
	return presence.Config{
		HeartbeatInterval: c.Presence.HeartbeatInterval,
		HeartbeatTimeout:  c.Presence.HeartbeatTimeout,
		ReconnectGrace:    c.Presence.ReconnectGrace,
	}
}
