package config

import (
	"time"

	appenv "github.com/bellhop-dev/bellhop/internal/env"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port string             `env:"PORT" envDefault:"8080"`
	Env  appenv.Environment `env:"ENV" envDefault:"development"`

	Auth      Auth      `envPrefix:"AUTH_"`
	Hub       Hub       `envPrefix:"HUB_"`
	Postgres  Postgres  `envPrefix:"POSTGRES_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	RateLimit RateLimit `envPrefix:"RATE_"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

type Hub struct {
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`
	// HeartbeatTimeoutFactor multiplies the interval to get the silence
	// window after which a connection is pruned.
	HeartbeatTimeoutFactor int `env:"HEARTBEAT_TIMEOUT_FACTOR" envDefault:"3"`
	WriteQueueSize         int `env:"WRITE_QUEUE_SIZE" envDefault:"32"`
}

func (h Hub) HeartbeatTimeout() time.Duration {
	return h.HeartbeatInterval * time.Duration(h.HeartbeatTimeoutFactor)
}

type Postgres struct {
	URL string `env:"URL"`
}

type Redis struct {
	URL string `env:"URL"`
}

type RateLimit struct {
	Limit float64 `env:"LIMIT" envDefault:"10"`
	Burst int     `env:"BURST" envDefault:"20"`
}

func Read() (Config, error) {
	return env.ParseAs[Config]()
}
