// README: Config loader with env defaults for the client engine and the dispatch sim.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	API struct {
		BaseURL string
	}
	Push struct {
		URL string
	}
	Maps struct {
		APIKey string
	}
	Sync struct {
		PollInterval time.Duration
		AcceptWindow time.Duration
	}
	Sim struct {
		Addr          string
		RedisAddr     string
		RedisPassword string
	}
}

func Load() Config {
	_ = godotenv.Load(".env")

	var cfg Config
	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "hail"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))

	cfg.API.BaseURL = cast.ToString(getOrReturnDefault("HAIL_API_URL", "http://localhost:8080"))
	cfg.Push.URL = cast.ToString(getOrReturnDefault("HAIL_PUSH_URL", "ws://localhost:8080/ws"))
	cfg.Maps.APIKey = cast.ToString(getOrReturnDefault("MAPS_API_KEY", ""))

	cfg.Sync.PollInterval = time.Duration(cast.ToInt(getOrReturnDefault("HAIL_POLL_SECONDS", 5))) * time.Second
	cfg.Sync.AcceptWindow = time.Duration(cast.ToInt(getOrReturnDefault("HAIL_ACCEPT_SECONDS", 60))) * time.Second

	cfg.Sim.Addr = cast.ToString(getOrReturnDefault("HAIL_SIM_ADDR", ":8080"))
	cfg.Sim.RedisAddr = cast.ToString(getOrReturnDefault("REDIS_ADDR", "localhost:6379"))
	cfg.Sim.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
