package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogTable    string
	LogLevel    string
	ProfilePath string
	Timezone    string
	APIToken    string
}

func Load() Config {
	return Config{
		Port:        envInt("CHATLOG_PORT", 8760),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogTable:    envStr("CHATLOG_LOG_TABLE", "transcript_lines"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		ProfilePath: envStr("CHATLOG_PROFILE", ""),
		Timezone:    envStr("CHATLOG_TIMEZONE", ""),
		APIToken:    envStr("CHATLOG_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
