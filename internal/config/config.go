// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; variables
// already set in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	DBPath    string
	LogLevel  slog.Level
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// RedisAddr empty disables the chat lock.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChatLockTTL   time.Duration

	// AMQPURL empty disables chat event publishing.
	AMQPURL string
}

// GitHubEnabled reports whether the GitHub login routes should be mounted.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads .env (if any) and the environment. JWT_SECRET is required;
// everything else has a default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		DBPath:             envStr("DB_PATH", "data/foodshare.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          envStr("JWT_ISSUER", "foodshare"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  envStr("GITHUB_CALLBACK_URL", "http://localhost:8080/auth/github/callback"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		AMQPURL:            os.Getenv("AMQP_URL"),
	}

	var err error
	cfg.Port, err = envInt("PORT", 8080)
	collect(err)
	cfg.RedisDB, err = envInt("REDIS_DB", 0)
	collect(err)
	cfg.TokenTTL, err = envDur("JWT_TTL", 24*time.Hour)
	collect(err)
	cfg.ChatLockTTL, err = envDur("CHAT_LOCK_TTL", 5*time.Second)
	collect(err)
	cfg.LogLevel, err = envLevel("LOG_LEVEL", slog.LevelInfo)
	collect(err)

	if cfg.JWTSecret == "" {
		collect(errors.New("config: JWT_SECRET is required"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid int for %s: %q", key, v)
	}
	return n, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid duration for %s: %q", key, v)
	}
	return d, nil
}

func envLevel(key string, def slog.Level) (slog.Level, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("config: invalid log level for %s: %q", key, v)
	}
	return level, nil
}
