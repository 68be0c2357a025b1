// Package config reads server settings from the environment.
// main loads a .env file (godotenv) before calling Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the server.
type Config struct {
	Port         string
	LogLevel     string
	LogFormat    string // "json" or "console"
	ClientOrigin string
	JWTSecret    string
	TokenTTL     time.Duration
	CookieName   string
	Production   bool

	Rotation       time.Duration
	Clock          time.Duration
	MilestoneEvery int
	NumberMin      int
	NumberMax      int
	IdleTimeout    time.Duration

	HistoryDSN string
}

// DevSecret is used when JWT_SECRET is unset.
const DevSecret = "dev_secret_change_me"

// Load reads the environment and validates it.
func Load() (Config, error) {
	c := Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		JWTSecret:    getEnv("JWT_SECRET", DevSecret),
		CookieName:   getEnv("COOKIE_NAME", "prime_session"),
		Production:   os.Getenv("NODE_ENV") == "production",
		HistoryDSN:   getEnv("HISTORY_DSN", "file:history?mode=memory&cache=shared"),
	}

	var err error
	if c.TokenTTL, err = envDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if c.Rotation, err = envDuration("ROTATION_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if c.Clock, err = envDuration("CLOCK_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if c.IdleTimeout, err = envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if c.MilestoneEvery, err = envInt("MILESTONE_EVERY", 10); err != nil {
		return Config{}, err
	}
	if c.NumberMin, err = envInt("NUMBER_MIN", 1); err != nil {
		return Config{}, err
	}
	if c.NumberMax, err = envInt("NUMBER_MAX", 100); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the engine or scheduler cannot run with.
func (c Config) Validate() error {
	switch {
	case c.NumberMin > c.NumberMax:
		return fmt.Errorf("NUMBER_MIN %d is greater than NUMBER_MAX %d", c.NumberMin, c.NumberMax)
	case c.NumberMin == 0 && c.NumberMax == 0:
		return errors.New("NUMBER_MIN and NUMBER_MAX cannot both be 0")
	case c.NumberMax-c.NumberMin+1 <= 0:
		// max-min+1 wrapped around.
		return fmt.Errorf("NUMBER_MIN..NUMBER_MAX range %d..%d is too wide", c.NumberMin, c.NumberMax)
	case c.Rotation <= 0:
		return errors.New("ROTATION_INTERVAL must be positive")
	case c.Clock <= 0:
		return errors.New("CLOCK_INTERVAL must be positive")
	case c.IdleTimeout <= 0:
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	case c.TokenTTL <= 0:
		return errors.New("TOKEN_TTL must be positive")
	case c.MilestoneEvery < 1:
		return errors.New("MILESTONE_EVERY must be at least 1")
	}
	return nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
