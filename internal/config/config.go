package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL   = "http://localhost:3000/api"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultLogTimeout   = 10 * time.Second
)

// Config is built once per process and handed to every client constructor.
type Config struct {
	APIBaseURL   string        `validate:"required,url"`
	HTTPTimeout  time.Duration `validate:"gt=0"`
	PollInterval time.Duration `validate:"gt=0"`
	LogTimeout   time.Duration `validate:"gt=0"`
	RoomURL      string        `validate:"omitempty,url"`
	PersonaFile  string
	Persona      Persona
}

// Load reads .env.local and .env (both optional) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		APIBaseURL:  strings.TrimRight(envOr("API_BASE_URL", DefaultAPIBaseURL), "/"),
		RoomURL:     os.Getenv("ROOM_URL"),
		PersonaFile: os.Getenv("PERSONA_FILE"),
	}
	var err error
	if cfg.HTTPTimeout, err = envSeconds("HTTP_TIMEOUT_SEC", DefaultHTTPTimeout); err != nil {
		return cfg, err
	}
	if cfg.LogTimeout, err = envSeconds("LOG_TIMEOUT_SEC", DefaultLogTimeout); err != nil {
		return cfg, err
	}
	if cfg.PollInterval, err = envMillis("POLL_INTERVAL_MS", DefaultPollInterval); err != nil {
		return cfg, err
	}

	cfg.Persona = DefaultPersona()
	if cfg.PersonaFile != "" {
		if cfg.Persona, err = LoadPersona(cfg.PersonaFile); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Persona.Validate()
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envSeconds(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return time.Duration(n) * time.Second, nil
}

func envMillis(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return time.Duration(n) * time.Millisecond, nil
}
