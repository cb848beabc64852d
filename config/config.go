// Package config loads runtime settings from the environment and optional
// .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"voicenote/intake"
	"voicenote/transcriber"
)

type Config struct {
	APIKey        string
	Model         string  `validate:"required"`
	Temperature   float32 `validate:"gte=0,lte=2"`
	SaveDir       string
	Addr          string `validate:"required,hostname_port"`
	MaxUploadSize int64  `validate:"gt=0"`
	// EnvFile is the .env file that was loaded, if any.
	EnvFile string
}

// EnvFiles are tried in order; the first one present is loaded. Variables
// already set in the environment win over file values.
var EnvFiles = []string{".env", ".env.local"}

var validate = validator.New()

func Default() Config {
	return Config{
		Model:         transcriber.DefaultModel,
		Temperature:   transcriber.DefaultTemperature,
		SaveDir:       ".",
		Addr:          "127.0.0.1:8080",
		MaxUploadSize: intake.MaxSize,
	}
}

func Load() (Config, error) {
	cfg := Default()

	for _, path := range EnvFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return cfg, fmt.Errorf("error loading %s: %w", path, err)
		}
		cfg.EnvFile = path
		break
	}

	cfg.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	if v := firstEnv("VOICENOTE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := firstEnv("VOICENOTE_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return cfg, fmt.Errorf("invalid VOICENOTE_TEMPERATURE %q: %w", v, err)
		}
		cfg.Temperature = float32(t)
	}
	if v := firstEnv("VOICENOTE_SAVE_DIR"); v != "" {
		cfg.SaveDir = v
	}
	if v := firstEnv("VOICENOTE_ADDR"); v != "" {
		cfg.Addr = v
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasCredential reports whether a Gemini key was found. A missing key is
// not a load error; requests fail when they are made.
func (c Config) HasCredential() bool { return c.APIKey != "" }

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
