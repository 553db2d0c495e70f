package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/adventure-engine/internal/logger"
	"github.com/tatianab/adventure-engine/internal/storage"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "adventure.yaml"

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string `yaml:"-"`

	Models  ModelsConfig   `yaml:"models"`
	Media   MediaConfig    `yaml:"media"`
	Storage storage.Config `yaml:"storage"`
	Web     WebConfig      `yaml:"web"`
	Logging logger.Config  `yaml:"logging"`
}

// ModelsConfig names the Gemini models used for each capability.
type ModelsConfig struct {
	Story  string `yaml:"story"`
	Image  string `yaml:"image"`
	Speech string `yaml:"speech"`
	Voice  string `yaml:"voice"`
}

// MediaConfig bounds image and speech generation.
type MediaConfig struct {
	ImageTimeout  time.Duration `yaml:"image_timeout"`
	SpeechTimeout time.Duration `yaml:"speech_timeout"`
	// Audio disables the audio device entirely; narration still downloads.
	Audio bool `yaml:"audio"`
}

// WebConfig configures the browser bridge.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Story:  "gemini-2.5-flash",
			Image:  "imagen-4.0-generate-001",
			Speech: "gemini-2.5-flash-preview-tts",
			Voice:  "Kore",
		},
		Media: MediaConfig{
			ImageTimeout:  60 * time.Second,
			SpeechTimeout: 60 * time.Second,
			Audio:         true,
		},
		Storage: storage.Config{
			Backend: "file",
			Dir:     ".saves",
		},
		Web: WebConfig{
			Addr: "127.0.0.1:8080",
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "console",
			Output: "adventure.log",
		},
	}
}

// LoadConfig loads .env, then the YAML file at path (optional when it is
// DefaultPath), then environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = os.Getenv("API_KEY")
	}
	if v := os.Getenv("ADVENTURE_SAVE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("ADVENTURE_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("ADVENTURE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports the first setting that prevents the game from starting.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is not set")
	}
	if c.Models.Story == "" || c.Models.Image == "" || c.Models.Speech == "" {
		return errors.New("models.story, models.image and models.speech must be set")
	}
	if c.Media.ImageTimeout <= 0 || c.Media.SpeechTimeout <= 0 {
		return errors.New("media timeouts must be positive")
	}
	if c.Storage.Backend == "redis" && c.Storage.Redis.Addr == "" {
		return errors.New("storage.redis.addr is required for the redis backend")
	}
	return nil
}
