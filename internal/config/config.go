// Package config loads the ema-voice application settings from defaults, an
// optional JSON or YAML file, .env files and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	GeneratorOpenAI = "openai"
	GeneratorMock   = "mock"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"

	SilenceReturnToIdle  = "return_to_idle"
	SilenceKeepListening = "keep_listening"
)

type Config struct {
	DeepgramAPIKey string `json:"deepgram_api_key,omitempty" yaml:"deepgram_api_key,omitempty" jsonschema:"description=Deepgram API key. DEEPGRAM_API_KEY overrides it."`
	OpenAIAPIKey   string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty" jsonschema:"description=API key of the chat completions endpoint. OPENAI_API_KEY overrides it."`
	OpenAIBaseURL  string `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty" jsonschema:"description=Base URL of any OpenAI compatible endpoint such as Groq."`

	Generator    string   `json:"generator" yaml:"generator" jsonschema:"enum=openai,enum=mock,default=openai"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MockDelay    Duration `json:"mock_delay" yaml:"mock_delay" jsonschema:"description=Delay of the mock generator."`
	HistoryLimit int      `json:"history_limit" yaml:"history_limit" jsonschema:"minimum=0,description=Exchanges kept as context. 0 keeps all."`

	Voice             string `json:"voice,omitempty" yaml:"voice,omitempty"`
	ServerEndpointing bool   `json:"server_endpointing" yaml:"server_endpointing" jsonschema:"description=Let the recognizer end turns on its own as well."`

	AudioBackend string `json:"audio_backend" yaml:"audio_backend" jsonschema:"enum=miniaudio,enum=portaudio,default=miniaudio"`
	SampleRate   int    `json:"sample_rate" yaml:"sample_rate" jsonschema:"minimum=8000,maximum=48000,default=16000"`

	QuietInterval Duration `json:"quiet_interval" yaml:"quiet_interval" jsonschema:"description=Silence that ends the user's turn."`
	SilencePolicy string   `json:"silence_policy" yaml:"silence_policy" jsonschema:"enum=return_to_idle,enum=keep_listening,default=return_to_idle"`
	MaxRetries    int      `json:"max_retries" yaml:"max_retries" jsonschema:"minimum=0,maximum=10,default=3"`
}

func Default() Config {
	return Config{
		Generator:     GeneratorOpenAI,
		MockDelay:     Duration(1500 * time.Millisecond),
		AudioBackend:  BackendMiniaudio,
		SampleRate:    16000,
		QuietInterval: Duration(2 * time.Second),
		SilencePolicy: SilenceReturnToIdle,
		MaxRetries:    3,
	}
}

// LoadEnvFiles loads .env style files into the environment. Missing files
// are skipped and variables that are already set win.
func LoadEnvFiles(paths ...string) error {
	var existing []string
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Load reads path over the defaults, if path is not empty, then applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode yaml config: %w", err)
		}
	default:
		if err := sonic.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode json config: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString("DEEPGRAM_API_KEY", &c.DeepgramAPIKey)
	envString("OPENAI_API_KEY", &c.OpenAIAPIKey)
	envString("EMA_VOICE_OPENAI_BASE_URL", &c.OpenAIBaseURL)
	envString("EMA_VOICE_GENERATOR", &c.Generator)
	envString("EMA_VOICE_MODEL", &c.Model)
	envString("EMA_VOICE_SYSTEM_PROMPT", &c.SystemPrompt)
	envString("EMA_VOICE_VOICE", &c.Voice)
	envString("EMA_VOICE_AUDIO_BACKEND", &c.AudioBackend)
	envString("EMA_VOICE_SILENCE_POLICY", &c.SilencePolicy)

	return errors.Join(
		envInt("EMA_VOICE_SAMPLE_RATE", &c.SampleRate),
		envInt("EMA_VOICE_MAX_RETRIES", &c.MaxRetries),
		envInt("EMA_VOICE_HISTORY_LIMIT", &c.HistoryLimit),
		envBool("EMA_VOICE_SERVER_ENDPOINTING", &c.ServerEndpointing),
		envDuration("EMA_VOICE_QUIET_INTERVAL", &c.QuietInterval),
		envDuration("EMA_VOICE_MOCK_DELAY", &c.MockDelay),
	)
}

func (c Config) Validate() error {
	var errs []error

	switch c.Generator {
	case GeneratorOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("openai generator needs OPENAI_API_KEY"))
		}
	case GeneratorMock:
	default:
		errs = append(errs, fmt.Errorf("generator must be one of openai|mock, got %q", c.Generator))
	}

	switch c.AudioBackend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		errs = append(errs, fmt.Errorf("audio backend must be one of miniaudio|portaudio, got %q", c.AudioBackend))
	}

	switch c.SilencePolicy {
	case SilenceReturnToIdle, SilenceKeepListening:
	default:
		errs = append(errs, fmt.Errorf("silence policy must be one of return_to_idle|keep_listening, got %q", c.SilencePolicy))
	}

	if c.DeepgramAPIKey == "" {
		errs = append(errs, errors.New("DEEPGRAM_API_KEY is required"))
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("sample rate must be between 8000 and 48000, got %d", c.SampleRate))
	}
	if c.QuietInterval.Duration() <= 0 {
		errs = append(errs, errors.New("quiet interval must be > 0"))
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("max retries must be between 0 and 10, got %d", c.MaxRetries))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("history limit must be >= 0"))
	}
	if c.MockDelay.Duration() < 0 {
		errs = append(errs, errors.New("mock delay must be >= 0"))
	}

	return errors.Join(errs...)
}

// Schema describes the config file format.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-voice configuration"

	data, err := sonic.ConfigStd.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config schema: %w", err)
	}
	return data, nil
}

func envString(key string, target *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*target = v
	return nil
}

func envBool(key string, target *bool) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	*target = v
	return nil
}

func envDuration(key string, target *Duration) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := parseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = v
	return nil
}
