package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	History     HistoryConfig   `yaml:"history"`
	Translation TranslateConfig `yaml:"translation"`
	Chat        ChatConfig      `yaml:"chat"`
	TTS         TTSConfig       `yaml:"tts"`
	Artifacts   ArtifactsConfig `yaml:"artifacts"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type HistoryConfig struct {
	Path             string `yaml:"path"`
	RetentionMode    string `yaml:"retention_mode"`
	RetentionDays    int    `yaml:"retention_days"`
	MaxConversations int    `yaml:"max_conversations"`
	VacuumOnStart    bool   `yaml:"vacuum_on_start"`
}

type TranslateConfig struct {
	Mode       string `yaml:"mode"` // mock, marian
	Endpoint   string `yaml:"endpoint"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"`
}

type ChatConfig struct {
	Mode        string  `yaml:"mode"` // mock, openai, ollama
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Mode          string `yaml:"mode"` // mock, xtts, openai, exec
	Endpoint      string `yaml:"endpoint"`
	Command       string `yaml:"command"`
	Voice         string `yaml:"voice"`
	Language      string `yaml:"language"`
	MaxInputChars int    `yaml:"max_input_chars"`
	CacheSize     int    `yaml:"cache_size"`
	TimeoutMS     int    `yaml:"timeout_ms"`
}

type ArtifactsConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Bucket          string `yaml:"bucket"`
	UseSSL          bool   `yaml:"use_ssl"`
	URLExpiryMinute int    `yaml:"url_expiry_minutes"`
}

type PipelineConfig struct {
	SystemInstruction string `yaml:"system_instruction"`
	MaxWindowTurns    int    `yaml:"max_window_turns"`
	TranslateTimeout  int    `yaml:"translate_timeout_ms"`
	ChatTimeout       int    `yaml:"chat_timeout_ms"`
	SynthesisTimeout  int    `yaml:"synthesis_timeout_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "voicefusion-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		History: HistoryConfig{
			Path:             "./data/voicefusion-history.db",
			RetentionMode:    "session",
			RetentionDays:    30,
			MaxConversations: 10000,
		},
		Translation: TranslateConfig{
			Mode:       "mock",
			Endpoint:   "http://localhost:8001",
			TimeoutMS:  15000,
			MaxRetries: 2,
		},
		Chat: ChatConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "gpt-4o",
			MaxTokens:   512,
			Temperature: 0.7,
			TimeoutMS:   60000,
		},
		TTS: TTSConfig{
			Mode:          "mock",
			Endpoint:      "http://localhost:8002",
			Voice:         "default",
			Language:      "en",
			MaxInputChars: 500,
			CacheSize:     256,
			TimeoutMS:     45000,
		},
		Artifacts: ArtifactsConfig{
			Endpoint:        "localhost:9000",
			Bucket:          "voicefusion-audio",
			URLExpiryMinute: 60,
		},
		Pipeline: PipelineConfig{
			SystemInstruction: "You are VoiceFusion AI, a helpful voice assistant.",
			MaxWindowTurns:    20,
			TranslateTimeout:  15000,
			ChatTimeout:       60000,
			SynthesisTimeout:  45000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "FUSION_RUNTIME_NAME")
	overrideString(&cfg.Environment, "FUSION_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "FUSION_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "FUSION_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "FUSION_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "FUSION_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "FUSION_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "FUSION_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "FUSION_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "FUSION_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "FUSION_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "FUSION_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "FUSION_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "FUSION_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "FUSION_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "FUSION_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "FUSION_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "FUSION_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "FUSION_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "FUSION_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxConversations, "FUSION_HISTORY_MAX_CONVERSATIONS")
	overrideBool(&cfg.History.VacuumOnStart, "FUSION_HISTORY_VACUUM_ON_START")
	overrideString(&cfg.Translation.Mode, "FUSION_TRANSLATION_MODE")
	overrideString(&cfg.Translation.Endpoint, "FUSION_TRANSLATION_ENDPOINT")
	overrideInt(&cfg.Translation.TimeoutMS, "FUSION_TRANSLATION_TIMEOUT_MS")
	overrideInt(&cfg.Translation.MaxRetries, "FUSION_TRANSLATION_MAX_RETRIES")
	overrideString(&cfg.Chat.Mode, "FUSION_CHAT_MODE")
	overrideString(&cfg.Chat.Endpoint, "FUSION_CHAT_ENDPOINT")
	overrideString(&cfg.Chat.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Chat.APIKey, "FUSION_CHAT_API_KEY")
	overrideString(&cfg.Chat.Model, "FUSION_CHAT_MODEL")
	overrideInt(&cfg.Chat.MaxTokens, "FUSION_CHAT_MAX_TOKENS")
	overrideFloat(&cfg.Chat.Temperature, "FUSION_CHAT_TEMPERATURE")
	overrideInt(&cfg.Chat.TimeoutMS, "FUSION_CHAT_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "FUSION_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "FUSION_TTS_ENDPOINT")
	overrideString(&cfg.TTS.Command, "FUSION_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "FUSION_TTS_VOICE")
	overrideString(&cfg.TTS.Language, "FUSION_TTS_LANGUAGE")
	overrideInt(&cfg.TTS.MaxInputChars, "FUSION_TTS_MAX_INPUT_CHARS")
	overrideInt(&cfg.TTS.CacheSize, "FUSION_TTS_CACHE_SIZE")
	overrideInt(&cfg.TTS.TimeoutMS, "FUSION_TTS_TIMEOUT_MS")
	overrideString(&cfg.Artifacts.Endpoint, "FUSION_ARTIFACTS_ENDPOINT")
	overrideString(&cfg.Artifacts.AccessKey, "FUSION_ARTIFACTS_ACCESS_KEY")
	overrideString(&cfg.Artifacts.SecretKey, "FUSION_ARTIFACTS_SECRET_KEY")
	overrideString(&cfg.Artifacts.Bucket, "FUSION_ARTIFACTS_BUCKET")
	overrideBool(&cfg.Artifacts.UseSSL, "FUSION_ARTIFACTS_USE_SSL")
	overrideInt(&cfg.Artifacts.URLExpiryMinute, "FUSION_ARTIFACTS_URL_EXPIRY_MINUTES")
	overrideString(&cfg.Pipeline.SystemInstruction, "FUSION_PIPELINE_SYSTEM_INSTRUCTION")
	overrideInt(&cfg.Pipeline.MaxWindowTurns, "FUSION_PIPELINE_MAX_WINDOW_TURNS")
	overrideInt(&cfg.Pipeline.TranslateTimeout, "FUSION_PIPELINE_TRANSLATE_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.ChatTimeout, "FUSION_PIPELINE_CHAT_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.SynthesisTimeout, "FUSION_PIPELINE_SYNTHESIS_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Translation.Mode {
	case "mock", "marian":
	default:
		return errors.New("translation.mode must be one of mock|marian")
	}
	if cfg.Translation.Mode == "marian" && cfg.Translation.Endpoint == "" {
		return errors.New("translation.endpoint must be set when mode=marian")
	}
	if cfg.Translation.MaxRetries < 0 {
		return errors.New("translation.max_retries must be >= 0")
	}
	switch cfg.Chat.Mode {
	case "mock", "openai", "ollama":
	default:
		return errors.New("chat.mode must be one of mock|openai|ollama")
	}
	if cfg.Chat.Mode == "openai" && cfg.Chat.APIKey == "" {
		return errors.New("chat.api_key must be set when mode=openai")
	}
	if cfg.Chat.Mode == "ollama" && cfg.Chat.Endpoint == "" {
		return errors.New("chat.endpoint must be set when mode=ollama")
	}
	if cfg.Chat.MaxTokens < 0 {
		return errors.New("chat.max_tokens must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "mock", "xtts", "openai", "exec":
	default:
		return errors.New("tts.mode must be one of mock|xtts|openai|exec")
	}
	if cfg.TTS.Mode == "xtts" && cfg.TTS.Endpoint == "" {
		return errors.New("tts.endpoint must be set when mode=xtts")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.MaxInputChars <= 0 {
		return errors.New("tts.max_input_chars must be positive")
	}
	if cfg.TTS.CacheSize < 0 {
		return errors.New("tts.cache_size must be >= 0")
	}
	if cfg.TTS.Mode == "openai" || cfg.TTS.Mode == "exec" {
		if cfg.Artifacts.Endpoint == "" || cfg.Artifacts.Bucket == "" {
			return errors.New("artifacts.endpoint and artifacts.bucket must be set for byte-producing tts modes")
		}
	}
	if cfg.TTS.Mode == "openai" && cfg.Chat.APIKey == "" {
		return errors.New("chat.api_key must be set when tts mode=openai")
	}
	if cfg.Pipeline.SystemInstruction == "" {
		return errors.New("pipeline.system_instruction must not be empty")
	}
	if cfg.Pipeline.MaxWindowTurns <= 0 {
		return errors.New("pipeline.max_window_turns must be positive")
	}
	if cfg.Pipeline.TranslateTimeout <= 0 || cfg.Pipeline.ChatTimeout <= 0 || cfg.Pipeline.SynthesisTimeout <= 0 {
		return errors.New("pipeline stage timeouts must be positive")
	}
	return nil
}
