package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voicefusion.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := validate(Default()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
runtime_name: fusion-test
http:
  port: 9090
chat:
  mode: ollama
  endpoint: http://localhost:11434
  model: llama3
tts:
  max_input_chars: 280
pipeline:
  max_window_turns: 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "fusion-test" {
		t.Fatalf("unexpected runtime name %q", cfg.RuntimeName)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("unexpected http port %d", cfg.HTTP.Port)
	}
	if cfg.Chat.Mode != "ollama" || cfg.Chat.Model != "llama3" {
		t.Fatalf("unexpected chat config %+v", cfg.Chat)
	}
	if cfg.TTS.MaxInputChars != 280 {
		t.Fatalf("unexpected max input chars %d", cfg.TTS.MaxInputChars)
	}
	if cfg.Pipeline.MaxWindowTurns != 8 {
		t.Fatalf("unexpected window size %d", cfg.Pipeline.MaxWindowTurns)
	}
	// Untouched sections keep their defaults.
	if cfg.Translation.Mode != "mock" {
		t.Fatalf("expected default translation mode, got %q", cfg.Translation.Mode)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
`)
	t.Setenv("FUSION_HTTP_PORT", "7070")
	t.Setenv("FUSION_TTS_VOICE", "ana")
	t.Setenv("FUSION_PIPELINE_SYSTEM_INSTRUCTION", "Answer briefly.")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 7070 {
		t.Fatalf("env override must win, got port %d", cfg.HTTP.Port)
	}
	if cfg.TTS.Voice != "ana" {
		t.Fatalf("unexpected voice %q", cfg.TTS.Voice)
	}
	if cfg.Pipeline.SystemInstruction != "Answer briefly." {
		t.Fatalf("unexpected instruction %q", cfg.Pipeline.SystemInstruction)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-standard-env")

	cfg := Default()
	applyEnvOverrides(&cfg)
	if cfg.Chat.APIKey != "sk-from-standard-env" {
		t.Fatalf("expected OPENAI_API_KEY pickup, got %q", cfg.Chat.APIKey)
	}

	t.Setenv("FUSION_CHAT_API_KEY", "sk-fusion-specific")
	cfg = Default()
	applyEnvOverrides(&cfg)
	if cfg.Chat.APIKey != "sk-fusion-specific" {
		t.Fatalf("fusion-specific key must win, got %q", cfg.Chat.APIKey)
	}
}

func TestBusServersFromEnv(t *testing.T) {
	t.Setenv("FUSION_BUS_SERVERS", "nats://a:4222, nats://b:4222 ,")

	cfg := Default()
	applyEnvOverrides(&cfg)
	if len(cfg.Bus.Servers) != 2 || cfg.Bus.Servers[0] != "nats://a:4222" || cfg.Bus.Servers[1] != "nats://b:4222" {
		t.Fatalf("unexpected servers %v", cfg.Bus.Servers)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad chat mode",
			mutate:  func(c *Config) { c.Chat.Mode = "bard" },
			wantErr: "chat.mode",
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.Chat.Mode = "openai"; c.Chat.APIKey = "" },
			wantErr: "chat.api_key",
		},
		{
			name:    "marian without endpoint",
			mutate:  func(c *Config) { c.Translation.Mode = "marian"; c.Translation.Endpoint = "" },
			wantErr: "translation.endpoint",
		},
		{
			name:    "xtts without endpoint",
			mutate:  func(c *Config) { c.TTS.Mode = "xtts"; c.TTS.Endpoint = "" },
			wantErr: "tts.endpoint",
		},
		{
			name:    "exec without command",
			mutate:  func(c *Config) { c.TTS.Mode = "exec"; c.TTS.Command = "" },
			wantErr: "tts.command",
		},
		{
			name: "exec without artifact store",
			mutate: func(c *Config) {
				c.TTS.Mode = "exec"
				c.TTS.Command = "synth --wav"
				c.Artifacts.Bucket = ""
			},
			wantErr: "artifacts",
		},
		{
			name:    "bad retention mode",
			mutate:  func(c *Config) { c.History.RetentionMode = "forever" },
			wantErr: "retention_mode",
		},
		{
			name:    "zero max input chars",
			mutate:  func(c *Config) { c.TTS.MaxInputChars = 0 },
			wantErr: "max_input_chars",
		},
		{
			name:    "empty system instruction",
			mutate:  func(c *Config) { c.Pipeline.SystemInstruction = "" },
			wantErr: "system_instruction",
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.Pipeline.MaxWindowTurns = 0 },
			wantErr: "max_window_turns",
		},
		{
			name:    "bad http port",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: "http.port",
		},
		{
			name: "external bus without servers",
			mutate: func(c *Config) {
				c.Bus.Embedded = false
				c.Bus.Servers = nil
			},
			wantErr: "bus.servers",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
