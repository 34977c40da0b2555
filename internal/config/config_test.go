package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/tmc/ttsstudio/api"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return &fakeBinder{fs: fs}
}

// clearKeyEnv isolates tests from credentials in the environment.
func clearKeyEnv(t *testing.T) {
	for _, k := range []string{"TTSSTUDIO_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model != "gemini-2.5-flash-preview-tts" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Voice != "Kore" {
		t.Errorf("Voice = %q; want Kore", cfg.Voice)
	}
	if cfg.Transport != TransportGRPC {
		t.Errorf("Transport = %q; want grpc", cfg.Transport)
	}
	if cfg.FPS != 60 || cfg.FFTSize != 256 {
		t.Errorf("FPS = %d, FFTSize = %d; want 60, 256", cfg.FPS, cfg.FFTSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv(t)
	t.Chdir(t.TempDir())
	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Load() = %+v; want defaults", cfg)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("TTSSTUDIO_VOICE", "Charon")
	defaults := DefaultConfig()
	cmd := newFlagBinder(t, defaults, "--voice=Puck", "--fps=30", "--transport=live", "--api-key=flag-key")

	cfg, err := Load(LoadOptions{Cmd: cmd, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Voice != "Puck" || cfg.FPS != 30 || cfg.Transport != TransportLive || cfg.APIKey != "flag-key" {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("TTSSTUDIO_PLAYER", "aplay -")
	t.Setenv("TTSSTUDIO_FFT_SIZE", "512")
	t.Setenv("TTSSTUDIO_ENDPOINT", "localhost:9999")

	cfg, err := Load(LoadOptions{Cmd: newFlagBinder(t, DefaultConfig()), Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Player != "aplay -" || cfg.FFTSize != 512 || cfg.Endpoint != "localhost:9999" {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_APIKeyFallbacks(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"none", nil, ""},
		{"google", map[string]string{"GOOGLE_API_KEY": "g"}, "g"},
		{"gemini over google", map[string]string{"GEMINI_API_KEY": "m", "GOOGLE_API_KEY": "g"}, "m"},
		{"prefixed first", map[string]string{"TTSSTUDIO_API_KEY": "t", "GEMINI_API_KEY": "m"}, "t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.APIKey != tt.want {
				t.Errorf("APIKey = %q; want %q", cfg.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "ttsstudio.yaml")
	content := "voice: Fenrir\nfps: 24\nplayer: ffplay -nodisp -i -\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: newFlagBinder(t, DefaultConfig()), ConfigFile: cfgFile, Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Voice != "Fenrir" || cfg.FPS != 24 || cfg.Player != "ffplay -nodisp -i -" {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_ConfigFileInWorkingDir(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ttsstudio.toml"), []byte("voice = \"Zephyr\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VoiceName() != api.Zephyr {
		t.Errorf("VoiceName() = %q; want Zephyr", cfg.VoiceName())
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), Defaults: DefaultConfig()})
	if err == nil {
		t.Fatal("Load() error = nil; want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"voice", func(c *Config) { c.Voice = "Aoede" }},
		{"transport", func(c *Config) { c.Transport = "grpc" }},
		{"fps", func(c *Config) { c.FPS = 0 }},
		{"fft size", func(c *Config) { c.FFTSize = 300 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil; want error")
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Voice = "puck"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with lower-case voice = %v", err)
	}
	if cfg.VoiceName() != api.Puck {
		t.Errorf("VoiceName() = %q; want Puck", cfg.VoiceName())
	}
}
