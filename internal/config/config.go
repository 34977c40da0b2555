package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/spectrum"
)

// Transports accepted by --transport.
const (
	TransportGRPC = "grpc"
	TransportLive = "live"
)

// Keys are shared by flags, config files and (upper-cased, prefixed) env vars.
type Config struct {
	APIKey     string `mapstructure:"api-key"`
	Model      string `mapstructure:"model"`
	LiveModel  string `mapstructure:"live-model"`
	Voice      string `mapstructure:"voice"`
	Player     string `mapstructure:"player"`
	Transport  string `mapstructure:"transport"`
	Endpoint   string `mapstructure:"endpoint"`
	FPS        int    `mapstructure:"fps"`
	FFTSize    int    `mapstructure:"fft-size"`
	LogFile    string `mapstructure:"log-file"`
	AudioTrace bool   `mapstructure:"audio-trace"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Model:     api.DefaultModel,
		LiveModel: api.DefaultLiveModel,
		Voice:     string(api.DefaultVoice),
		Transport: TransportGRPC,
		FPS:       60,
		FFTSize:   spectrum.DefaultFFTSize,
		LogFile:   "ttsstudio-debug.log",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("api-key", defaults.APIKey, "Gemini API key (defaults to GEMINI_API_KEY or GOOGLE_API_KEY)")
	fs.String("model", defaults.Model, "Speech model used with the grpc transport")
	fs.String("live-model", defaults.LiveModel, "Model used with the live transport")
	fs.String("voice", defaults.Voice, "Voice: Kore, Puck, Charon, Fenrir or Zephyr")
	fs.String("player", defaults.Player, "Audio player command (auto-detected when empty)")
	fs.String("transport", defaults.Transport, "Speech transport: grpc or live")
	fs.String("endpoint", defaults.Endpoint, "host:port of the Generative Language service (library default when empty)")
	fs.Int("fps", defaults.FPS, "Visualizer frames per second")
	fs.Int("fft-size", defaults.FFTSize, "Analyser FFT size (power of two)")
	fs.String("log-file", defaults.LogFile, "Log file used while the TUI is running")
	fs.Bool("audio-trace", defaults.AudioTrace, "Log detailed audio pipeline events")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix("TTSSTUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindEnv("api-key", "TTSSTUDIO_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ttsstudio")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("api-key", c.APIKey)
	v.SetDefault("model", c.Model)
	v.SetDefault("live-model", c.LiveModel)
	v.SetDefault("voice", c.Voice)
	v.SetDefault("player", c.Player)
	v.SetDefault("transport", c.Transport)
	v.SetDefault("endpoint", c.Endpoint)
	v.SetDefault("fps", c.FPS)
	v.SetDefault("fft-size", c.FFTSize)
	v.SetDefault("log-file", c.LogFile)
	v.SetDefault("audio-trace", c.AudioTrace)
}

// Validate checks values that would otherwise fail deep inside a session.
func (c Config) Validate() error {
	var errs []error
	if _, err := api.ParseVoice(c.Voice); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Transport) {
	case TransportGRPC, TransportLive:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportGRPC, TransportLive))
	}
	if c.FPS < 1 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("fps %d outside [1, 240]", c.FPS))
	}
	if _, err := spectrum.New(nil, 1, nil, spectrum.WithFFTSize(c.FFTSize)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VoiceName returns the configured voice, falling back to the default.
func (c Config) VoiceName() api.VoiceName {
	v, err := api.ParseVoice(c.Voice)
	if err != nil {
		return api.DefaultVoice
	}
	return v
}
