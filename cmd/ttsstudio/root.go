package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tmc/ttsstudio"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
	"github.com/tmc/ttsstudio/internal/config"
	"github.com/tmc/ttsstudio/internal/helpers"
	"github.com/tmc/ttsstudio/spectrum"
	"golang.org/x/term"
	"google.golang.org/api/option"
)

var (
	// clientOptions are appended to every gRPC speech client.
	clientOptions []option.ClientOption

	cfgFile   string
	envFile   string
	activeCfg config.Config
	loaded    bool
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "ttsstudio",
		Short: "Terminal text-to-speech studio for Gemini voices",
		Long: `ttsstudio sends text to a Gemini speech model, plays the returned audio
and draws a live frequency visualizer while it plays.

Run without arguments for the interactive UI, or use "say" from scripts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.AudioTrace {
				helpers.SetAudioTrace(true)
			}
			activeCfg = cfg
			loaded = true
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("the interactive UI needs a terminal; use \"ttsstudio say\" for scripted use")
			}
			return runTUI(cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading configuration")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newSayCmd())
	cmd.AddCommand(newVoicesCmd())
	cmd.AddCommand(newModelsCmd())

	return cmd
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func requireConfig() (config.Config, error) {
	if !loaded {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return activeCfg, nil
}

// newRequester builds the speech client for the configured transport.
func newRequester(cfg config.Config) api.SpeechRequester {
	if cfg.Transport == config.TransportLive {
		return api.NewLiveClient(cfg.APIKey, cfg.LiveModel)
	}
	c := api.NewClient(cfg.APIKey, cfg.Model)
	c.Endpoint = cfg.Endpoint
	c.Options = clientOptions
	return c
}

// newModelLister builds a lister that talks to the configured endpoint.
func newModelLister(cfg config.Config) *api.ModelLister {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, clientOptions...)
	return api.NewModelLister(cfg.APIKey, api.WithClientOptions(opts...))
}

func newController(cfg config.Config) *audioplayer.Controller {
	return audioplayer.NewController(
		audioplayer.CommandOutputFactory(cfg.Player),
		audioplayer.WithAnalyserOptions(spectrum.WithFFTSize(cfg.FFTSize)),
	)
}

// setupLogging directs log output to the debug log so it does not tear the UI.
func setupLogging(path string) (io.Closer, error) {
	f, err := tea.LogToFile(path, "ttsstudio")
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(f)
	return f, nil
}

func runTUI(cfg config.Config) error {
	logFile, err := setupLogging(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.SetOutput(io.Discard)
	} else {
		defer logFile.Close()
		log.Println("--- Application Start ---")
	}

	model := cfg.Model
	if cfg.Transport == config.TransportLive {
		model = cfg.LiveModel
	}

	m := ttsstudio.New(
		ttsstudio.WithAPIKey(cfg.APIKey),
		ttsstudio.WithModelName(model),
		ttsstudio.WithVoice(cfg.VoiceName()),
		ttsstudio.WithPlayerCommand(cfg.Player),
		ttsstudio.WithFFTSize(cfg.FFTSize),
		ttsstudio.WithFrameInterval(time.Second/time.Duration(cfg.FPS)),
		ttsstudio.WithRequester(newRequester(cfg)),
		ttsstudio.WithLogMessages(os.Getenv("DEBUG_TTSSTUDIO") != ""),
	)
	defer m.Cleanup()

	initialModel, err := m.InitModel()
	if err != nil {
		return fmt.Errorf("initialize model: %w", err)
	}

	p := tea.NewProgram(initialModel, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	log.Println("--- Application End ---")
	return nil
}
