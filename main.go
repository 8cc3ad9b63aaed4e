package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"localnotes/audio"
	"localnotes/config"
	"localnotes/doctor"
	"localnotes/encoder"
	"localnotes/log"
	"localnotes/ollama"
	"localnotes/recorder"
	"localnotes/transcriber"
)

var version = "dev"

type rootFlags struct {
	configPath string
	logPath    string
	device     string
	setup      bool
	useCase    string
	tui        bool
	tray       bool
	metrics    string
	warm       bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "localnotes",
		Short: "Record, transcribe and summarize notes locally",
		Long: "localnotes records the microphone on a global hotkey, transcribes it every few seconds " +
			"with a local Whisper server and summarizes the transcript with a local Ollama model. " +
			"The summary is copied to the clipboard and saved with the transcript.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), cfg, f)
		},
	}
	cmd.Version = version
	cmd.SetVersionTemplate("localnotes {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default: <user config dir>/localnotes/config.yaml)")
	pf.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&f.device, "device", "", "use named microphone device")
	pf.BoolVar(&f.setup, "setup", false, "select microphone device interactively")

	fl := cmd.Flags()
	fl.StringVar(&f.useCase, "use-case", "", "initial use case label, e.g. Lecture")
	fl.BoolVar(&f.tui, "tui", term.IsTerminal(int(os.Stdout.Fd())), "show the terminal status view")
	fl.BoolVar(&f.tray, "tray", true, "show the tray menu")
	fl.StringVar(&f.metrics, "metrics", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	fl.BoolVar(&f.warm, "warm", true, "start the summarization server at launch")

	cmd.AddCommand(newDoctorCmd(f), newDevicesCmd(), newVersionCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.device != "" {
		cfg.Device = f.device
	}
	if f.useCase != "" {
		cfg.DefaultUseCase = f.useCase
	}

	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not create log directory: %v\n", err)
	}
	return cfg, nil
}

// initCrashLog sends runtime crash output to crash_log.txt in the log
// directory.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// resolveDevice applies --setup, then the configured device name. A nil
// result selects the system default.
func resolveDevice(actx audio.Context, cfg *config.Config, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		return audio.SelectDevice(actx)
	}
	dev, err := audio.FindDevice(actx, cfg.Device)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func newRecorder(actx audio.Context, cfg *config.Config, dev *audio.DeviceInfo) (*recorder.Recorder, error) {
	format, err := encoder.ParseFormat(cfg.ArtifactFormat)
	if err != nil {
		return nil, err
	}
	return recorder.New(actx, recorder.Options{Device: dev, Format: format}), nil
}

func newTranscriber(cfg *config.Config) *transcriber.Whisper {
	return transcriber.NewWhisper(transcriber.WhisperOptions{
		Endpoint: cfg.WhisperEndpoint,
		Model:    cfg.WhisperModel,
		Language: cfg.Language,
		APIKey:   os.Getenv("LOCALNOTES_WHISPER_API_KEY"),
	})
}

func newDoctorCmd(f *rootFlags) *cobra.Command {
	var seconds int
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check hotkey, microphone, transcription, summarization and clipboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("audio init: %w", err)
			}
			defer actx.Close()

			dev, err := resolveDevice(actx, cfg, f.setup)
			if err != nil {
				return err
			}
			doctor.ResetTerminal()
			rec, err := newRecorder(actx, cfg, dev)
			if err != nil {
				return err
			}
			mgr := newManager(cfg, nil)
			defer mgr.Stop()

			trans := newTranscriber(cfg)
			code := doctor.Run(ctx, cmd.OutOrStdout(), doctor.Standard(doctor.Options{
				Recorder:    rec,
				Transcriber: trans,
				Endpoint:    trans.Endpoint(),
				Server:      mgr,
				Model:       cfg.OllamaModel,
				RecordFor:   time.Duration(seconds) * time.Second,
				Prompt:      cmd.OutOrStdout(),
			}))
			if code != 0 {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 3, "length of the microphone test recording")
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List microphone devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("audio init: %w", err)
			}
			defer actx.Close()

			devices, err := actx.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				return audio.ErrNoDevice
			}
			out := cmd.OutOrStdout()
			for _, d := range devices {
				line := d.Name
				if audio.IsBluetooth(d.Name) {
					line += " (bluetooth, lower quality)"
				}
				fmt.Fprintf(out, "%s\t%s\n", d.ID, line)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "localnotes %s\n", version)
		},
	}
}

func newManager(cfg *config.Config, configure func(*ollama.Options)) *ollama.Manager {
	opts := ollama.Options{
		Mode:         ollama.Mode(strings.ToLower(cfg.OllamaMode)),
		Host:         cfg.OllamaHost,
		Binary:       cfg.OllamaBinary,
		ModelsDir:    cfg.ModelsDir,
		StartTimeout: cfg.StartupTimeout,
	}
	if configure != nil {
		configure(&opts)
	}
	return ollama.NewManager(opts)
}

func execute() int {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
