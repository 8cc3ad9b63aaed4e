package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"localnotes/audio"
	"localnotes/beep"
	"localnotes/clipboard"
	"localnotes/config"
	"localnotes/hotkey"
	"localnotes/log"
	"localnotes/metrics"
	"localnotes/notify"
	"localnotes/ollama"
	"localnotes/orchestrator"
	"localnotes/shutdown"
	"localnotes/summarizer"
	"localnotes/transcript"
	"localnotes/tray"
)

func runApp(parent context.Context, cfg *config.Config, f *rootFlags) error {
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	shutdown.Register("log", func() error { log.Close(); return nil })
	defer shutdown.Run()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	key, err := hotkey.ParseKey(cfg.HotkeyKey)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if f.metrics != "" {
		go func() {
			if err := metrics.Serve(ctx, f.metrics, reg); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	defer actx.Close()

	dev, err := resolveDevice(actx, cfg, f.setup)
	if err != nil {
		return err
	}
	rec, err := newRecorder(actx, cfg, dev)
	if err != nil {
		return err
	}

	mgr := newManager(cfg, func(o *ollama.Options) { o.Metrics = m })
	shutdown.Register("ollama", mgr.Stop)
	if f.warm {
		go func() {
			if _, err := mgr.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("summarization server warm-up: %v", err)
			}
		}()
	}

	transcriptsDir := cfg.TranscriptsDir
	if transcriptsDir == "" {
		if transcriptsDir, err = transcript.DefaultDir(); err != nil {
			return err
		}
	}

	if cfg.AutoPaste {
		if err := clipboard.Init(); err != nil {
			log.Warnf("paste init failed: %v", err)
		}
	}
	beep.Init()

	fan := &fanout{}
	sum := summarizer.NewOllama()

	orch := orchestrator.New(orchestrator.Deps{
		Recorder:    rec,
		Server:      mgr,
		Transcriber: newTranscriber(cfg),
		Summarizer:  sum,
		Store:       transcript.NewStore(transcriptsDir),
		Clipboard:   clipboard.System{},
		Paster:      clipboard.System{},
		Notifier:    notify.New(),
		Indicator:   fan,
		Metrics:     m,
	}, orchestrator.Options{
		FlushInterval: cfg.FlushInterval,
		SummaryModel:  cfg.OllamaModel,
		Language:      cfg.Language,
		UseCase:       cfg.DefaultUseCase,
		AutoPaste:     cfg.AutoPaste,
	})
	fan.add(cueIndicator{})
	sum.OnProgress = orch.SummaryProgress

	copyLast := func() {
		if s := orch.LastSummary(); s != "" {
			if err := clipboard.Copy(s); err != nil {
				log.Warnf("copy last summary: %v", err)
			}
		}
	}
	nextUseCase := func() string {
		label := cycleUseCase(cfg.UseCases, orch.UseCase())
		orch.SetUseCase(label)
		fan.useCase(label)
		return label
	}

	var trayQuit <-chan struct{}
	if f.tray {
		tr := tray.New(cfg.UseCases, cfg.DefaultUseCase, tray.Callbacks{
			Toggle: func() { orch.Post(orchestrator.ActionToggle) },
			SelectUseCase: func(label string) {
				orch.SetUseCase(label)
				fan.useCase(label)
			},
			CopyLast: copyLast,
		})
		fan.setTray(tr)
		trayQuit = tr.Start()
		shutdown.Register("tray", func() error { tr.Stop(); return nil })
	}

	var tuiDone chan struct{}
	if f.tui {
		model := newTUIModel(cfg.DefaultUseCase, deviceLine(dev), modelLine(cfg), key,
			func() { orch.Post(orchestrator.ActionToggle) }, nextUseCase)
		p := tea.NewProgram(model, tea.WithAltScreen())
		fan.setTUI(p)
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
		}()
		shutdown.Register("tui", func() error { p.Quit(); return nil })
	}

	hk := hotkey.New(key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("registering hotkey %s: %w", hotkey.Label(key), err)
	}
	defer hk.Unregister()
	go hotkey.Listen(ctx, hk, func() { orch.Post(orchestrator.ActionToggle) })

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Infof("signal %s, shutting down", sig)
		case <-trayQuit:
			log.Info("quit from tray")
		case <-tuiDone:
			log.Info("terminal view closed")
		case <-ctx.Done():
		}
		cancel()
	}()

	log.Infof("ready: hotkey %s, whisper %s, summary model %s (%s)",
		hotkey.Label(key), cfg.WhisperModel, cfg.OllamaModel, mgr.Mode())
	if !f.tui {
		fmt.Printf("localnotes %s ready. Press %s to start and stop recording.\n", version, hotkey.Label(key))
	}

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cycleUseCase(cases []string, current string) string {
	if len(cases) == 0 {
		return current
	}
	i := slices.Index(cases, current)
	return cases[(i+1)%len(cases)]
}

func deviceLine(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "mic: system default"
	}
	line := "mic: " + dev.Name
	if audio.IsBluetooth(dev.Name) {
		line += " (BT!)"
	}
	return line
}

func modelLine(cfg *config.Config) string {
	return fmt.Sprintf("[whisper %s | %s]", cfg.WhisperModel, cfg.OllamaModel)
}
