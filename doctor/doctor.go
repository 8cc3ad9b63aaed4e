// Package doctor runs system diagnostics for the hotkey, microphone,
// transcription endpoint, summarization server and clipboard.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"localnotes/clipboard"
	"localnotes/hotkey"
	"localnotes/ollama"
	"localnotes/recorder"
)

// ErrSkipped marks a check that could not run because an earlier one failed.
var ErrSkipped = errors.New("skipped")

type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Run executes checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "localnotes doctor - system diagnostics")
	fmt.Fprintln(w, "======================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		msg, err := c.Run(ctx)
		switch {
		case errors.Is(err, ErrSkipped):
			fmt.Fprintf(w, "  SKIP: %v\n", err)
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", msg)
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

type Recorder interface {
	Start() error
	Stop() (*recorder.Artifact, error)
	DeviceName() string
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, path string) (string, error)
}

type Server interface {
	Start(ctx context.Context) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

type Options struct {
	Recorder    Recorder
	Transcriber Transcriber
	Endpoint    string // transcription URL shown in the report
	Server      Server
	Model       string
	RecordFor   time.Duration
	Prompt      io.Writer // status lines while recording; nil discards
}

// Standard returns the hotkey, microphone, transcription, server and
// clipboard checks. The transcription check uses the microphone recording.
func Standard(opts Options) []Check {
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}
	var artifact *recorder.Artifact

	return []Check{
		{Name: "Hotkey", Run: func(context.Context) (string, error) {
			return hotkey.Diagnose()
		}},
		{Name: "Microphone", Run: func(ctx context.Context) (string, error) {
			a, err := recordSample(ctx, opts.Recorder, opts.RecordFor, opts.Prompt)
			if err != nil {
				return "", err
			}
			artifact = a
			return fmt.Sprintf("captured %.1fs from %s", a.Duration().Seconds(), opts.Recorder.DeviceName()), nil
		}},
		{Name: "Transcription", Run: func(ctx context.Context) (string, error) {
			if artifact == nil {
				return "", fmt.Errorf("%w: no recording to transcribe", ErrSkipped)
			}
			defer artifact.Remove()
			name := opts.Transcriber.Name()
			if opts.Endpoint != "" {
				name += " at " + opts.Endpoint
			}
			text, err := opts.Transcriber.Transcribe(ctx, artifact.Path)
			if err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
			if text == "" {
				text = "(no speech detected)"
			}
			return fmt.Sprintf("%s: %q", name, text), nil
		}},
		{Name: "Summarization server", Run: func(ctx context.Context) (string, error) {
			return checkServer(ctx, opts.Server, opts.Model)
		}},
		{Name: "Clipboard", Run: func(context.Context) (string, error) {
			return checkClipboard()
		}},
	}
}

func recordSample(ctx context.Context, rec Recorder, d time.Duration, w io.Writer) (*recorder.Artifact, error) {
	if err := rec.Start(); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "  Speak for %s...\n", d)
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	a, err := rec.Stop()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		a.Remove()
		return nil, ctx.Err()
	}
	return a, nil
}

func checkServer(ctx context.Context, srv Server, model string) (string, error) {
	host, err := srv.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("server not reachable: %w", err)
	}
	models, err := srv.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if !ollama.HasModel(models, model) {
		return fmt.Sprintf("%s up, model %s not installed yet (fetched on first use)", host, model), nil
	}
	return fmt.Sprintf("%s up, model %s installed", host, model), nil
}

func checkClipboard() (string, error) {
	prev, _ := clipboard.Read()
	marker := fmt.Sprintf("localnotes-doctor-%d", os.Getpid())
	if err := clipboard.Copy(marker); err != nil {
		return "", fmt.Errorf("copy: %w", err)
	}
	got, err := clipboard.Read()
	if prev != "" {
		clipboard.Copy(prev)
	}
	if err != nil {
		return "", fmt.Errorf("read back: %w", err)
	}
	if got != marker {
		return "", fmt.Errorf("clipboard returned %q, want %q", got, marker)
	}

	msg, err := clipboard.Verify()
	if err != nil {
		return "copy OK, paste unavailable: " + err.Error(), nil
	}
	return "copy OK, " + msg, nil
}
