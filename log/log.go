package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// Metrics describes one transcription request.
type Metrics struct {
	AudioLengthS float64
	FileSizeKB   float64
	EncodeTimeMs float64
	DNSTimeMs    float64
	ConnTimeMs   float64
	TTFBMs       float64
	TotalTimeMs  float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: LOCALNOTES_LOG_PATH environment variable
	if envPath := os.Getenv("LOCALNOTES_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribeFile, err = os.OpenFile(filepath.Join(dir, "transcribe_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func StateChange(session, from, to string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("from", from).
		Str("to", to).
		Msg("state")
}

// Interval records one incremental flush.
func Interval(session string, seq int, audioS float64, chars int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Int("seq", seq).
		Float64("audio_s", audioS).
		Int("chars", chars).
		Msg("interval")
}

func TranscriptionMetrics(m Metrics, model, format string, connReused bool) {
	if !logReady {
		return
	}

	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}

	diagLog.Info().
		Str("model", model).
		Str("format", format).
		Str("conn", connStatus).
		Float64("audio_s", m.AudioLengthS).
		Float64("file_kb", m.FileSizeKB).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("conn_ms", m.ConnTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

func SummaryMetrics(model, useCase string, inputChars, outputChars int, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("model", model).
		Str("use_case", useCase).
		Int("input_chars", inputChars).
		Int("output_chars", outputChars).
		Float64("total_ms", float64(elapsed.Microseconds())/1000).
		Msg("summary")
}

func ServerEvent(event, host string, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("host", host).
		Float64("elapsed_ms", float64(elapsed.Microseconds())/1000).
		Msg(event)
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(session, useCase, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Str("use_case", useCase).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(session string, segments int, chars int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", session).
		Int("segments", segments).
		Int("chars", chars).
		Msg("session_end")
}

type lineWriter struct {
	component string
}

// Writer returns an io.Writer that logs each written line under component.
// Subprocess output is routed here.
func Writer(component string) io.Writer {
	return lineWriter{component: component}
}

func (w lineWriter) Write(p []byte) (int, error) {
	if !logReady {
		return len(p), nil
	}
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			diagLog.Debug().Str("component", w.component).Msg(line)
		}
	}
	return len(p), nil
}
