package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"localnotes/encoder"
	"localnotes/log"
)

const DefaultEndpoint = "http://127.0.0.1:8000/v1/audio/transcriptions"

// Whisper posts artifacts to an OpenAI-compatible transcription endpoint,
// such as faster-whisper-server or the whisper.cpp server.
type Whisper struct {
	client   *TracedClient
	endpoint string
	model    string
	lang     string
	apiKey   string
}

type WhisperOptions struct {
	Endpoint string
	Model    string // model size, e.g. "base"
	Language string // empty lets the server detect
	APIKey   string
	Timeout  time.Duration
}

func NewWhisper(opts WhisperOptions) *Whisper {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = "base"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Whisper{
		client:   NewTracedClient(opts.Timeout),
		endpoint: opts.Endpoint,
		model:    opts.Model,
		lang:     opts.Language,
		apiKey:   opts.APIKey,
	}
}

func (w *Whisper) Name() string { return "whisper/" + w.model }

func (w *Whisper) Endpoint() string { return w.endpoint }

func (w *Whisper) Transcribe(ctx context.Context, path string) (string, error) {
	audioData, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading artifact: %w", ErrTranscription, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}

	writer.WriteField("model", w.model)
	writer.WriteField("response_format", "json")
	writer.WriteField("temperature", "0")
	if w.lang != "" {
		writer.WriteField("language", w.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: whisper API error %d: %s", ErrTranscription, resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var wResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &wResp); err != nil {
		return "", fmt.Errorf("%w: whisper response parse error: %w", ErrTranscription, err)
	}

	samples := (len(audioData) - 44) / 2
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS: encoder.Duration(max(samples, 0)).Seconds(),
		FileSizeKB:   float64(len(audioData)) / 1024,
		DNSTimeMs:    ms(resp.Metrics.DNS),
		ConnTimeMs:   ms(resp.Metrics.ConnWait + resp.Metrics.TCP),
		TTFBMs:       ms(resp.Metrics.TTFB),
		TotalTimeMs:  ms(resp.Metrics.Total),
	}, w.model, strings.TrimPrefix(filepath.Ext(path), "."), resp.Metrics.ConnReused)
	if server := firstNonEmpty(resp.Header, "Server"); server != "?" {
		log.Infof("transcribed by %s", server)
	}

	return strings.TrimSpace(wResp.Text), nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
