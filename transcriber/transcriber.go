package transcriber

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrTranscription wraps every failure reported by a Transcriber.
var ErrTranscription = errors.New("transcription failed")

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Transcriber turns one audio artifact into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, path string) (string, error)
}
