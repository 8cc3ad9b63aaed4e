package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	if got, want := m.Sum(), 155*time.Millisecond; got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "uvicorn")

	if got := firstNonEmpty(h, "X-Missing", "Server"); got != "uvicorn" {
		t.Errorf("got %q, want %q", got, "uvicorn")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "localnotes-001.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 44+3200), 0644))
	return path
}

func TestWhisperSendsFormFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "small" || r.FormValue("language") != "de" || r.FormValue("response_format") != "json" {
			http.Error(w, "bad fields", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil || hdr.Filename != "localnotes-001.wav" {
			http.Error(w, "bad file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if len(data) != 44+3200 {
			http.Error(w, "bad size", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"text":"  hallo welt \n"}`))
	}))
	defer srv.Close()

	w := NewWhisper(WhisperOptions{Endpoint: srv.URL, Model: "small", Language: "de"})
	text, err := w.Transcribe(context.Background(), writeArtifact(t))
	require.NoError(t, err)
	require.Equal(t, "hallo welt", text)
	require.Equal(t, "whisper/small", w.Name())
}

func TestWhisperOmitsEmptyLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if _, ok := r.MultipartForm.Value["language"]; ok {
			http.Error(w, "unexpected language", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	text, err := NewWhisper(WhisperOptions{Endpoint: srv.URL}).Transcribe(context.Background(), writeArtifact(t))
	require.NoError(t, err)
	require.Equal(t, "ok", text)
}

func TestWhisperHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewWhisper(WhisperOptions{Endpoint: srv.URL}).Transcribe(context.Background(), writeArtifact(t))
	require.ErrorIs(t, err, ErrTranscription)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "model not loaded")
}

func TestWhisperMissingArtifact(t *testing.T) {
	_, err := NewWhisper(WhisperOptions{}).Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	require.ErrorIs(t, err, ErrTranscription)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFakeTranscriberScript(t *testing.T) {
	f := NewFake("one", "two")
	ctx := context.Background()

	for _, want := range []string{"one", "two", ""} {
		got, err := f.Transcribe(ctx, want+".wav")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, []string{"one.wav", "two.wav", ".wav"}, f.Paths())

	f.FailWith(errors.New("offline"))
	_, err := f.Transcribe(ctx, "x.wav")
	require.ErrorIs(t, err, ErrTranscription)
}
