package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const helperEnv = "LOCALNOTES_OLLAMA_HELPER"

// TestMain lets the test binary stand in for the ollama executable.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		runHelper(mode, os.Args[1:])
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runHelper(mode string, args []string) {
	if len(args) > 0 && args[0] == "pull" {
		if marker := os.Getenv("HELPER_PULL_MARKER"); marker != "" && len(args) > 1 {
			os.WriteFile(marker, []byte(args[1]), 0644)
		}
		code, _ := strconv.Atoi(os.Getenv("HELPER_PULL_EXIT"))
		os.Exit(code)
	}

	switch mode {
	case "hang":
		time.Sleep(time.Hour)
	case "exit":
		os.Exit(3)
	case "slow":
		delay, _ := time.ParseDuration(os.Getenv("HELPER_DELAY"))
		time.Sleep(delay)
		serveTags()
	case "stubborn":
		signal.Ignore(os.Interrupt)
		serveTags()
	case "serve":
		serveTags()
	}
}

func serveTags() {
	var models []map[string]string
	for _, name := range strings.Split(os.Getenv("HELPER_MODELS"), ",") {
		if name != "" {
			models = append(models, map[string]string{"name": name})
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"models": models})
	})
	http.ListenAndServe(os.Getenv("OLLAMA_HOST"), mux)
}

func helperManager(t *testing.T, env ...string) *Manager {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("helper process signals are unix-only")
	}
	m := NewManager(Options{
		Mode:         ModeManaged,
		Binary:       os.Args[0],
		ModelsDir:    t.TempDir(),
		Env:          env,
		PollInterval: 50 * time.Millisecond,
		StartTimeout: 5 * time.Second,
		StopGrace:    time.Second,
		RegisterHook: func(string, func() error) {},
	})
	t.Cleanup(func() { m.Stop() })
	return m
}

func TestExternalMode(t *testing.T) {
	m := NewManager(Options{Host: "http://localhost:9999/"})

	host, err := m.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999", host)
	require.False(t, m.Running())
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
}

func TestExternalDefaultHost(t *testing.T) {
	m := NewManager(Options{})
	require.Equal(t, DefaultHost, m.Host())
	require.Equal(t, ModeExternal, m.Mode())
}

func TestManagedStartupTimeout(t *testing.T) {
	m := helperManager(t, helperEnv+"=hang")
	m.opts.StartTimeout = 400 * time.Millisecond

	start := time.Now()
	_, err := m.Start(context.Background())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrStartupTimeout)
	require.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	require.Less(t, elapsed, 5*time.Second)
	require.False(t, m.Running())
}

func TestManagedStartupCancelled(t *testing.T) {
	m := helperManager(t, helperEnv+"=hang")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := m.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, m.Running())
}

func TestManagedServerExitsEarly(t *testing.T) {
	m := helperManager(t, helperEnv+"=exit")

	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrServerExited)
	require.False(t, m.Running())
}

func TestManagedLifecycle(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "pulled")
	m := helperManager(t,
		helperEnv+"=serve",
		"HELPER_MODELS=qwen3:8b,llama3.2:latest",
		"HELPER_PULL_EXIT=1",
		"HELPER_PULL_MARKER="+marker,
	)

	host, err := m.Start(context.Background())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(host, "http://127.0.0.1:"))
	require.True(t, m.Running())
	require.Equal(t, host, m.Host())

	again, err := m.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, host, again)

	require.NoError(t, m.EnsureModel(context.Background(), "qwen3:8b"))
	require.NoError(t, m.EnsureModel(context.Background(), "llama3.2"))
	require.NoFileExists(t, marker)

	err = m.EnsureModel(context.Background(), "mistral")
	var fetchErr *ModelFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 1, fetchErr.ExitCode)
	require.Equal(t, "mistral", fetchErr.Model)

	pulled, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Equal(t, "mistral", string(pulled))

	require.NoError(t, m.Stop())
	require.False(t, m.Running())
	require.NoError(t, m.Stop())
}

func TestManagedPullSucceeds(t *testing.T) {
	m := helperManager(t, helperEnv+"=serve", "HELPER_PULL_EXIT=0")

	_, err := m.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.EnsureModel(context.Background(), "phi3"))
}

func TestConcurrentStartWaitsForReady(t *testing.T) {
	m := helperManager(t, helperEnv+"=slow", "HELPER_DELAY=600ms")

	type result struct {
		host string
		err  error
	}
	first := make(chan result, 1)
	go func() {
		host, err := m.Start(context.Background())
		first <- result{host, err}
	}()
	require.Eventually(t, m.Running, 2*time.Second, 5*time.Millisecond)

	host, err := m.Start(context.Background())
	require.NoError(t, err)
	require.True(t, m.healthy(context.Background(), host))

	r := <-first
	require.NoError(t, r.err)
	require.Equal(t, host, r.host)
}

func TestConcurrentStartSharesFailure(t *testing.T) {
	m := helperManager(t, helperEnv+"=hang")
	m.opts.StartTimeout = 400 * time.Millisecond

	go m.Start(context.Background())
	require.Eventually(t, m.Running, 2*time.Second, 5*time.Millisecond)

	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrStartupTimeout)
}

func TestConcurrentStartHonorsCallerContext(t *testing.T) {
	m := helperManager(t, helperEnv+"=hang")

	go m.Start(context.Background())
	require.Eventually(t, m.Running, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopKillsAfterGrace(t *testing.T) {
	m := helperManager(t, helperEnv+"=stubborn")
	m.opts.StopGrace = 200 * time.Millisecond

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, m.Stop())
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.False(t, m.Running())
}

func TestStopAfterProcessExitedOnItsOwn(t *testing.T) {
	m := helperManager(t, helperEnv+"=serve")
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	m.mu.Lock()
	proc := m.cmd.Process
	exited := m.exited
	m.mu.Unlock()
	require.NoError(t, proc.Kill())
	<-exited

	require.False(t, m.Running())
	require.NoError(t, m.Stop())
}

func TestBinaryNotFound(t *testing.T) {
	m := NewManager(Options{
		Mode:         ModeManaged,
		Binary:       filepath.Join(t.TempDir(), "no-such-ollama"),
		ModelsDir:    t.TempDir(),
		RegisterHook: func(string, func() error) {},
	})
	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrBinaryNotFound)
}

func TestStartRegistersShutdownHook(t *testing.T) {
	var names []string
	m := helperManager(t, helperEnv+"=serve")
	m.opts.RegisterHook = func(name string, fn func() error) { names = append(names, name) }

	_, err := m.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"ollama"}, names)
}

func tagsServer(t *testing.T, models []string, pullStatus int, pulls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/api/tags":
			var list []map[string]string
			for _, m := range models {
				list = append(list, map[string]string{"name": m})
			}
			json.NewEncoder(w).Encode(map[string]any{"models": list})
		case "/api/pull":
			pulls.Add(1)
			var body struct {
				Model  string `json:"model"`
				Stream bool   `json:"stream"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Stream || body.Model == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(pullStatus)
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureModelExternalPresent(t *testing.T) {
	var pulls atomic.Int32
	srv := tagsServer(t, []string{"qwen3:latest"}, http.StatusOK, &pulls)
	m := NewManager(Options{Host: srv.URL})

	require.NoError(t, m.EnsureModel(context.Background(), "qwen3"))
	require.NoError(t, m.EnsureModel(context.Background(), "qwen3:latest"))
	require.Zero(t, pulls.Load())
}

func TestEnsureModelMatchesAcrossTags(t *testing.T) {
	var pulls atomic.Int32
	srv := tagsServer(t, []string{"qwen3:8b", "phi3"}, http.StatusOK, &pulls)
	m := NewManager(Options{Host: srv.URL})

	require.NoError(t, m.EnsureModel(context.Background(), "qwen3"))
	require.NoError(t, m.EnsureModel(context.Background(), "phi3:mini"))
	require.Zero(t, pulls.Load())
}

func TestEnsureModelExternalPulls(t *testing.T) {
	var pulls atomic.Int32
	srv := tagsServer(t, nil, http.StatusOK, &pulls)
	m := NewManager(Options{Host: srv.URL})

	require.NoError(t, m.EnsureModel(context.Background(), "qwen3:8b"))
	require.EqualValues(t, 1, pulls.Load())
}

func TestEnsureModelExternalPullFails(t *testing.T) {
	var pulls atomic.Int32
	srv := tagsServer(t, nil, http.StatusInternalServerError, &pulls)
	m := NewManager(Options{Host: srv.URL})

	err := m.EnsureModel(context.Background(), "qwen3:8b")
	var fetchErr *ModelFetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, http.StatusInternalServerError, fetchErr.Status)
	require.Contains(t, err.Error(), "HTTP 500")
}

func TestHasModel(t *testing.T) {
	installed := []string{"qwen3:8b-q4_K_M", "llama3.2:latest", "Mistral:7b", "gemma3"}
	tests := []struct {
		want string
		ok   bool
	}{
		{"llama3.2", true},
		{"llama3.2:latest", true},
		{"llama3.2:1b", false},
		{"qwen3:8b", true},
		{"qwen3", true},
		{"qwen3:14b", false},
		{"mistral:7b", true},
		{"mistral", true},
		{"gemma3:4b", true},
		{"gemma", false},
		{"phi3", false},
	}
	for _, tc := range tests {
		require.Equal(t, tc.ok, HasModel(installed, tc.want), tc.want)
	}
}
