package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"localnotes/log"
	"localnotes/metrics"
	"localnotes/shutdown"
)

type Mode string

const (
	ModeExternal Mode = "external"
	ModeManaged  Mode = "managed"
)

const DefaultHost = "http://127.0.0.1:11434"

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultStartTimeout = 30 * time.Second
	defaultStopGrace    = 5 * time.Second
	healthTimeout       = 2 * time.Second
)

var (
	ErrStartupTimeout = errors.New("inference server did not become ready")
	ErrServerExited   = errors.New("inference server exited during startup")
	ErrBinaryNotFound = errors.New("ollama binary not found")
)

// ModelFetchError reports a failed pull. ExitCode is set for CLI pulls and
// Status for HTTP pulls.
type ModelFetchError struct {
	Model    string
	ExitCode int
	Status   int
	Err      error
}

func (e *ModelFetchError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("pulling model %s: HTTP %d", e.Model, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("pulling model %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("pulling model %s: exit code %d", e.Model, e.ExitCode)
}

func (e *ModelFetchError) Unwrap() error { return e.Err }

type Options struct {
	Mode Mode

	// Host is the external server URL. Ignored in managed mode.
	Host string

	// Binary overrides ollama lookup in managed mode.
	Binary    string
	ModelsDir string

	// ServeArgs defaults to ["serve"].
	ServeArgs []string
	// Env is appended to the spawned process environment.
	Env []string

	PollInterval time.Duration
	StartTimeout time.Duration
	StopGrace    time.Duration

	HTTPClient *http.Client
	Metrics    *metrics.Metrics

	// RegisterHook defaults to shutdown.Register.
	RegisterHook func(name string, fn func() error)
}

// Manager runs at most one local inference server.
type Manager struct {
	opts   Options
	client *http.Client

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	startup *startup
	host    string
	bin     string
	models  string
}

// startup holds the readiness result of one spawned process. Callers that
// find the process already running wait on done.
type startup struct {
	done chan struct{}
	host string
	err  error
}

func (s *startup) finish(err error) {
	s.err = err
	close(s.done)
}

func (s *startup) wait(ctx context.Context) (string, error) {
	select {
	case <-s.done:
		if s.err != nil {
			return "", s.err
		}
		return s.host, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func NewManager(opts Options) *Manager {
	if opts.Mode == "" {
		opts.Mode = ModeExternal
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	opts.Host = strings.TrimRight(opts.Host, "/")
	if len(opts.ServeArgs) == 0 {
		opts.ServeArgs = []string{"serve"}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PollInterval > time.Second {
		opts.PollInterval = time.Second
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	if opts.RegisterHook == nil {
		opts.RegisterHook = shutdown.Register
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Manager{opts: opts, client: client}
}

// Host returns the base URL of the server in use.
func (m *Manager) Host() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.Mode == ModeManaged && m.host != "" {
		return m.host
	}
	return m.opts.Host
}

func (m *Manager) Mode() Mode { return m.opts.Mode }

// Start makes the server available and returns its base URL. External mode
// returns the configured host. Managed mode spawns the binary on a free
// loopback port and waits until it answers. Concurrent calls share one
// spawn and all return once it is ready or has failed.
func (m *Manager) Start(ctx context.Context) (string, error) {
	if m.opts.Mode != ModeManaged {
		return m.opts.Host, nil
	}

	m.mu.Lock()
	if m.runningLocked() {
		st := m.startup
		m.mu.Unlock()
		return st.wait(ctx)
	}

	bin, err := m.resolveBinary()
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	modelsDir, err := m.resolveModelsDir()
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	port, err := freePort()
	if err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("allocating port: %w", err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	cmd := exec.Command(bin, m.opts.ServeArgs...)
	cmd.Env = append(m.childEnv(addr, modelsDir), m.opts.Env...)
	cmd.Stdout = log.Writer("ollama")
	cmd.Stderr = log.Writer("ollama")
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("starting %s: %w", bin, err)
	}

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	m.cmd, m.exited = cmd, exited
	m.host = "http://" + addr
	m.bin, m.models = bin, modelsDir
	host := m.host
	st := &startup{done: make(chan struct{}), host: host}
	m.startup = st
	m.mu.Unlock()

	m.opts.RegisterHook("ollama", m.Stop)
	log.Infof("spawned %s (pid %d) on %s", bin, cmd.Process.Pid, addr)

	start := time.Now()
	if err := m.waitReady(ctx, host, exited); err != nil {
		m.Stop()
		st.finish(err)
		return "", err
	}
	st.finish(nil)
	elapsed := time.Since(start)
	m.opts.Metrics.ServerStarted(elapsed)
	log.ServerEvent("server_ready", host, elapsed)
	return host, nil
}

func (m *Manager) waitReady(ctx context.Context, host string, exited <-chan struct{}) error {
	deadline, cancel := context.WithTimeout(ctx, m.opts.StartTimeout)
	defer cancel()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		if m.healthy(deadline, host) {
			return nil
		}
		select {
		case <-exited:
			return ErrServerExited
		case <-deadline.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w after %s", ErrStartupTimeout, m.opts.StartTimeout)
		case <-ticker.C:
		}
	}
}

func (m *Manager) healthy(ctx context.Context, host string) bool {
	client, err := m.api(host)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return client.Heartbeat(ctx) == nil
}

func (m *Manager) api(host string) (*api.Client, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing server url %q: %w", host, err)
	}
	return api.NewClient(base, m.client), nil
}

// Stop terminates a spawned server: interrupt, wait StopGrace, then kill.
// It is safe to call any number of times.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cmd, exited := m.cmd, m.exited
	m.cmd, m.exited = nil, nil
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}
	select {
	case <-exited:
		return nil
	default:
	}

	if err := interrupt(cmd.Process); err != nil {
		cmd.Process.Kill()
	}
	select {
	case <-exited:
	case <-time.After(m.opts.StopGrace):
		log.Warnf("ollama (pid %d) ignored interrupt, killing", cmd.Process.Pid)
		cmd.Process.Kill()
		<-exited
	}
	log.Info("ollama stopped")
	return nil
}

// Running reports whether a spawned server process is alive.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Manager) runningLocked() bool {
	if m.cmd == nil {
		return false
	}
	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

func (m *Manager) childEnv(addr, modelsDir string) []string {
	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "OLLAMA_HOST=") || strings.HasPrefix(kv, "OLLAMA_MODELS=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "OLLAMA_HOST="+addr, "OLLAMA_MODELS="+modelsDir)
}

func (m *Manager) resolveBinary() (string, error) {
	if m.opts.Binary != "" {
		path, err := exec.LookPath(m.opts.Binary)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrBinaryNotFound, err)
		}
		return path, nil
	}

	name := "ollama"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		for _, candidate := range []string{
			filepath.Join(dir, "assets", name),
			filepath.Join(dir, "..", "Resources", "assets", name),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBinaryNotFound, err)
	}
	return path, nil
}

func (m *Manager) resolveModelsDir() (string, error) {
	dir := m.opts.ModelsDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolving models dir: %w", err)
		}
		dir = filepath.Join(base, "localnotes", "models")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}
	return dir, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
