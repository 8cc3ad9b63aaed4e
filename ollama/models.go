package ollama

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"localnotes/log"
)

// ListModels returns the names of the installed models.
func (m *Manager) ListModels(ctx context.Context) ([]string, error) {
	client, err := m.api(m.Host())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, mod := range resp.Models {
		name := mod.Name
		if name == "" {
			name = mod.Model
		}
		names = append(names, name)
	}
	return names, nil
}

// HasModel reports whether want is among the installed names. Names match
// when equal ignoring case, when either side has no tag and the bases are
// equal ("qwen3" and "qwen3:8b"), or when one tag is a quantized variant of
// the other ("qwen3:8b" and "qwen3:8b-q4_K_M").
func HasModel(installed []string, want string) bool {
	wantBase, wantTag := splitModel(want)
	for _, name := range installed {
		base, tag := splitModel(name)
		if base != wantBase {
			continue
		}
		switch {
		case tag == wantTag, tag == "", wantTag == "":
			return true
		case strings.HasPrefix(tag, wantTag+"-"), strings.HasPrefix(wantTag, tag+"-"):
			return true
		}
	}
	return false
}

func splitModel(name string) (base, tag string) {
	name = strings.ToLower(strings.TrimSpace(name))
	base, tag, _ = strings.Cut(name, ":")
	return base, tag
}

// EnsureModel returns once name is installed, pulling it if needed.
func (m *Manager) EnsureModel(ctx context.Context, name string) error {
	models, err := m.ListModels(ctx)
	if err == nil && HasModel(models, name) {
		return nil
	}
	if err != nil {
		log.Warnf("model list unavailable, pulling %s anyway: %v", name, err)
	}

	log.Infof("pulling model %s", name)
	start := time.Now()
	err = m.pull(ctx, name)
	m.opts.Metrics.ModelPull(err)
	if err != nil {
		return err
	}
	log.ServerEvent("model_pulled", m.Host(), time.Since(start))
	return nil
}

func (m *Manager) pull(ctx context.Context, name string) error {
	m.mu.Lock()
	bin, models, host := m.bin, m.models, m.host
	managed := m.opts.Mode == ModeManaged && bin != ""
	m.mu.Unlock()

	if managed {
		return m.pullCLI(ctx, bin, strings.TrimPrefix(host, "http://"), models, name)
	}
	return m.pullAPI(ctx, name)
}

func (m *Manager) pullCLI(ctx context.Context, bin, addr, modelsDir, name string) error {
	cmd := exec.CommandContext(ctx, bin, "pull", name)
	cmd.Env = append(m.childEnv(addr, modelsDir), m.opts.Env...)
	cmd.Stdout = log.Writer("ollama-pull")
	cmd.Stderr = log.Writer("ollama-pull")

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ModelFetchError{Model: name, ExitCode: exitErr.ExitCode()}
	}
	return &ModelFetchError{Model: name, ExitCode: -1, Err: err}
}

func (m *Manager) pullAPI(ctx context.Context, name string) error {
	client, err := m.api(m.Host())
	if err != nil {
		return &ModelFetchError{Model: name, Err: err}
	}

	stream := false
	err = client.Pull(ctx, &api.PullRequest{Model: name, Stream: &stream}, func(p api.ProgressResponse) error {
		log.Infof("pull %s: %s", name, p.Status)
		return nil
	})
	if err == nil {
		return nil
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		log.Errorf("pull %s: HTTP %d: %s", name, statusErr.StatusCode, statusErr.ErrorMessage)
		return &ModelFetchError{Model: name, Status: statusErr.StatusCode}
	}
	return &ModelFetchError{Model: name, Err: err}
}
