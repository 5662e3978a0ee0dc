// Package docker manages the lifecycle of the Ollama container so the CLI
// works out of the box on a machine that only has Docker installed.
package docker

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const image = "ollama/ollama:latest"

// runner executes a docker subcommand and returns its combined output.
// Swapped out in tests.
type runner func(ctx context.Context, args ...string) (string, error)

func execRunner(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Manager starts, reuses, and stops a named Ollama container.
type Manager struct {
	container string
	volume    string
	port      int
	logger    *zap.Logger
	run       runner
	client    *http.Client
	started   bool
}

// NewManager creates a manager for the named container. The volume persists
// pulled models across container restarts.
func NewManager(container, volume string, port int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		container: container,
		volume:    volume,
		port:      port,
		logger:    logger,
		run:       execRunner,
		client:    &http.Client{Timeout: 2 * time.Second},
	}
}

// EnsureRunning makes sure the container is up and the server behind
// healthURL answers. A container that already exists is started rather than
// recreated, so the model cache in its volume survives.
func (m *Manager) EnsureRunning(ctx context.Context, healthURL string) error {
	running, err := m.listed(ctx, false)
	if err != nil {
		return fmt.Errorf("docker is not available: %w", err)
	}
	switch {
	case running:
		m.logger.Info("container already running", zap.String("container", m.container))
	default:
		exists, err := m.listed(ctx, true)
		if err != nil {
			return err
		}
		if exists {
			m.logger.Info("starting existing container", zap.String("container", m.container))
			if _, err := m.run(ctx, "start", m.container); err != nil {
				return fmt.Errorf("failed to start container %s: %w", m.container, err)
			}
		} else {
			m.logger.Info("creating container",
				zap.String("container", m.container),
				zap.String("image", image),
				zap.Int("port", m.port))
			if _, err := m.run(ctx, "run", "-d",
				"--name", m.container,
				"-p", fmt.Sprintf("%d:11434", m.port),
				"-v", m.volume+":/root/.ollama",
				image, "serve"); err != nil {
				return fmt.Errorf("failed to create container %s: %w", m.container, err)
			}
		}
		m.started = true
	}
	return m.waitHealthy(ctx, healthURL)
}

// Stop stops the container if this process started it. Best effort; a
// container that was already running when we arrived is left alone.
func (m *Manager) Stop(ctx context.Context) {
	if !m.started {
		return
	}
	m.logger.Info("stopping container", zap.String("container", m.container))
	if _, err := m.run(ctx, "stop", m.container); err != nil {
		m.logger.Warn("failed to stop container", zap.String("container", m.container), zap.Error(err))
	}
}

// listed reports whether the container shows up in docker ps. With all set
// the check includes stopped containers.
func (m *Manager) listed(ctx context.Context, all bool) (bool, error) {
	args := []string{"ps", "--format", "{{.Names}}"}
	if all {
		args = append(args, "-a")
	}
	out, err := m.run(ctx, args...)
	if err != nil {
		return false, err
	}
	for _, name := range strings.Split(out, "\n") {
		if strings.TrimSpace(name) == m.container {
			return true, nil
		}
	}
	return false, nil
}

// waitHealthy polls healthURL until the server answers or the deadline hits.
// A freshly created container takes a few seconds to come up.
func (m *Manager) waitHealthy(ctx context.Context, healthURL string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s did not become healthy within 30s", healthURL)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
