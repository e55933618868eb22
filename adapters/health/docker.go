package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/layer-3/fluxauth/ports"
)

// DefaultDockerSocket is the Docker Engine API socket on Linux hosts.
const DefaultDockerSocket = "/var/run/docker.sock"

// DockerProbe asks the Docker Engine to list containers over its unix socket.
type DockerProbe struct {
	client *http.Client
	base   string
}

var _ ports.ContainerRuntime = (*DockerProbe)(nil)

// NewDockerProbe creates a probe talking to the engine at socketPath, or at
// DefaultDockerSocket when socketPath is empty.
func NewDockerProbe(socketPath string, timeout time.Duration) *DockerProbe {
	if socketPath == "" {
		socketPath = DefaultDockerSocket
	}
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}
	return &DockerProbe{
		client: &http.Client{Transport: transport, Timeout: timeout},
		base:   "http://docker",
	}
}

// ListContainers returns an error unless the engine answers the list call.
func (p *DockerProbe) ListContainers(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/containers/json", nil)
	if err != nil {
		return fmt.Errorf("failed to build docker request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach docker: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("docker list containers returned %s", resp.Status)
	}
	return nil
}
