// Package sandbox runs a single short-lived, network-disabled Docker
// container with a read-only source mount and returns its combined output.
// It is the one place the Static Analyzer Adapter (pkg/analyzer) and the
// Gas Ranker (pkg/gas) touch Docker: network disabled, source mounted
// read-only, container auto-removed on exit.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// Runner launches sandboxed one-shot containers.
type Runner struct {
	cli *client.Client
}

// New creates a Runner backed by the local Docker daemon.
func New() (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to create Docker client: %w", err)
	}
	return &Runner{cli: cli}, nil
}

// Close releases the underlying Docker client connection.
func (r *Runner) Close() error {
	if r.cli == nil {
		return nil
	}
	return r.cli.Close()
}

// Mount is a single read-only bind mount into the sandbox.
type Mount struct {
	HostPath      string
	ContainerPath string
}

// Spec describes one sandboxed invocation.
type Spec struct {
	Image  string
	Cmd    []string
	Mounts []Mount
}

// Run creates, starts, and waits for a container built from spec, with
// networking disabled and every mount read-only, then removes the
// container and returns its combined stdout+stderr. The container is
// removed unconditionally, even when the command fails or ctx is
// cancelled, so sandboxes never accumulate on the host.
func (r *Runner) Run(ctx context.Context, spec Spec) (string, error) {
	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.HostPath,
			Target:   m.ContainerPath,
			ReadOnly: true,
		})
	}

	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Cmd:          spec.Cmd,
			AttachStdout: true,
			AttachStderr: true,
		},
		&container.HostConfig{
			NetworkMode: "none",
			Mounts:      mounts,
		},
		nil, (*specs.Platform)(nil), "")
	if err != nil {
		return "", fmt.Errorf("sandbox: failed to create container for image %s: %w", spec.Image, err)
	}
	defer r.cli.ContainerRemove(context.Background(), created.ID, types.ContainerRemoveOptions{Force: true})

	if err := r.cli.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("sandbox: failed to start container for image %s: %w", spec.Image, err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("sandbox: error waiting for container: %w", err)
		}
	case <-statusCh:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	out, err := r.cli.ContainerLogs(context.Background(), created.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("sandbox: failed to read container logs: %w", err)
	}
	defer out.Close()

	data, err := io.ReadAll(out)
	if err != nil {
		return "", fmt.Errorf("sandbox: failed to drain container logs: %w", err)
	}

	return stripDockerStreamHeaders(data), nil
}

// stripDockerStreamHeaders removes the 8-byte multiplexing header Docker
// prepends to every frame of a non-TTY container's combined log stream.
func stripDockerStreamHeaders(data []byte) string {
	var b strings.Builder
	for len(data) >= 8 {
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]
		if size > len(data) {
			size = len(data)
		}
		b.Write(data[:size])
		data = data[size:]
	}
	b.Write(data)
	return b.String()
}
