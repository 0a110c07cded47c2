package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	cblog "github.com/holon-run/coverbot/pkg/log"
	"github.com/holon-run/coverbot/pkg/log/redact"
)

// ContainerRunner runs the invocation inside a Docker image. The working
// directory is mounted at the same path so report and coverage paths match
// the host layout.
type ContainerRunner struct {
	cli   *client.Client
	Image string

	// Env is passed to the container as KEY=VALUE pairs.
	Env []string

	// Redactor masks secrets in the container logs before they are logged.
	Redactor *redact.Redactor
}

// NewContainerRunner connects to the Docker daemon configured in the environment.
func NewContainerRunner(imageRef string) (*ContainerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &ContainerRunner{cli: cli, Image: imageRef}, nil
}

// ContainerSpec is the create request derived from an invocation.
type ContainerSpec struct {
	Config *container.Config
	Host   *container.HostConfig
}

// BuildSpec maps an invocation onto container and host configuration.
func (r *ContainerRunner) BuildSpec(inv Invocation) ContainerSpec {
	return ContainerSpec{
		Config: &container.Config{
			Image:      r.Image,
			Cmd:        inv.Args,
			Env:        r.Env,
			WorkingDir: inv.Dir,
			User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
			Tty:        false,
		},
		Host: &container.HostConfig{
			Mounts: []mount.Mount{
				{
					Type:   mount.TypeBind,
					Source: inv.Dir,
					Target: inv.Dir,
				},
			},
		},
	}
}

// Run pulls the image, runs the invocation to completion and removes the container.
func (r *ContainerRunner) Run(ctx context.Context, inv Invocation) error {
	if len(inv.Args) == 0 {
		return fmt.Errorf("no command to run")
	}

	cblog.Progress("pulling runner image", "image", r.Image)
	reader, err := r.cli.ImagePull(ctx, r.Image, image.PullOptions{})
	if err != nil {
		cblog.Warn("failed to pull runner image, trying local copy", "image", r.Image, "error", err)
	} else {
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
	}

	spec := r.BuildSpec(inv)
	resp, err := r.cli.ContainerCreate(ctx, spec.Config, spec.Host, nil, nil, "")
	if err != nil {
		return &SpawnError{Name: r.Image, Err: fmt.Errorf("failed to create container: %w", err)}
	}
	defer func() {
		if err := r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			cblog.Warn("failed to remove runner container", "id", resp.ID, "error", err)
		}
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return &SpawnError{Name: r.Image, Err: fmt.Errorf("failed to start container: %w", err)}
	}

	cblog.Progress("running tests in container", "image", r.Image, "command", inv.String(), "dir", inv.Dir)

	var code int64
	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("container wait error: %w", err)
		}
	case status := <-statusCh:
		if status.Error != nil {
			return fmt.Errorf("container wait error: %s", status.Error.Message)
		}
		code = status.StatusCode
	}

	r.logOutput(ctx, resp.ID)

	if code != 0 {
		return &ExitError{Path: r.Image + ":" + inv.Args[0], Code: int(code)}
	}
	cblog.Info("runner finished", "exit_code", 0)
	return nil
}

func (r *ContainerRunner) logOutput(ctx context.Context, id string) {
	logs, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		cblog.Debug("failed to read container logs", "error", err)
		return
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		cblog.Debug("failed to demultiplex container logs", "error", err)
	}
	cblog.Debug("runner output", "stdout", r.Redactor.String(stdout.String()), "stderr", r.Redactor.String(stderr.String()))
}

// Ping reports whether the Docker daemon answers.
func (r *ContainerRunner) Ping(ctx context.Context) error {
	_, err := r.cli.Ping(ctx)
	return err
}
