package minecraft

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// Docker controls a server running in a Docker container built from the
// itzg/minecraft-server image. Console commands go through rcon-cli, and
// updates recreate the container with a new VERSION.
type Docker struct {
	container   string
	stopTimeout int
	engine      engine
}

type containerInfo struct {
	Running bool
	Env     []string
}

// engine holds the container operations Docker relies on.
type engine interface {
	inspect(ctx context.Context, id string) (*containerInfo, error)
	start(ctx context.Context, id string) error
	stop(ctx context.Context, id string, timeout int) error
	restart(ctx context.Context, id string, timeout int) error
	recreate(ctx context.Context, id string, env []string) error
	exec(ctx context.Context, id string, cmd []string) (string, error)
	close() error
}

// NewDocker connects to the Docker daemon configured in the environment
// and controls the named container.
func NewDocker(containerName string, stopTimeout int) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Docker: %v", err)
	}
	if stopTimeout <= 0 {
		stopTimeout = 30
	}
	return &Docker{container: containerName, stopTimeout: stopTimeout, engine: &dockerEngine{cli}}, nil
}

func (d *Docker) Close() error {
	return d.engine.close()
}

func (d *Docker) Describe() string {
	return fmt.Sprintf("the Docker container %s", d.container)
}

func (d *Docker) Running(ctx context.Context) (bool, error) {
	info, err := d.engine.inspect(ctx, d.container)
	if err != nil {
		return false, fmt.Errorf("cannot inspect container %s: %v", d.container, err)
	}
	return info.Running, nil
}

func (d *Docker) Command(ctx context.Context, cmd string) (string, error) {
	debugf("Running console command: %s", cmd)
	out, err := d.engine.exec(ctx, d.container, []string{"rcon-cli", cmd})
	if err != nil {
		return "", fmt.Errorf("cannot run console command: %v", err)
	}
	return strings.TrimSpace(out), nil
}

func (d *Docker) OnlinePlayers(ctx context.Context) ([]string, error) {
	out, err := d.Command(ctx, "list")
	if err != nil {
		return nil, err
	}
	return ParsePlayers(out)
}

func envValue(env []string, key string) string {
	for _, kv := range env {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:]
		}
	}
	return ""
}

func (d *Docker) Version(ctx context.Context) (string, error) {
	info, err := d.engine.inspect(ctx, d.container)
	if err != nil {
		return "", fmt.Errorf("cannot inspect container %s: %v", d.container, err)
	}
	switch version := envValue(info.Env, "VERSION"); strings.ToUpper(version) {
	case "", "LATEST", "SNAPSHOT":
		return "", nil
	default:
		return version, nil
	}
}

func (d *Docker) Start(ctx context.Context) error {
	logf("Starting container %s", d.container)
	return d.engine.start(ctx, d.container)
}

func (d *Docker) Stop(ctx context.Context) error {
	logf("Stopping container %s", d.container)
	return d.engine.stop(ctx, d.container, d.stopTimeout)
}

func (d *Docker) Restart(ctx context.Context) error {
	logf("Restarting container %s", d.container)
	return d.engine.restart(ctx, d.container, d.stopTimeout)
}

func (d *Docker) WhitelistAdd(ctx context.Context, player string) error {
	out, err := d.Command(ctx, "whitelist add "+player)
	if err != nil {
		return err
	}
	debugf("Whitelist output: %s", out)
	return nil
}

func (d *Docker) Update(ctx context.Context, version string, snapshot bool, progress func(string)) (string, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if version == "" {
		if snapshot {
			return "", fmt.Errorf("no snapshot id given")
		}
		version = "LATEST"
	}
	info, err := d.engine.inspect(ctx, d.container)
	if err != nil {
		return "", fmt.Errorf("cannot inspect container %s: %v", d.container, err)
	}
	env := make([]string, 0, len(info.Env)+1)
	for _, kv := range info.Env {
		if !strings.HasPrefix(kv, "VERSION=") {
			env = append(env, kv)
		}
	}
	env = append(env, "VERSION="+version)

	progress("Stopping the server…")
	if info.Running {
		if err := d.engine.stop(ctx, d.container, d.stopTimeout); err != nil {
			return "", fmt.Errorf("cannot stop container %s: %v", d.container, err)
		}
	}
	progress("Switching to version " + version + "…")
	if err := d.engine.recreate(ctx, d.container, env); err != nil {
		return "", fmt.Errorf("cannot recreate container %s: %v", d.container, err)
	}
	progress("Starting the server…")
	if err := d.engine.start(ctx, d.container); err != nil {
		return "", fmt.Errorf("cannot start container %s: %v", d.container, err)
	}
	logf("Container %s updated to version %s", d.container, version)
	return version, nil
}

type dockerEngine struct {
	cli *client.Client
}

func (e *dockerEngine) close() error {
	return e.cli.Close()
}

func (e *dockerEngine) inspect(ctx context.Context, id string) (*containerInfo, error) {
	resp, err := e.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, err
	}
	info := &containerInfo{}
	if resp.ContainerJSONBase != nil && resp.State != nil {
		info.Running = resp.State.Running
	}
	if resp.Config != nil {
		info.Env = resp.Config.Env
	}
	return info, nil
}

func (e *dockerEngine) start(ctx context.Context, id string) error {
	return e.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (e *dockerEngine) stop(ctx context.Context, id string, timeout int) error {
	return e.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
}

func (e *dockerEngine) restart(ctx context.Context, id string, timeout int) error {
	return e.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout})
}

// recreate replaces the container with an identical one using env.
func (e *dockerEngine) recreate(ctx context.Context, id string, env []string) error {
	resp, err := e.cli.ContainerInspect(ctx, id)
	if err != nil {
		return err
	}
	if resp.ContainerJSONBase == nil || resp.Config == nil {
		return fmt.Errorf("incomplete container information")
	}
	config := *resp.Config
	config.Env = env
	var netConfig *network.NetworkingConfig
	if resp.NetworkSettings != nil && len(resp.NetworkSettings.Networks) > 0 {
		netConfig = &network.NetworkingConfig{EndpointsConfig: resp.NetworkSettings.Networks}
	}
	name := strings.TrimPrefix(resp.Name, "/")
	if err := e.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
		return err
	}
	_, err = e.cli.ContainerCreate(ctx, &config, resp.HostConfig, netConfig, nil, name)
	return err
}

func (e *dockerEngine) exec(ctx context.Context, id string, cmd []string) (string, error) {
	exec, err := e.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
	})
	if err != nil {
		return "", err
	}
	resp, err := e.cli.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{Tty: true})
	if err != nil {
		return "", err
	}
	defer resp.Close()
	out, err := io.ReadAll(resp.Reader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
