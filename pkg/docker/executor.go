package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	sandboxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandboxed handin runs",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"image"})

	sandboxTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "sandbox",
		Name:      "timeouts_total",
		Help:      "Sandboxed handin runs that hit their timeout",
	}, []string{"image"})

	sandboxFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "sandbox",
		Name:      "failures_total",
		Help:      "Sandboxed handin runs the daemon could not complete",
	}, []string{"image", "stage"})
)

// LabelPrefix namespaces the labels put on every sandbox container.
const LabelPrefix = "io.gema-grader."

var (
	// ErrImageRequired indicates a request without an image.
	ErrImageRequired = errors.New("image is required")
	// ErrTimedOut indicates the sandbox was killed after exceeding its timeout.
	ErrTimedOut = errors.New("sandbox timed out")
)

// Executor runs a command inside a sandbox container with a handin workspace mounted.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// ExecutionRequest describes one sandboxed run. Workspace is bind mounted at WorkingDir.
type ExecutionRequest struct {
	Image           string
	Cmd             []string
	Env             []string
	User            string
	Timeout         time.Duration
	Workspace       string
	WorkingDir      string
	MemoryLimitMB   int64
	CPUShares       int64
	NetworkDisabled bool
	ReadOnlyFS      bool
	Labels          map[string]string
}

// ExecutionResult summarises a sandboxed run. A non-zero ExitCode is not an error.
type ExecutionResult struct {
	Stdout           string
	Stderr           string
	ExitCode         int
	Duration         time.Duration
	TimedOut         bool
	MemoryUsageBytes int64
	CPUUsageNanosec  uint64
}

// Config holds the daemon address and default limits applied when a request leaves them unset.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkingDir    string
	Logger        zerolog.Logger
}

// DockerExecutor runs sandboxes through the Docker Engine API.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor connects to the daemon. The connection is lazy; use Ping to verify it.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/pkg/docker"),
		logger: cfg.Logger.With().Str("component", "docker_sandbox").Logger(),
	}, nil
}

// Ping checks that the daemon is reachable.
func (e *DockerExecutor) Ping(ctx context.Context) error {
	if _, err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

// Run creates the container, waits for it within the timeout and collects its output.
// The container is always removed afterwards. A run killed by its timeout returns
// the partial result together with ErrTimedOut.
func (e *DockerExecutor) Run(parent context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if req.Image == "" {
		return ExecutionResult{}, ErrImageRequired
	}
	image := req.Image

	ctx, span := e.tracer.Start(parent, "docker.sandbox.run", trace.WithAttributes(
		attribute.String("docker.image", image),
		attribute.String("docker.workspace", req.Workspace),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	failed := func(stage string, err error) (ExecutionResult, error) {
		sandboxFailures.WithLabelValues(image, stage).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExecutionResult{}, fmt.Errorf("container %s: %w", stage, err)
	}

	resp, err := e.client.ContainerCreate(runCtx, e.containerConfig(req), e.hostConfig(req), &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return failed("create", err)
	}
	containerID := resp.ID
	defer e.remove(containerID)

	start := time.Now()
	if err := e.client.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		return failed("start", err)
	}

	exitCode, waitErr := e.wait(runCtx, containerID)
	result := ExecutionResult{ExitCode: exitCode, Duration: time.Since(start)}
	sandboxDuration.WithLabelValues(image).Observe(result.Duration.Seconds())

	switch {
	case waitErr == nil:
	case errors.Is(waitErr, context.DeadlineExceeded) && ctx.Err() == nil:
		result.TimedOut = true
		sandboxTimeouts.WithLabelValues(image).Inc()
		e.kill(containerID)
		span.SetStatus(codes.Error, "sandbox timed out")
	default:
		return failed("wait", waitErr)
	}

	// Logs and stats are best effort and read with the caller's context, not the expired run context.
	result.Stdout, result.Stderr = e.collectLogs(ctx, containerID)
	result.MemoryUsageBytes, result.CPUUsageNanosec = e.collectStats(ctx, containerID)

	if result.TimedOut {
		return result, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	}

	span.SetAttributes(attribute.Int("docker.exit_code", result.ExitCode))
	e.logger.Debug().
		Str("image", image).
		Str("container_id", containerID).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("sandbox run completed")

	return result, nil
}

func (e *DockerExecutor) containerConfig(req ExecutionRequest) *container.Config {
	labels := map[string]string{LabelPrefix + "sandbox": "true"}
	for k, v := range req.Labels {
		labels[LabelPrefix+k] = v
	}

	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = e.cfg.WorkingDir
	}

	return &container.Config{
		Image:        req.Image,
		Cmd:          req.Cmd,
		Env:          req.Env,
		User:         req.User,
		WorkingDir:   workingDir,
		Labels:       labels,
		AttachStdout: true,
		AttachStderr: true,
	}
}

func (e *DockerExecutor) hostConfig(req ExecutionRequest) *container.HostConfig {
	memoryMB := req.MemoryLimitMB
	if memoryMB <= 0 {
		memoryMB = e.cfg.MemoryLimitMB
	}
	cpuShares := req.CPUShares
	if cpuShares <= 0 {
		cpuShares = e.cfg.CPUShares
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:    memoryMB * 1024 * 1024,
			CPUShares: cpuShares,
		},
		NetworkMode:    "bridge",
		ReadonlyRootfs: req.ReadOnlyFS,
	}
	if req.NetworkDisabled {
		hostCfg.NetworkMode = "none"
	}

	if req.Workspace != "" {
		target := req.WorkingDir
		if target == "" {
			target = e.cfg.WorkingDir
		}
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: req.Workspace,
			Target: target,
		}}
	}
	return hostCfg
}

func (e *DockerExecutor) wait(ctx context.Context, containerID string) (int, error) {
	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)
	select {
	case err := <-errCh:
		return 0, err
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return int(status.StatusCode), errors.New(status.Error.Message)
		}
		return int(status.StatusCode), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (e *DockerExecutor) kill(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.client.ContainerKill(ctx, containerID, "KILL"); err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
	}
}

func (e *DockerExecutor) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
	}
}

func (e *DockerExecutor) collectLogs(ctx context.Context, containerID string) (string, string) {
	reader, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return "", ""
	}
	defer reader.Close()

	stdout, stderr, err := splitDockerLogs(reader)
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		return "", ""
	}
	return stdout, stderr
}

func (e *DockerExecutor) collectStats(ctx context.Context, containerID string) (int64, uint64) {
	statsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stats, err := e.client.ContainerStatsOneShot(statsCtx, containerID)
	if err != nil {
		return 0, 0
	}
	defer stats.Body.Close()

	var data types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&data); err != nil {
		return 0, 0
	}
	return int64(data.MemoryStats.Usage), data.CPUStats.CPUUsage.TotalUsage
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
