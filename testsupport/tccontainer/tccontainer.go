// Package tccontainer starts the reusable test containers of postgres and nats.
package tccontainer

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Option func(req *testcontainers.ContainerRequest)

func WithWaitStrategy(strategies ...wait.Strategy) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.WaitingFor = wait.ForAll(strategies...).WithDeadline(1 * time.Minute)
	}
}

func WithPort(port string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.ExposedPorts = append(req.ExposedPorts, port)
	}
}

func WithName(containerName string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.Name = containerName
	}
}

func WithEnv(key, value string) Option {
	return func(req *testcontainers.ContainerRequest) {
		if req.Env == nil {
			req.Env = map[string]string{}
		}
		req.Env[key] = value
	}
}

func WithCmd(cmd ...string) Option {
	return func(req *testcontainers.ContainerRequest) {
		req.Cmd = cmd
	}
}

// Start starts (or reuses) a container of image and returns host:port of the mapped port.
func Start(ctx context.Context, image, port string, opts ...Option) (string, error) {
	p, err := nat.NewPort("tcp", port)
	if err != nil {
		return "", err
	}
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{p.Port()},
	}
	for _, opt := range opts {
		opt(&req)
	}
	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            req.Name != "",
		})
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, p)
	if err != nil {
		return "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}
