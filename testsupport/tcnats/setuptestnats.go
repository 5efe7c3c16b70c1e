package tcnats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupTestNats starts (or reuses) a NATS server and returns a connection
// to it. The test is skipped when no container provider is available.
func SetupTestNats(t *testing.T) *nats.Conn {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	port, err := nat.NewPort("tcp", "4222")
	if err != nil {
		t.Fatal(err)
	}
	container, err := SetupNats(ctx,
		WithPort(port.Port()),
		WithWaitStrategy(
			wait.ForLog("Server is ready").
				WithStartupTimeout(10*time.Second)),
		WithName("participant-core-test-nats"),
	)
	if err != nil {
		t.Fatal(err)
	}
	containerPort, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatal(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	nc, err := nats.Connect(fmt.Sprintf("nats://%s:%s", host, containerPort.Port()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(nc.Close)
	return nc
}
