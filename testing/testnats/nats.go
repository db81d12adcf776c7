package testnats

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedContainer *NATSContainer
	sharedErr       error
	sharedOnce      sync.Once
	sharedMu        sync.Mutex
)

type NATSContainer struct {
	Container testcontainers.Container
	URL       string
}

// SetupSharedNATS starts one NATS server per test binary.
// Pair it with TerminateShared in TestMain.
func SetupSharedNATS(t *testing.T) *NATSContainer {
	t.Helper()

	sharedOnce.Do(func() {
		sharedContainer, sharedErr = start(context.Background())
	})
	require.NoError(t, sharedErr)

	return sharedContainer
}

func start(ctx context.Context) (*NATSContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start nats container: %w", err)
	}

	host, err := natsContainer.Host(ctx)
	if err != nil {
		_ = natsContainer.Terminate(ctx)
		return nil, err
	}

	port, err := natsContainer.MappedPort(ctx, "4222")
	if err != nil {
		_ = natsContainer.Terminate(ctx)
		return nil, err
	}

	return &NATSContainer{
		Container: natsContainer,
		URL:       "nats://" + host + ":" + port.Port(),
	}, nil
}

// TerminateShared stops the shared NATS server.
func TerminateShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedContainer == nil || sharedContainer.Container == nil {
		return
	}
	if err := sharedContainer.Container.Terminate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %s\n", err)
	}
	sharedContainer = nil
}

func (nc *NATSContainer) Connect(t *testing.T) *nats.Conn {
	t.Helper()

	conn, err := nats.Connect(nc.URL)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return conn
}

// Subscribe returns a channel receiving every message published on subject.
func (nc *NATSContainer) Subscribe(t *testing.T, subject string) <-chan *nats.Msg {
	t.Helper()

	conn := nc.Connect(t)
	ch := make(chan *nats.Msg, 16)

	sub, err := conn.ChanSubscribe(subject, ch)
	require.NoError(t, err)
	require.NoError(t, conn.FlushTimeout(5*time.Second))

	t.Cleanup(func() { _ = sub.Unsubscribe() })

	return ch
}
