//go:build integration

package integration

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/keyutils/insert"
	"github.com/meigma/keyutils/internal/testutil"
	"github.com/meigma/keyutils/oci"
	"github.com/meigma/keyutils/store"
)

// --- Registry Container Setup ---

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container if needed.
// The container is shared across all tests for performance.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		registryAddr, registryErr = startRegistryContainer(context.Background())
	})
	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}
	return registryAddr
}

// startRegistryContainer starts a registry:2 container and returns the host:port address.
func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Client Factories ---

// newClient returns an anonymous plain HTTP client for the test registry.
func newClient() *oci.Client {
	return oci.New(oci.WithPlainHTTP(true), oci.WithAnonymous())
}

// testRepo returns a repository unique to the test.
func testRepo(registryAddr, testName string) string {
	name := strings.ToLower(strings.NewReplacer("/", "-", "_", "-").Replace(testName))
	return fmt.Sprintf("%s/test/%s", registryAddr, name)
}

// newInserter returns an inserter writing to repo on the test registry.
func newInserter(tb testing.TB, client *oci.Client, repo string, opts ...insert.Option) *insert.Inserter {
	tb.Helper()
	target, err := client.Target(repo)
	require.NoError(tb, err)
	ins, err := insert.New(target, repo, append([]insert.Option{insert.WithDigestTags(false)}, opts...)...)
	require.NoError(tb, err)
	return ins
}

// newStore returns a store reading from the test registry.
func newStore(tb testing.TB, client *oci.Client, opts ...store.Option) *store.Store {
	tb.Helper()
	st, err := store.New(client.ReadOnlyTarget, opts...)
	require.NoError(tb, err)
	return st
}

// --- Test Data Helpers ---

// makeCompressibleContent creates content that benefits from compression.
func makeCompressibleContent(size int) []byte {
	return testutil.CompressibleBytes(size)
}

// makeRandomContent creates random binary content.
func makeRandomContent(size int) []byte {
	data := make([]byte, size)
	_, _ = rand.Read(data)
	return data
}
