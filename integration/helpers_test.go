//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/minio/minio-go/v7"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/fastdb"
	core "github.com/meigma/fastdb/core"
	miniosrc "github.com/meigma/fastdb/core/minio"
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
	skipWithoutDocker(tb)

	registryOnce.Do(func() {
		registryAddr, registryErr = startContainer(context.Background(), testcontainers.ContainerRequest{
			Image:        "registry:2",
			ExposedPorts: []string{"5000/tcp"},
			WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
		}, "5000/tcp")
	})
	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}
	return registryAddr
}

// --- MinIO Container Setup ---

const (
	minioUser     = "fastdb"
	minioPassword = "fastdb-secret"
	minioBucket   = "maps"
)

var (
	minioOnce sync.Once
	minioAddr string
	minioErr  error
)

// getMinio returns the shared MinIO address with the test bucket created.
func getMinio(tb testing.TB) string {
	tb.Helper()
	skipWithoutDocker(tb)

	minioOnce.Do(func() {
		ctx := context.Background()
		minioAddr, minioErr = startContainer(ctx, testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			Cmd:          []string{"server", "/data"},
			Env:          map[string]string{"MINIO_ROOT_USER": minioUser, "MINIO_ROOT_PASSWORD": minioPassword},
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		}, "9000/tcp")
		if minioErr != nil {
			return
		}
		var client *minio.Client
		client, minioErr = miniosrc.NewClient(minioAddr, minioUser, minioPassword, false)
		if minioErr != nil {
			return
		}
		minioErr = client.MakeBucket(ctx, minioBucket, minio.MakeBucketOptions{})
	})
	if minioErr != nil {
		tb.Fatalf("start minio container: %v", minioErr)
	}
	return minioAddr
}

func skipWithoutDocker(tb testing.TB) {
	tb.Helper()
	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}
}

// startContainer starts req and returns the host:port address of port.
// Cleanup is left to the testcontainers reaper.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start %s: %w", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %s host: %w", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", fmt.Errorf("resolve %s port: %w", req.Image, err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Test Client Factory ---

// newTestClient creates a client for the local registry and MinIO.
func newTestClient(tb testing.TB, opts ...fastdb.Option) *fastdb.Client {
	tb.Helper()

	allOpts := append([]fastdb.Option{fastdb.WithPlainHTTP(true)}, opts...)
	client, err := fastdb.NewClient(allOpts...)
	require.NoError(tb, err, "create test client")
	return client
}

// testRef generates a unique oci:// location for a test.
func testRef(registryAddr, testName string) string {
	return fmt.Sprintf("oci://%s/test/%s:latest", registryAddr, testName)
}

// --- Test Data Helpers ---

// roadsDatabase builds a line layer with n features and a name column.
func roadsDatabase(tb testing.TB, n int, opts ...core.BuildOption) []byte {
	tb.Helper()
	b := core.NewBuilder(opts...)
	l := b.CreateLayer("roads").SetGeometryType(core.GeometryLineString, core.CoordTx24, true)
	name, err := l.AddField("name", core.FieldSTR, 0, 0)
	require.NoError(tb, err)
	lanes, err := l.AddField("lanes", core.FieldU8, 0, 0)
	require.NoError(tb, err)

	for i := range n {
		x := float64(i%360) - 180
		y := float64(i%170) - 85
		_, err := l.AddFeature().
			SetGeometry(orb.LineString{{x, y}, {x + 0.5, y + 0.25}, {x + 1, y}}).
			SetString(name, fmt.Sprintf("road-%d", i%50)).
			SetInt(lanes, int64(1+i%4)).
			End()
		require.NoError(tb, err)
	}
	require.NoError(tb, l.End())
	data, err := b.Bytes()
	require.NoError(tb, err)
	return data
}

// assertRoads checks the shape of a database built by roadsDatabase.
func assertRoads(tb testing.TB, db *fastdb.DB, n int) {
	tb.Helper()
	layer, err := db.Layer(0)
	require.NoError(tb, err)
	require.Equal(tb, "roads", layer.Name())
	require.Equal(tb, n, layer.FeatureCount())

	col, err := layer.Column(1)
	require.NoError(tb, err)
	require.Len(tb, col, n)

	f, ok := layer.TryGetFeature(n - 1)
	require.True(tb, ok)
	chunk, err := f.GeometryLikeChunk().AsBufferArray("uint8")
	require.NoError(tb, err)
	require.NotEmpty(tb, chunk)
	g, err := f.Geometry()
	require.NoError(tb, err)
	require.IsType(tb, orb.LineString{}, g)
}
