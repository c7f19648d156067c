package suite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-solo/internal/repository/storage"
)

const (
	containerTTL = 120
	startTimeout = 120 * time.Second

	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"
)

// skipEnv disables the container backed tests on machines without docker.
const skipEnv = "SKIP_DOCKER_TESTS"

// Suite is a redis server shared by the subtests of one test.
type Suite struct {
	*testing.T

	Storage *redis.Client
}

// New - starts a throwaway redis container and connects to it through
// storage.New, the same path the application takes. The container is purged
// when the test ends.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	if os.Getenv(skipEnv) != "" {
		t.Skipf("%s is set", skipEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	t.Cleanup(cancel)

	pool, resource := startRedis(t)

	client, err := connect(ctx, pool, resource.GetHostPort(redisPort))
	if err != nil {
		_ = pool.Purge(resource)
		t.Fatalf("could not connect to redis: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()

		if err := pool.Purge(resource); err != nil {
			t.Errorf("could not purge redis container: %v", err)
		}
	})

	st := &Suite{T: t, Storage: client}
	st.Reset(ctx, t)

	return ctx, st
}

// Reset - empties the database so a subtest starts from a clean slate.
func (that *Suite) Reset(ctx context.Context, t *testing.T) {
	t.Helper()

	if err := that.Storage.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush redis: %v", err)
	}
}

func startRedis(t *testing.T) (*dockertest.Pool, *dockertest.Resource) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}
	pool.MaxWait = startTimeout

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        redisTag,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start redis container: %v", err)
	}

	// a container left behind by a crashed run is reaped by docker
	_ = resource.Expire(containerTTL)

	return pool, resource
}

// connect - retries until the container accepts connections.
func connect(ctx context.Context, pool *dockertest.Pool, addr string) (*redis.Client, error) {
	var client *redis.Client

	err := pool.Retry(func() error {
		var err error
		client, err = storage.New(ctx, addr)
		return err
	})

	return client, err
}
