//go:build dockertest

package cache_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/backend/backendtest"
	"github.com/queuehub/queuehub/internal/backend/cache"
)

var addr string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not connect to docker: %s", err)
	}

	resource, err := pool.Run("redis", "7", nil)
	if err != nil {
		log.Fatalf("could not start redis: %s", err)
	}
	defer pool.Purge(resource)

	addr = fmt.Sprintf("localhost:%s", resource.GetPort("6379/tcp"))
	if err := pool.Retry(func() error {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		return rdb.Ping(context.Background()).Err()
	}); err != nil {
		log.Fatalf("could not connect to redis: %s", err)
	}

	os.Exit(m.Run())
}

func newClient(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("flushall: %v", err)
	}
	return rdb
}

func TestBackendConformance(t *testing.T) {
	backendtest.RunBackendSuite(t, func() backend.Backend { return cache.New(newClient(t)) })
}

func TestSetStoreConformance(t *testing.T) {
	n := 0
	backendtest.RunSetStoreSuite(t, func() backend.SetStore {
		n++
		return cache.NewSetStore(newClient(t), fmt.Sprintf("restrictions_test_%d", n))
	})
}
