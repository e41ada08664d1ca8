//go:build dockertest

package document_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/backend/backendtest"
	"github.com/queuehub/queuehub/internal/backend/document"
)

var uri string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not connect to docker: %s", err)
	}

	resource, err := pool.Run("mongo", "6", nil)
	if err != nil {
		log.Fatalf("could not start mongo: %s", err)
	}
	defer pool.Purge(resource)

	uri = fmt.Sprintf("mongodb://localhost:%s", resource.GetPort("27017/tcp"))
	if err := pool.Retry(func() error {
		client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		return client.Ping(context.Background(), nil)
	}); err != nil {
		log.Fatalf("could not connect to mongo: %s", err)
	}

	os.Exit(m.Run())
}

func newDatabase(t *testing.T, n int) (*mongo.Client, string) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return client, fmt.Sprintf("queuehub_test_%d", n)
}

func TestBackendConformance(t *testing.T) {
	n := 0
	backendtest.RunBackendSuite(t, func() backend.Backend {
		n++
		client, db := newDatabase(t, n)
		be, err := document.Open(context.Background(), client, db)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return be
	})
}

func TestSetStoreConformance(t *testing.T) {
	n := 0
	backendtest.RunSetStoreSuite(t, func() backend.SetStore {
		n++
		client, db := newDatabase(t, n)
		s, err := document.OpenSetStore(context.Background(), client, db, "restrictions")
		if err != nil {
			t.Fatalf("open set store: %v", err)
		}
		return s
	})
}
