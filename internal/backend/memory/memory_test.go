package memory_test

import (
	"testing"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/backend/backendtest"
	"github.com/queuehub/queuehub/internal/backend/memory"
)

func TestBackendConformance(t *testing.T) {
	backendtest.RunBackendSuite(t, func() backend.Backend { return memory.New() })
}

func TestSetStoreConformance(t *testing.T) {
	backendtest.RunSetStoreSuite(t, func() backend.SetStore { return memory.NewSetStore() })
}
