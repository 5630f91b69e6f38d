package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStore(t *testing.T) {
	// Skip if running in CI without Docker
	if os.Getenv("SKIP_INTEGRATION_TESTS") != "" {
		t.Skip("Skipping integration tests")
	}
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()

	var pgContainer *postgres.PostgresContainer
	var err error
	func() {
		// testcontainers panics when no Docker daemon can be found
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		pgContainer, err = postgres.RunContainer(ctx,
			testcontainers.WithImage("postgres:15-alpine"),
			postgres.WithDatabase("testdb"),
			postgres.WithUsername("testuser"),
			postgres.WithPassword("testpass"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
	}()
	if err != nil {
		t.Skipf("Docker unavailable: %v", err)
	}
	defer pgContainer.Terminate(ctx)

	mappedPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=localhost port=%d user=testuser password=testpass dbname=testdb sslmode=disable",
		mappedPort.Int())
	store, err := OpenPostgres(ctx, connStr, 5, 2, testLogger())
	require.NoError(t, err)
	defer store.Close()

	testStoreContract(t, store)

	// Reconnecting reapplies nothing and keeps the data
	again, err := OpenPostgres(ctx, connStr, 5, 2, testLogger())
	require.NoError(t, err)
	defer again.Close()

	infos, err := again.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
}
