//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL container and returns its DSN
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "holdtrack",
			"POSTGRES_PASSWORD": "holdtrack",
			"POSTGRES_DB":       "holdtrack",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return fmt.Sprintf("postgres://holdtrack:holdtrack@%s:%s/holdtrack?sslmode=disable", host, port.Port())
}

func TestPostgresStore_Contract(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	runStoreContract(t, func(t *testing.T) Store {
		store, err := NewPostgresStore(ctx, dsn, 5, testLogger())
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		t.Cleanup(func() {
			store.db.ExecContext(ctx, `TRUNCATE accounts, devices, holds RESTART IDENTITY`)
			store.Close()
		})
		return store
	})
}
