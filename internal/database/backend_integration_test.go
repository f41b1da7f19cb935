package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/etotom/safarov-shop/internal/database"
	"github.com/etotom/safarov-shop/internal/docstore"
)

type note struct {
	docstore.Meta
	Title string `json:"title"`
	Hits  int    `json:"hits"`
}

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("Skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if _, err := database.Migrate(ctx, db, "up"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestPostgresBackendCollectionContract(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	notes := docstore.NewCollection[note](database.NewPostgresBackend(db), "notes", "note")

	empty, err := notes.FindMany(ctx, docstore.Query{})
	if err != nil {
		t.Fatalf("FindMany on unwritten collection: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty collection, got %d records", len(empty))
	}

	created, err := notes.Create(ctx, note{Title: "first"})
	if err != nil {
		t.Fatalf("Create note: %v", err)
	}

	found, err := notes.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found == nil || found.Title != "first" {
		t.Fatalf("Expected to find created note, got %+v", found)
	}

	if _, err := notes.Update(ctx, "note_missing", func(n *note) { n.Hits = 1 }); err == nil {
		t.Error("Expected not found error updating missing note")
	}

	if err := notes.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := notes.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Second delete should be a no-op: %v", err)
	}
}

func TestPostgresBackendConcurrentUpdates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	notes := docstore.NewCollection[note](database.NewPostgresBackend(db), "notes", "note")

	created, err := notes.Create(ctx, note{Title: "counter"})
	if err != nil {
		t.Fatalf("Create note: %v", err)
	}

	concurrency := 10
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := notes.Update(ctx, created.ID, func(n *note) { n.Hits++ })
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	successCount := 0
	for err := range errs {
		if err == nil {
			successCount++
		} else {
			t.Logf("Update failed: %v", err)
		}
	}

	final, err := notes.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if final.Hits != successCount {
		t.Errorf("Expected %d hits, got %d", successCount, final.Hits)
	}
	if successCount == 0 {
		t.Error("Expected at least one update to succeed")
	}
}
