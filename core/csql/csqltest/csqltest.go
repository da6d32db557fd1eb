// Package csqltest starts a throw-away postgres for package tests.
//
// If the POSTGRES environment variable is set, that database is used instead of a container.
// Tests are skipped under -short or when no container provider is available.
package csqltest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/modelgate/core/csql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresUser     = "testuser"
	postgresPassword = "testpass"
	postgresDB       = "testdb"
)

// Open returns a database with a fresh schema named after the test. The schema is
// dropped when the test finishes.
func Open(t *testing.T) *csql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	dsn, password := os.Getenv("POSTGRES"), os.Getenv("POSTGRES_PASSWORD")
	if dsn == "" {
		dsn, password = startContainer(t)
	}

	schema := "_test_" + strings.ToLower(strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name()))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := csql.Open(ctx, dsn, password, schema)
	if err != nil {
		t.Fatal(err)
	}
	db.ClearSchema()
	t.Cleanup(func() {
		db.ClearSchema()
		db.Close()
	})
	return db
}

func startContainer(t *testing.T) (string, string) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Log("cannot terminate postgres container:", err)
		}
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port.Port(), postgresUser, postgresDB)
	return dsn, postgresPassword
}
