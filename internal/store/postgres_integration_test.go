//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/valterpcjria-cloud/doi-smart/internal/service"
)

func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("doi"),
		tcpostgres.WithUsername("doi"),
		tcpostgres.WithPassword("doi"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.EnsureSchema(ctx))
	// Idempotent on an existing database.
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestPostgresStore(t *testing.T) {
	s := newPostgresStore(t)

	suite.Run(t, &storeSuite{
		reset: func() (service.RecordStore, service.CertificateStore) {
			_, err := s.Db.Exec(context.Background(), "TRUNCATE parties, records, certificates RESTART IDENTITY CASCADE")
			require.NoError(t, err)
			return s, s.Certificates()
		},
	})
}
