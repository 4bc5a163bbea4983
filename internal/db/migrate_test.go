package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_marketplace.up.sql"])
	assert.True(t, names["000001_marketplace.down.sql"])
}

func TestWithMigrationsTable(t *testing.T) {
	got, err := withMigrationsTable("postgres://u:p@localhost:5432/qq?sslmode=disable", "qq_migrations")
	require.NoError(t, err)
	assert.Contains(t, got, "x-migrations-table=qq_migrations")
	assert.Contains(t, got, "sslmode=disable")

	same, err := withMigrationsTable("postgres://localhost/qq", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/qq", same)
}
