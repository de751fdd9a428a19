// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"captive-portal/controlplane/internal/infra"
	"captive-portal/controlplane/internal/logging"
	"captive-portal/controlplane/internal/repository"
)

// NewRepo returns a repository over a migrated in-memory database that is
// closed when the test ends.
func NewRepo(t testing.TB) *repository.GormRepository {
	t.Helper()
	db, err := infra.OpenDB(":memory:", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewGormRepository(db)
}
