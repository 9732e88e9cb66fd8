// Package dbtest opens a migrated in-memory database for tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/database"
)

func New(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.OpenAndMigrate(database.Config{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
