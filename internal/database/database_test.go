package database

import (
	"testing"

	"iamcore/internal/models"
	"iamcore/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open("file::memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接是独立的库
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, Migrate(db, logger.Discard()))

	for _, m := range []interface{}{
		&models.Domain{}, &models.Role{}, &models.User{}, &models.Menu{}, &models.Endpoint{},
		&models.RoleMenu{}, &models.UserRole{}, &models.RolePermission{},
	} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestRoleMenu_CompositeKeyRejectsDuplicates(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(db, logger.Discard()))

	row := models.RoleMenu{RoleID: "r1", MenuID: 1, Domain: "built-in"}
	require.NoError(t, db.Create(&row).Error)
	assert.Error(t, db.Create(&row).Error)

	other := models.RoleMenu{RoleID: "r1", MenuID: 1, Domain: "tenant-a"}
	assert.NoError(t, db.Create(&other).Error)
}
