package database

import (
	"iamcore/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Starting database migration...")

	err := db.AutoMigrate(
		&models.Domain{},
		&models.Role{},
		&models.User{},
		&models.Menu{},
		&models.Endpoint{},
		&models.RoleMenu{},
		&models.UserRole{},
		&models.RolePermission{},
	)
	if err != nil {
		log.Errorf("Database migration failed: %v", err)
		return err
	}

	log.Info("Database migration completed successfully")
	return nil
}
