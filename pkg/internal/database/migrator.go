package database

import (
	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Call{},
	&models.CallEvent{},
	&models.CollabSession{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	return nil
}
