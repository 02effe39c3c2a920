package repo

import (
	"log"

	"party-service/internal/config"
	"party-service/internal/model"
	"party-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := config.GlobalConfig.Database.DSN
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database",
			zap.Error(err),
		)
	}

	if err := DB.AutoMigrate(&model.GameSession{}, &model.CheatRecord{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}
