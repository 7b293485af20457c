package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/db/migrations"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sendDbFile = "send_records.db"

// concurrent inserts wait on the lock instead of failing with SQLITE_BUSY
const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000"

type DatabaseManager struct {
	sendDb *gorm.DB
}

// NewDatabaseManager opens the databases under config.AppConfig.DbDir and exits on failure.
func NewDatabaseManager() *DatabaseManager {
	dm, err := OpenDatabaseManager(config.AppConfig.DbDir)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return dm
}

func OpenDatabaseManager(dbDir string) (*DatabaseManager, error) {
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	sendPath := filepath.Join(dbDir, sendDbFile)
	sendDb, err := gorm.Open(sqlite.Open(sendPath+sqliteParams), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to send database: %w", err)
	}
	log.Debugf("Send database connected successfully, path: %s", sendPath)

	dm := &DatabaseManager{sendDb: sendDb}
	if err := dm.autoMigrate(); err != nil {
		return nil, err
	}
	if err := migrations.NewMigrationManager(sendDb).Apply(migrations.SendDbMigrations); err != nil {
		return nil, err
	}
	log.Debugf("Database migration completed successfully")
	return dm, nil
}

func (dm *DatabaseManager) GetSendDB() *gorm.DB {
	return dm.sendDb
}

func (dm *DatabaseManager) Close() error {
	sqlDb, err := dm.sendDb.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
