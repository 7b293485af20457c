package migrations

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration represents a database migration record
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// Step is a named schema change applied at most once.
type Step struct {
	Name string
	Fn   func(*gorm.DB) error
}

// SendDbMigrations run in order after AutoMigrate of the send database.
var SendDbMigrations = []Step{
	{Name: "20241019_send_records_sender_height", Fn: AddSendRecordSenderHeightIndex},
}

// MigrationManager handles database migrations
type MigrationManager struct {
	db *gorm.DB
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureMigrationTable ensures the migrations table exists
func (m *MigrationManager) EnsureMigrationTable() error {
	if !m.db.Migrator().HasTable(&Migration{}) {
		log.Debugf("Creating migrations table")
		return m.db.AutoMigrate(&Migration{})
	}
	return nil
}

// HasMigration checks if a migration has been applied
func (m *MigrationManager) HasMigration(name string) bool {
	var count int64
	err := m.db.Model(&Migration{}).Where("name = ?", name).Count(&count).Error
	return err == nil && count > 0
}

// Apply creates the migrations table if needed and runs every pending step.
func (m *MigrationManager) Apply(steps []Step) error {
	if err := m.EnsureMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	for _, step := range steps {
		if err := m.RunMigration(step.Name, step.Fn); err != nil {
			return err
		}
	}
	return nil
}

// RunMigration runs a migration if it hasn't been applied yet
func (m *MigrationManager) RunMigration(name string, migrationFn func(*gorm.DB) error) error {
	if m.HasMigration(name) {
		log.Debugf("Migration %s has already been applied, skipping", name)
		return nil
	}

	log.Debugf("Running migration: %s", name)
	err := m.db.Transaction(func(tx *gorm.DB) error {
		// another process may have applied it since the check above
		var count int64
		if err := tx.Model(&Migration{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			return nil
		}

		if err := migrationFn(tx); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}

		if err := tx.Create(&Migration{Name: name, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		log.Debugf("Recorded migration: %s", name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to run migration %s: %w", name, err)
	}

	log.Debugf("Successfully completed migration: %s", name)
	return nil
}
