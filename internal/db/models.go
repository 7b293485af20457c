package db

import (
	"fmt"
	"time"
)

// SendRecord is written once per broadcast transaction and never updated.
type SendRecord struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Txid        string `gorm:"uniqueIndex;not null" json:"txid"`
	SenderKey   string `gorm:"index;not null" json:"sender_key"` // sender address
	Kind        string `gorm:"not null" json:"kind"`             // "single", "multi", "batch", "sweep"
	BlockHeight uint64 `gorm:"not null" json:"block_height"`
	BlockTime   uint32 `json:"block_time"`
	// ConsumedOutpoints is a JSON array of "txhash:index".
	ConsumedOutpoints string    `gorm:"type:text;not null" json:"consumed_outpoints"`
	Amount            int64     `gorm:"not null" json:"amount"`
	Fee               int64     `gorm:"not null" json:"fee"`
	OutputCount       int       `gorm:"not null" json:"output_count"`
	RequestId         string    `json:"request_id"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
}

func (dm *DatabaseManager) autoMigrate() error {
	if err := dm.sendDb.AutoMigrate(&SendRecord{}); err != nil {
		return fmt.Errorf("migrate send database: %w", err)
	}
	return nil
}
