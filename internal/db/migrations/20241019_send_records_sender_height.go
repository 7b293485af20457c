package migrations

import (
	"gorm.io/gorm"
)

// AddSendRecordSenderHeightIndex speeds up the latest-record lookup done before every send.
func AddSendRecordSenderHeightIndex(tx *gorm.DB) error {
	return tx.Exec("CREATE INDEX IF NOT EXISTS idx_send_records_sender_height ON send_records (sender_key, block_height)").Error
}
