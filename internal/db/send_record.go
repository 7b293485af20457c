package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// LatestSendRecord returns the most recent record of sender, or nil when it never sent.
func (dm *DatabaseManager) LatestSendRecord(sender string) (*SendRecord, error) {
	var rec SendRecord
	err := dm.sendDb.Where("sender_key = ?", sender).Order("block_height desc, id desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (dm *DatabaseManager) InsertSendRecord(rec *SendRecord) error {
	return dm.sendDb.Create(rec).Error
}

// Outpoints decodes ConsumedOutpoints.
func (r *SendRecord) Outpoints() ([]string, error) {
	if r.ConsumedOutpoints == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(r.ConsumedOutpoints), &out); err != nil {
		return nil, fmt.Errorf("decode consumed outpoints of %s: %w", r.Txid, err)
	}
	return out, nil
}

func (r *SendRecord) SetOutpoints(outpoints []string) error {
	b, err := json.Marshal(outpoints)
	if err != nil {
		return err
	}
	r.ConsumedOutpoints = string(b)
	return nil
}

// SendRecordsSince returns the records of sender at or above height, newest first.
func (dm *DatabaseManager) SendRecordsSince(sender string, height uint64) ([]*SendRecord, error) {
	var recs []*SendRecord
	err := dm.sendDb.Where("sender_key = ? AND block_height >= ?", sender, height).
		Order("block_height desc, id desc").Find(&recs).Error
	return recs, err
}
