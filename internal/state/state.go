package state

import (
	"sync"

	"github.com/lashpay/lash-relayer/internal/db"
	log "github.com/sirupsen/logrus"
)

type SendRecordStore interface {
	LatestSendRecord(sender string) (*db.SendRecord, error)
	SendRecordsSince(sender string, height uint64) ([]*db.SendRecord, error)
	InsertSendRecord(rec *db.SendRecord) error
}

type State struct {
	EventBus *EventBus

	store SendRecordStore

	sendMu    sync.RWMutex
	sendState SendState
}

var _ SendRecordStore = (*db.DatabaseManager)(nil)

// InitializeState wraps the send record store with an in-memory cache of latest records.
func InitializeState(store SendRecordStore) *State {
	return &State{
		EventBus:  NewEventBus(),
		store:     store,
		sendState: SendState{Latest: make(map[string]*db.SendRecord)},
	}
}

// LatestSendRecord returns the cached latest record of sender, loading it from the store on a miss.
func (s *State) LatestSendRecord(sender string) (*db.SendRecord, error) {
	s.sendMu.RLock()
	rec, ok := s.sendState.Latest[sender]
	s.sendMu.RUnlock()
	if ok {
		return rec, nil
	}

	rec, err := s.store.LatestSendRecord(sender)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.cacheLatest(rec)
	}
	return rec, nil
}

func (s *State) SendRecordsSince(sender string, height uint64) ([]*db.SendRecord, error) {
	return s.store.SendRecordsSince(sender, height)
}

// AddSendRecord persists rec, refreshes the cache and publishes SendRecorded.
func (s *State) AddSendRecord(rec *db.SendRecord) error {
	if err := s.store.InsertSendRecord(rec); err != nil {
		log.Errorf("State AddSendRecord error, txid %s: %v", rec.Txid, err)
		return err
	}
	s.cacheLatest(rec)
	s.EventBus.Publish(SendRecorded, SendEvent{
		RequestId: rec.RequestId,
		Sender:    rec.SenderKey,
		Kind:      rec.Kind,
		Txid:      rec.Txid,
		Amount:    rec.Amount,
		Fee:       rec.Fee,
		Height:    rec.BlockHeight,
	})
	return nil
}

func (s *State) cacheLatest(rec *db.SendRecord) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if cur, ok := s.sendState.Latest[rec.SenderKey]; ok && cur.BlockHeight > rec.BlockHeight {
		return
	}
	s.sendState.Latest[rec.SenderKey] = rec
}
