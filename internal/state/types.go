package state

import "github.com/lashpay/lash-relayer/internal/db"

// SendState caches the latest send record per sender.
type SendState struct {
	Latest map[string]*db.SendRecord
}

// SendEvent is the payload of every send lifecycle event.
type SendEvent struct {
	RequestId string
	Sender    string
	Kind      string
	Txid      string
	Amount    int64
	Fee       int64
	Height    uint64
	Stage     string
	Error     string
}
