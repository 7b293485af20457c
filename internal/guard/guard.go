package guard

import (
	"fmt"
	"strings"

	"github.com/lashpay/lash-relayer/internal/db"
	log "github.com/sirupsen/logrus"
)

type Policy int

const (
	// FailOpen treats an unreachable record store as "eligible" and logs a warning.
	FailOpen Policy = iota
	// FailClosed refuses to send while the record store is unreachable.
	FailClosed
)

func (p Policy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-open", "open":
		return FailOpen, nil
	case "fail-closed", "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// RecordStore is the append-only send ledger.
type RecordStore interface {
	LatestSendRecord(sender string) (*db.SendRecord, error)
	SendRecordsSince(sender string, height uint64) ([]*db.SendRecord, error)
	AddSendRecord(rec *db.SendRecord) error
}

type Eligibility struct {
	CanSend   bool
	HasLast   bool
	LastBlock uint64
	// Degraded is set when the store could not be read and FailOpen let the send through.
	Degraded bool
}

type ReplayGuard struct {
	store  RecordStore
	policy Policy
}

func NewReplayGuard(store RecordStore, policy Policy) *ReplayGuard {
	return &ReplayGuard{store: store, policy: policy}
}

func (g *ReplayGuard) Policy() Policy {
	return g.policy
}

// CheckEligible allows a send only when currentHeight is above the height of the sender's
// latest record.
func (g *ReplayGuard) CheckEligible(sender string, currentHeight uint64) (*Eligibility, error) {
	rec, err := g.store.LatestSendRecord(sender)
	if err != nil {
		if g.policy == FailOpen {
			log.Warnf("Replay guard store unreachable for %s, failing open: %v", sender, err)
			return &Eligibility{CanSend: true, Degraded: true}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrGuardUnavailable, err)
	}
	if rec == nil {
		return &Eligibility{CanSend: true}, nil
	}
	return &Eligibility{
		CanSend:   currentHeight > rec.BlockHeight,
		HasLast:   true,
		LastBlock: rec.BlockHeight,
	}, nil
}

// Require is CheckEligible returning *ReplayBlockedError when the sender must wait.
func (g *ReplayGuard) Require(sender string, currentHeight uint64) (*Eligibility, error) {
	e, err := g.CheckEligible(sender, currentHeight)
	if err != nil {
		return nil, err
	}
	if !e.CanSend {
		return e, &ReplayBlockedError{Sender: sender, LastBlock: e.LastBlock, CurrentHeight: currentHeight}
	}
	return e, nil
}

// Record appends rec. Under FailOpen a storage error is logged and dropped.
func (g *ReplayGuard) Record(rec *db.SendRecord) error {
	if err := g.store.AddSendRecord(rec); err != nil {
		if g.policy == FailOpen {
			log.Warnf("Replay guard failed to record txid %s for %s, failing open: %v", rec.Txid, rec.SenderKey, err)
			return nil
		}
		return fmt.Errorf("%w: record %s: %v", ErrGuardUnavailable, rec.Txid, err)
	}
	return nil
}

// RecentlyConsumed returns the outpoints spent by sender's records at or above height since.
func (g *ReplayGuard) RecentlyConsumed(sender string, since uint64) (map[string]struct{}, error) {
	recs, err := g.store.SendRecordsSince(sender, since)
	if err != nil {
		if g.policy == FailOpen {
			log.Warnf("Replay guard could not load consumed outpoints for %s, failing open: %v", sender, err)
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrGuardUnavailable, err)
	}
	consumed := make(map[string]struct{})
	for _, rec := range recs {
		outpoints, err := rec.Outpoints()
		if err != nil {
			log.Warnf("Skipping send record %s: %v", rec.Txid, err)
			continue
		}
		for _, op := range outpoints {
			consumed[strings.ToLower(op)] = struct{}{}
		}
	}
	return consumed, nil
}
