package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/agora/pkg/sim"
)

// RunStore mirrors the simulation event stream (trades and the global action
// log) into a pebble database. It implements sim.Recorder. Mirroring is
// best-effort observability, not durable settlement: writes are async-synced
// and failures are surfaced to the caller to log and move on.
type RunStore struct {
	db *pebble.DB

	actionSeq uint64
	tradeSeq  uint64
}

// keys: a:<8-byte-seq> action records, t:<8-byte-seq> trades, run run id
func kAction(n uint64) []byte { return append([]byte("a:"), seqKey(n)...) }
func kTrade(n uint64) []byte  { return append([]byte("t:"), seqKey(n)...) }
func kRun() []byte            { return []byte("run") }

func NewRunStore(path string) (*RunStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error { return s.db.Close() }

// SetRunID stamps the store with the run identifier.
func (s *RunStore) SetRunID(id string) error {
	return s.db.Set(kRun(), []byte(id), pebble.NoSync)
}

// RunID returns the stamped run identifier, or "".
func (s *RunStore) RunID() (string, error) {
	val, closer, err := s.db.Get(kRun())
	if err != nil {
		if err == pebble.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	defer closer.Close()
	return string(val), nil
}

// RecordAction appends one action log record.
func (s *RunStore) RecordAction(r sim.Record) error {
	val, err := encodeGob(r)
	if err != nil {
		return fmt.Errorf("encode action record: %w", err)
	}
	s.actionSeq++
	return s.db.Set(kAction(s.actionSeq), val, pebble.NoSync)
}

// RecordTrade appends one trade.
func (s *RunStore) RecordTrade(t sim.Trade) error {
	val, err := encodeGob(t)
	if err != nil {
		return fmt.Errorf("encode trade: %w", err)
	}
	s.tradeSeq++
	return s.db.Set(kTrade(s.tradeSeq), val, pebble.NoSync)
}

// Actions replays the mirrored action log in append order.
func (s *RunStore) Actions() ([]sim.Record, error) {
	var out []sim.Record
	err := s.scan([]byte("a:"), func(val []byte) error {
		var r sim.Record
		if err := decodeGob(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// Trades replays the mirrored trades in append order.
func (s *RunStore) Trades() ([]sim.Trade, error) {
	var out []sim.Trade
	err := s.scan([]byte("t:"), func(val []byte) error {
		var t sim.Trade
		if err := decodeGob(val, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

func (s *RunStore) scan(prefix []byte, fn func(val []byte) error) error {
	// upper bound: prefix with its last byte bumped ("a:" → "a;")
	upper := append([]byte{}, prefix...)
	upper[len(upper)-1]++
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

var _ sim.Recorder = (*RunStore)(nil)
