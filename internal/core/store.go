package core

import (
	"fmt"
	"strings"
	"sync"

	"tendertriage/pkg/domain"
)

// RecordStore is the process-wide table of tender records and their statuses.
// Records keep their load order for display. Every mutation happens under the
// store lock, so a status write is atomic per record and concurrent writers to
// the same record resolve last-writer-wins.
type RecordStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*domain.Record
}

// NewRecordStore constructs an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*domain.Record)}
}

// Load appends records in order. It fails without mutating the store if any
// record has an empty or duplicate identifier, or a status outside the ladder.
func (s *RecordStore) Load(records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return domain.ErrInvalidInput{Field: "id", Reason: fmt.Sprintf("record %d has an empty identifier", i)}
		}
		if _, dup := s.records[rec.ID]; dup {
			return domain.ErrInvalidInput{Field: "id", Value: rec.ID, Reason: "duplicate identifier"}
		}
		if _, dup := seen[rec.ID]; dup {
			return domain.ErrInvalidInput{Field: "id", Value: rec.ID, Reason: "duplicate identifier"}
		}
		if !rec.Status.Valid() {
			return domain.ErrInvalidInput{Field: "status", Value: rec.Status.String(), Reason: "unknown status"}
		}
		seen[rec.ID] = struct{}{}
	}
	for _, rec := range records {
		cp := rec
		s.records[rec.ID] = &cp
		s.order = append(s.order, rec.ID)
	}
	return nil
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns a copy of the record with the given id.
func (s *RecordStore) Get(id string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, false
	}
	return *rec, true
}

// Snapshot returns copies of all records in load order.
func (s *RecordStore) Snapshot() []domain.Record {
	return s.Preview(-1)
}

// Preview returns copies of the first n records; n < 0 returns all of them.
func (s *RecordStore) Preview(n int) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 || n > len(s.order) {
		n = len(s.order)
	}
	out := make([]domain.Record, n)
	for i, id := range s.order[:n] {
		out[i] = *s.records[id]
	}
	return out
}

// Samples returns the id and amount of every record: a fresh working set.
func (s *RecordStore) Samples() []domain.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Sample, len(s.order))
	for i, id := range s.order {
		out[i] = domain.Sample{ID: id, Amount: s.records[id].Amount}
	}
	return out
}

// SetStatus overwrites a record's status unconditionally.
func (s *RecordStore) SetStatus(id string, status domain.Status) (domain.Record, error) {
	if !status.Valid() {
		return domain.Record{}, domain.ErrInvalidInput{Field: "status", Value: status.String(), Reason: "unknown status"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound{ID: id}
	}
	rec.Status = status
	return *rec, nil
}

// StampUnlocked writes status to each known id whose status is not locked at
// the moment of writing, and returns the ids written.
func (s *RecordStore) StampUnlocked(ids []string, status domain.Status) []string {
	if len(ids) == 0 || !status.Valid() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	written := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok || rec.Status.Locked() {
			continue
		}
		rec.Status = status
		written = append(written, id)
	}
	return written
}

// Counts tallies records per status.
func (s *RecordStore) Counts() map[domain.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.Status]int, 4)
	for _, st := range domain.Statuses() {
		counts[st] = 0
	}
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts
}
