package chat

import (
	"sync"
	"time"
)

// ReplyRecord is one normalized assistant reply. Records are immutable after
// creation; ReceivedAt doubles as the ordering key and the poller's
// de-duplication token.
type ReplyRecord struct {
	Text       string `json:"text"`
	MessageID  string `json:"message_id"`
	UserID     int64  `json:"user_id,omitempty"`
	ReceivedAt int64  `json:"received_at"` // unix milliseconds at ingestion
}

// Store buffers replies per conversation topic. It is the single owner of the
// per-topic logs: the webhook handler appends, poll reads observe either the
// old or the new tail, never a partial record. Construct one at startup and
// hand the same instance to both sides.
type Store struct {
	mu     sync.RWMutex
	topics map[int64][]ReplyRecord
}

func NewStore() *Store {
	return &Store{topics: make(map[int64][]ReplyRecord)}
}

// Append adds a record to the topic's log, creating the log if needed.
// The store never de-duplicates; duplicate webhook deliveries append
// duplicate records.
func (s *Store) Append(topicID int64, rec ReplyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topicID] = append(s.topics[topicID], rec)
}

// Latest returns the most recent record for the topic, or ok=false if the
// topic has no records.
func (s *Store) Latest(topicID int64) (ReplyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.topics[topicID]
	if len(log) == 0 {
		return ReplyRecord{}, false
	}
	return log[len(log)-1], true
}

// All returns the topic's full log in arrival order. The returned slice is a
// copy; it is never nil.
func (s *Store) All(topicID int64) []ReplyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.topics[topicID]
	out := make([]ReplyRecord, len(log))
	copy(out, log)
	return out
}

// Clear removes the topic's log entirely.
func (s *Store) Clear(topicID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topicID)
}

// Now returns the current ingestion timestamp. Var so tests can pin it.
var Now = func() int64 {
	return time.Now().UnixMilli()
}
