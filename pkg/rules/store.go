package rules

import (
	"encoding/json"
	"fmt"
	"sync"
)

// StorageKey is the blob key the rule document is persisted under.
const StorageKey = "settings"

// BlobStorage is the durable medium the Store persists through. The
// second return of ReadBlob is false when the key was never written,
// which the Store treats as an empty rule set rather than an error.
type BlobStorage interface {
	ReadBlob(key string) (data []byte, ok bool, err error)
	WriteBlob(key string, data []byte) error
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store owns the RuleSet. Every mutation re-reads the authoritative set
// from storage, applies the change, and writes it back inside a single
// critical section, so concurrent edits cannot lose updates and no caller
// ever acts on a stale in-memory copy.
type Store struct {
	mu      sync.Mutex
	storage BlobStorage
}

// NewStore creates a rule store over the given storage medium.
func NewStore(storage BlobStorage) *Store {
	return &Store{storage: storage}
}

// Load returns the current rule set. A medium that was never initialized
// yields an empty set; a read failure yields ErrStorageUnavailable.
func (s *Store) Load() (RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads and decodes the persisted document. Caller holds s.mu.
func (s *Store) load() (RuleSet, error) {
	data, ok, err := s.storage.ReadBlob(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		return RuleSet{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrStorageUnavailable, err)
	}
	return RuleSet(doc.Forwards), nil
}

// save encodes and writes the document. Caller holds s.mu.
func (s *Store) save(set RuleSet) error {
	data, err := json.MarshalIndent(document{Forwards: set}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}
	if err := s.storage.WriteBlob(StorageKey, data); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Save persists the given rule set as-is. Exposed for round-trip
// maintenance; normal mutation goes through Add and RemoveAt.
func (s *Store) Save(set RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(set)
}

// Add appends a rule and persists immediately. Returns ErrDuplicateRule
// when an identical tuple is already stored, ErrStorageUnavailable when
// the write fails; in both cases nothing is committed.
func (s *Store) Add(rule ForwardRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load()
	if err != nil {
		return err
	}
	if set.Contains(rule) {
		return ErrDuplicateRule
	}
	return s.save(append(set, rule))
}

// RemoveAt removes the rule at the given 1-based index and persists
// immediately. The index is validated against the freshly loaded set, not
// against whatever listing the caller last saw, so a set that shrank in
// the meantime yields ErrIndexOutOfRange instead of removing the wrong
// rule. The removed rule is returned for confirmation messages.
func (s *Store) RemoveAt(index int) (ForwardRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load()
	if err != nil {
		return ForwardRule{}, err
	}
	if index < 1 || index > len(set) {
		return ForwardRule{}, ErrIndexOutOfRange
	}

	removed := set[index-1]
	set = append(set[:index-1], set[index:]...)
	if err := s.save(set); err != nil {
		return ForwardRule{}, err
	}
	return removed, nil
}
