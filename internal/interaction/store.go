// Package interaction holds in-flight state of multi-step chat flows such as
// captcha challenges and the sticker pack picker. Nothing here is persisted.
package interaction

import (
	"fmt"
	"sync"
	"time"
)

// Key identifies an entry. Build keys with UserKey or TokenKey so flows never collide.
type Key struct {
	ChatID int64
	UserID int64
	Token  string
}

// UserKey addresses state owned by one user in one chat
func UserKey(chatID, userID int64) Key {
	return Key{ChatID: chatID, UserID: userID}
}

// TokenKey addresses state identified by an arbitrary token in one chat
func TokenKey(chatID int64, token string) Key {
	return Key{ChatID: chatID, Token: token}
}

func (k Key) String() string {
	if k.Token != "" {
		return fmt.Sprintf("%d/%s", k.ChatID, k.Token)
	}
	return fmt.Sprintf("%d/%d", k.ChatID, k.UserID)
}

// Entry is a stored payload with its creation time
type Entry struct {
	Payload   any
	CreatedAt time.Time
}

// Store is a mutex-protected key-value map. Expiry is up to the caller (see Guards).
type Store struct {
	mu      sync.Mutex
	entries map[Key]*Entry
	now     func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		entries: make(map[Key]*Entry),
		now:     time.Now,
	}
}

// Get returns the payload stored under key
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

// Entry returns the full entry stored under key
func (s *Store) Entry(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Set stores payload under key, replacing any previous entry
func (s *Store) Set(key Key, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &Entry{Payload: payload, CreatedAt: s.now()}
}

// Update replaces the payload of an existing entry with fn's result.
// It returns false without calling fn when the key is absent.
func (s *Store) Update(key Key, fn func(payload any) any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.Payload = fn(e.Payload)
	return true
}

// Delete removes the entry stored under key
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Pop removes and returns the entry stored under key. Only one of several
// concurrent callers for the same key gets ok == true.
func (s *Store) Pop(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	return e.Payload, true
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
