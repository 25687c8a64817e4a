// Package preference stores per-user UI preferences, such as suppressing
// the skipped-with-risk warning dialog. Preferences are keyed by user, not
// by session: a choice made on one device holds everywhere.
package preference

import (
	"context"
	"sync"
	"time"

	id "dealflow/pkg/domain"
)

// Key names one suppressible prompt.
type Key string

const (
	// KeySkipRiskWarning suppresses the confirmation dialog shown before a
	// condition is skipped with risk.
	KeySkipRiskWarning Key = "skip_risk_warning"
)

// Preference is one persisted flag for one user.
type Preference struct {
	UserID    id.UserID `json:"user_id"`
	Key       Key       `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists preferences. Reads for absent rows return the zero value,
// never an error; an unset preference is simply false.
type Store interface {
	Set(ctx context.Context, p Preference) error
	Get(ctx context.Context, userID id.UserID, key Key) (Preference, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]Preference, error)
}

type prefKey struct {
	userID id.UserID
	key    Key
}

// InMemoryStore keeps preferences in a mutex-guarded map.
type InMemoryStore struct {
	mu    sync.RWMutex
	prefs map[prefKey]Preference
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{prefs: make(map[prefKey]Preference)}
}

func (s *InMemoryStore) Set(_ context.Context, p Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefKey{p.UserID, p.Key}] = p
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID, key Key) (Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[prefKey{userID, key}]
	if !ok {
		return Preference{UserID: userID, Key: key}, nil
	}
	return p, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Preference
	for k, p := range s.prefs {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}
