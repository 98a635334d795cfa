package architect

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/plan"
	"github.com/cexll/promptarch/pkg/selection"
)

// Stage is the pipeline position of a session.
type Stage string

const (
	StageInput        Stage = "INPUT"
	StageSelecting    Stage = "SELECTING"
	StageConfirmation Stage = "CONFIRMATION"
	StagePlanning     Stage = "PLANNING"
	StageResult       Stage = "RESULT"
	StageRevising     Stage = "REVISING"
)

// Turn is one conversational exchange in the clarification path.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session carries the pipeline state between HTTP calls. All access goes
// through the SessionStore; a Session value held by a caller is a snapshot.
type Session struct {
	ID           string
	Stage        Stage
	Request      string
	Constraints  selection.Constraints
	Capabilities []selection.Capability

	Selection selection.Result
	Tool      catalog.Tool
	Auxiliary []catalog.Tool
	Plan      *plan.Plan

	History []Turn

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 30 * time.Minute

type sessionEntry struct {
	session Session
	expires time.Time
}

// SessionStore is a TTL'd in-memory session map. Every read refreshes
// nothing; every update refreshes the expiry. A sweep goroutine reclaims
// expired entries so abandoned sessions do not accumulate.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*sessionEntry
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithStoreClock substitutes the time source, for tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore builds a store and starts its sweep goroutine.
func NewSessionStore(ttl time.Duration, opts ...StoreOption) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.sweep()
	return s
}

// Close stops the sweep goroutine.
func (s *SessionStore) Close() {
	close(s.stop)
	<-s.done
}

// Create registers a fresh session at the input stage.
func (s *SessionStore) Create() Session {
	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		Stage:     StageInput,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &sessionEntry{session: session, expires: now.Add(s.ttl)}
	return session
}

// Get returns a snapshot of the session. Expired sessions are treated as
// absent even before the sweeper reclaims them.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.now().After(entry.expires) {
		return Session{}, false
	}
	return entry.session, true
}

// Update mutates the session under the store lock and refreshes its TTL.
// The callback must not block; generation work happens outside the store.
func (s *SessionStore) Update(id string, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.now().After(entry.expires) {
		return ErrSessionNotFound
	}
	fn(&entry.session)
	entry.session.UpdatedAt = s.now()
	entry.expires = s.now().Add(s.ttl)
	return nil
}

// Len reports the number of live sessions, expired entries excluded.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, entry := range s.sessions {
		if !now.After(entry.expires) {
			n++
		}
	}
	return n
}

func (s *SessionStore) sweep() {
	defer close(s.done)
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for id, entry := range s.sessions {
				if now.After(entry.expires) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
