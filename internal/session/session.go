// Package session keeps per-user state for the schema collector UI.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/synthdata/internal/scheduler"
	"github.com/JonMunkholm/synthdata/internal/schema"
)

// ErrUnknownSession is returned for ids that do not exist or have expired.
var ErrUnknownSession = errors.New("unknown session")

// Session is the state of one user working through the generator flow.
type Session struct {
	ID     string             `json:"id"`
	Tables []schema.TableSpec `json:"tables"`
	// SchemaText is the schema file as last drafted or edited.
	SchemaText string `json:"schemaText"`
	// Saved is true once SchemaText has been written to the schema path.
	Saved        bool            `json:"saved"`
	RunID        string          `json:"runId,omitempty"`
	RunState     scheduler.State `json:"runState,omitempty"`
	RunError     string          `json:"runError,omitempty"`
	ArchiveReady bool            `json:"archiveReady"`
	Created      time.Time       `json:"created"`
	Touched      time.Time       `json:"touched"`
}

func (s *Session) clone() Session {
	c := *s
	c.Tables = append([]schema.TableSpec(nil), s.Tables...)
	return c
}

// Store is an in-memory session store with idle expiry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore returns a store that forgets sessions idle for longer than ttl.
// A background sweep runs every ttl/2 until Stop is called.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweepLoop()
	}
	return s
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Stop ends the background sweep.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Create starts a new empty session.
func (s *Store) Create() Session {
	now := s.now()
	sess := &Session{ID: uuid.NewString(), Tables: []schema.TableSpec{}, Created: now, Touched: now}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.clone()
}

// Get returns a copy of a session.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	sess.Touched = s.now()
	return sess.clone(), nil
}

// Update applies fn to a session under the store lock and returns the
// result. Returning an error from fn leaves the session unchanged.
func (s *Store) Update(id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	work := sess.clone()
	if err := fn(&work); err != nil {
		return Session{}, err
	}
	work.ID = sess.ID
	work.Touched = s.now()
	*sess = work
	return work.clone(), nil
}

// FindByRun returns the session that owns runID.
func (s *Store) FindByRun(runID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.RunID == runID {
			return sess.clone(), true
		}
	}
	return Session{}, false
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.Touched) > s.ttl
}

func (s *Store) lookup(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, nil
}
