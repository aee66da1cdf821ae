package server

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/patient-docs/internal/render"
)

// Session is the UI state of one browser. Handlers receive it explicitly; nothing in
// the extract/render pipeline reads it.
type Session struct {
	ID string

	mu            sync.Mutex
	authenticated bool
	lastText      string
	document      *render.Document

	busy atomic.Bool
}

// Authenticated reports whether the password gate was passed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
	if !v {
		s.lastText = ""
		s.document = nil
	}
}

// TryBegin marks a generate as in flight. It returns false if one already is.
func (s *Session) TryBegin() bool {
	return s.busy.CompareAndSwap(false, true)
}

// End clears the in-flight mark.
func (s *Session) End() {
	s.busy.Store(false)
}

// Busy reports whether a generate is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// LastText is the most recently submitted text, kept for resubmission.
func (s *Session) LastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastText
}

func (s *Session) SetLastText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastText = text
}

// Document returns the last generated document, if any.
func (s *Session) Document() (render.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return render.Document{}, false
	}
	return *s.document, true
}

// SetDocument replaces the downloadable document; nil clears it.
func (s *Session) SetDocument(doc *render.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = doc
}

// SessionStore holds live sessions in memory, keyed by cookie value.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for id, or nil.
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// newTransientSession returns a session that is not stored. Visitors who have not
// logged in get one per request.
func newTransientSession() *Session {
	return &Session{ID: uuid.New().String()}
}

// New creates and stores a fresh unauthenticated session.
func (s *SessionStore) New() *Session {
	sess := &Session{ID: uuid.New().String()}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Delete drops a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
