package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/docchat/memory"
)

// DefaultID is used when a caller does not name a session.
const DefaultID = "default"

var (
	// ErrNotFound is returned when a session id is unknown.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned when creating a session whose id is taken.
	ErrAlreadyExists = errors.New("session already exists")
)

// Session is a single conversation.
type Session struct {
	ID         string
	Created    time.Time
	Transcript *memory.Transcript

	turnMu sync.Mutex
}

// New returns a session with an empty transcript. An empty id is replaced by
// a random UUID.
func New(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, Created: time.Now().UTC(), Transcript: memory.NewTranscript()}
}

// Lock acquires the turn lock. Only one turn per session is processed at a time.
func (s *Session) Lock() { s.turnMu.Lock() }

// Unlock releases the turn lock.
func (s *Session) Unlock() { s.turnMu.Unlock() }

// Store manages sessions by id.
type Store interface {
	// Get returns the session or ErrNotFound.
	Get(id string) (*Session, error)
	// GetOrCreate returns the session, creating it on first use.
	GetOrCreate(id string) (*Session, error)
	// Create registers a new session. An empty id yields a generated one.
	Create(id string) (*Session, error)
	// Delete removes the session or returns ErrNotFound.
	Delete(id string) error
	// List returns the known session ids.
	List() []string
}
