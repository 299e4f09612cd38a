package testutil

import (
	"github.com/hupe1980/docchat/memory"
	"github.com/hupe1980/docchat/session"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("hi").Assistant("hello").Build()
type SessionBuilder struct {
	id    string
	turns []memory.Turn
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id}
}

// User appends a user turn (chainable).
func (b *SessionBuilder) User(content string) *SessionBuilder {
	b.turns = append(b.turns, memory.UserTurn(content))
	return b
}

// Assistant appends an assistant turn (chainable).
func (b *SessionBuilder) Assistant(content string) *SessionBuilder {
	b.turns = append(b.turns, memory.AssistantTurn(content))
	return b
}

// Exchange appends a user turn followed by the assistant reply (chainable).
func (b *SessionBuilder) Exchange(user, assistant string) *SessionBuilder {
	return b.User(user).Assistant(assistant)
}

// Build returns a *session.Session whose transcript holds the collected turns.
func (b *SessionBuilder) Build() *session.Session {
	s := session.New(b.id)
	s.Transcript.Append(b.turns...)
	return s
}

// Register builds the session and stores it under its id in store, replacing
// nothing: it fails if the id is taken.
func (b *SessionBuilder) Register(store *session.InMemoryStore) (*session.Session, error) {
	s, err := store.Create(b.id)
	if err != nil {
		return nil, err
	}
	s.Transcript.Append(b.turns...)
	return s, nil
}
