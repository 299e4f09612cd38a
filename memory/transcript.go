package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Turn is a single message in a transcript. Turns are values; once appended
// they are never modified.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn stamps a turn with a fresh id and the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{ID: uuid.NewString(), Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// UserTurn is shorthand for NewTurn(RoleUser, content).
func UserTurn(content string) Turn { return NewTurn(RoleUser, content) }

// AssistantTurn is shorthand for NewTurn(RoleAssistant, content).
func AssistantTurn(content string) Turn { return NewTurn(RoleAssistant, content) }

// Transcript is an ordered list of turns. Consecutive turns with the same role
// are allowed.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// Append adds turns in order. Turns missing an id or timestamp are stamped.
func (t *Transcript) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	now := time.Now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		t.turns = append(t.turns, turn)
	}
}

// ReadAll returns a snapshot of every turn in order.
func (t *Transcript) ReadAll() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Recent returns a snapshot of the last n turns (all turns when n <= 0).
func (t *Transcript) Recent(n int) []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := 0
	if n > 0 && len(t.turns) > n {
		start = len(t.turns) - n
	}
	out := make([]Turn, len(t.turns)-start)
	copy(out, t.turns[start:])
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Clear removes every turn.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
}
