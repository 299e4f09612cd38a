package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/docchat/core"
	"github.com/hupe1980/docchat/memory"
)

// ErrEmptyResponse is returned when the model replies without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Input is everything a Responder needs for one turn.
type Input struct {
	SessionID string
	History   []memory.Turn
	Message   string
	// State is rendered into templated instructions.
	State map[string]any
}

// ToolCallRecord describes one executed tool call.
type ToolCallRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Result    string        `json:"result"`
	IsError   bool          `json:"is_error"`
	Step      int           `json:"step"`
	Duration  time.Duration `json:"duration"`
}

// Output is the result of one turn.
type Output struct {
	Text            string
	ToolCalls       []ToolCallRecord
	Steps           int
	BudgetExhausted bool
}

// Responder produces the assistant reply for a turn.
type Responder interface {
	Respond(ctx context.Context, in Input) (Output, error)
}

// historyContents converts transcript turns followed by the new message into
// model contents.
func historyContents(history []memory.Turn, message string) []core.Content {
	contents := make([]core.Content, 0, len(history)+1)
	for _, t := range history {
		role := core.RoleUser
		if t.Role == memory.RoleAssistant {
			role = core.RoleAssistant
		}
		contents = append(contents, core.NewTextContent(role, t.Content))
	}
	return append(contents, core.NewTextContent(core.RoleUser, message))
}
