package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docchat/logging"
	"github.com/hupe1980/docchat/model"
)

// ChatOptions configures a Chat responder.
type ChatOptions struct {
	Instruction Instruction
	Logger      logging.Logger
}

// Chat answers without tools.
type Chat struct {
	model model.Model
	opts  ChatOptions
}

var _ Responder = (*Chat)(nil)

// NewChat creates the plain conversational responder.
func NewChat(m model.Model, optFns ...func(o *ChatOptions)) *Chat {
	opts := ChatOptions{
		Instruction: NewInstructionFromText(DefaultChatInstruction),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Chat{model: m, opts: opts}
}

// Respond sends the history and message to the model and returns its text.
func (c *Chat) Respond(ctx context.Context, in Input) (Output, error) {
	instructions, err := c.opts.Instruction.Resolve(ctx, in.State)
	if err != nil {
		return Output{}, fmt.Errorf("resolve instruction: %w", err)
	}

	start := time.Now()
	resp, err := model.Collect(ctx, c.model, model.Request{
		Instructions: instructions,
		Contents:     historyContents(in.History, in.Message),
	})
	if err != nil {
		c.opts.Logger.Error("agent.chat.model_error", "session_id", in.SessionID, "error", err.Error())
		return Output{}, err
	}

	text := strings.TrimSpace(resp.Content.Text())
	if text == "" {
		return Output{}, ErrEmptyResponse
	}
	c.opts.Logger.Debug("agent.chat.done", "session_id", in.SessionID, "duration_ms", time.Since(start).Milliseconds())
	return Output{Text: text, Steps: 1}, nil
}
