package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docchat/core"
	"github.com/hupe1980/docchat/logging"
	"github.com/hupe1980/docchat/model"
	"github.com/hupe1980/docchat/tool"
)

// DefaultMaxSteps bounds the number of model rounds per turn.
const DefaultMaxSteps = 6

// LoopOptions configures a ToolLoop.
type LoopOptions struct {
	Instruction Instruction
	// MaxSteps is the maximum number of tool-enabled model calls per turn.
	MaxSteps int
	// FinalPrompt is appended as a user message when the budget is exhausted.
	FinalPrompt string
	// Acknowledgement is returned when the final tools-free call fails.
	Acknowledgement string
	Logger          logging.Logger
}

// ToolLoop coordinates repeated model calls and tool executions until the
// model answers without requesting tools or the step budget is exhausted.
type ToolLoop struct {
	model model.Model
	tools *tool.Set
	defs  []model.ToolDefinition
	opts  LoopOptions
}

var _ Responder = (*ToolLoop)(nil)

// NewToolLoop creates the tool-using responder.
func NewToolLoop(m model.Model, tools *tool.Set, optFns ...func(o *LoopOptions)) *ToolLoop {
	opts := LoopOptions{
		Instruction:     NewInstructionFromText(DefaultDatabaseInstruction),
		MaxSteps:        DefaultMaxSteps,
		FinalPrompt:     DefaultFinalPrompt,
		Acknowledgement: DefaultAcknowledgement,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if tools == nil {
		tools, _ = tool.NewSet(nil)
	}

	return &ToolLoop{model: m, tools: tools, defs: tools.Definitions(), opts: opts}
}

// MaxSteps returns the configured step budget.
func (l *ToolLoop) MaxSteps() int { return l.opts.MaxSteps }

// Respond runs the bounded agent loop. Tool failures never abort the loop;
// only model failures are returned as errors.
func (l *ToolLoop) Respond(ctx context.Context, in Input) (Output, error) {
	instructions, err := l.opts.Instruction.Resolve(ctx, in.State)
	if err != nil {
		return Output{}, fmt.Errorf("resolve instruction: %w", err)
	}

	logger := logging.With(l.opts.Logger, "session_id", in.SessionID)
	contents := historyContents(in.History, in.Message)
	var out Output

	for step := 1; step <= l.opts.MaxSteps; step++ {
		resp, err := model.Collect(ctx, l.model, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        l.defs,
		})
		if err != nil {
			logger.Error("agent.loop.model_error", "step", step, "error", err.Error())
			return Output{}, fmt.Errorf("step %d: %w", step, err)
		}
		out.Steps = step

		content, calls := withCallIDs(resp.Content, step)
		if len(calls) == 0 {
			out.Text = strings.TrimSpace(content.Text())
			if out.Text == "" {
				out.Text = l.opts.Acknowledgement
			}
			logger.Debug("agent.loop.done", "steps", step, "tool_calls", len(out.ToolCalls))
			return out, nil
		}

		contents = append(contents, content)
		for _, call := range calls {
			rec := l.execute(ctx, in.SessionID, step, call)
			out.ToolCalls = append(out.ToolCalls, rec)
			contents = append(contents, core.NewFunctionResponseContent(core.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: rec.Result,
				IsError:  rec.IsError,
			}))
		}
	}

	out.BudgetExhausted = true
	logger.Warn("agent.loop.budget_exhausted", "max_steps", l.opts.MaxSteps, "tool_calls", len(out.ToolCalls))
	out.Text = l.finalAnswer(ctx, logger, instructions, contents)
	return out, nil
}

func (l *ToolLoop) execute(ctx context.Context, sessionID string, step int, call core.FunctionCall) ToolCallRecord {
	toolCtx := core.NewToolContext(ctx, sessionID, call.ID, l.opts.Logger)

	start := time.Now()
	res := l.tools.Invoke(toolCtx, call)
	dur := time.Since(start)

	toolCtx.LogInfo("agent.tool.executed", "tool", call.Name, "step", step, "duration_ms", dur.Milliseconds(), "error", res.IsErr())

	return ToolCallRecord{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
		Result:    res.String(),
		IsError:   res.IsErr(),
		Step:      step,
		Duration:  dur,
	}
}

// finalAnswer makes one tools-free call asking for an answer from the
// gathered results, falling back to the fixed acknowledgement.
func (l *ToolLoop) finalAnswer(ctx context.Context, logger logging.Logger, instructions string, contents []core.Content) string {
	contents = append(contents, core.NewTextContent(core.RoleUser, l.opts.FinalPrompt))

	resp, err := model.Collect(ctx, l.model, model.Request{Instructions: instructions, Contents: contents})
	if err != nil {
		logger.Error("agent.loop.final_answer_error", "error", err.Error())
		return l.opts.Acknowledgement
	}
	text := strings.TrimSpace(resp.Content.Text())
	if text == "" {
		return l.opts.Acknowledgement
	}
	return text
}

// withCallIDs assigns ids to function calls the provider left unnamed so tool
// responses can always be correlated.
func withCallIDs(content core.Content, step int) (core.Content, []core.FunctionCall) {
	parts := make([]core.Part, len(content.Parts))
	var calls []core.FunctionCall
	for i, p := range content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			if fc.FunctionCall.ID == "" {
				fc.FunctionCall.ID = fmt.Sprintf("call_%d_%d", step, len(calls)+1)
			}
			calls = append(calls, fc.FunctionCall)
			p = fc
		}
		parts[i] = p
	}
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}
	return core.Content{Role: content.Role, Parts: parts}, calls
}
