package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docchat/core"
	"github.com/hupe1980/docchat/logging"
	"github.com/hupe1980/docchat/model"
)

// Observer receives one notification per completed invocation.
type Observer interface {
	ObserveToolCall(name string, duration time.Duration, failed bool)
}

// SetOptions configures a Set.
type SetOptions struct {
	Logger   logging.Logger
	Observer Observer
}

// Set is an ordered registry of tools with a total invocation entry point.
// It is immutable after construction and safe for concurrent use.
type Set struct {
	tools  []Tool
	byName map[string]Tool
	opts   SetOptions
}

// NewSet builds a Set. Tool names must be unique and non-empty.
func NewSet(tools []Tool, optFns ...func(o *SetOptions)) (*Set, error) {
	opts := SetOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Set{tools: make([]Tool, 0, len(tools)), byName: make(map[string]Tool, len(tools)), opts: opts}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool: empty tool name")
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("tool: duplicate tool name %q", name)
		}
		s.byName[name] = t
		s.tools = append(s.tools, t)
	}
	return s, nil
}

// Tools returns the registered tools in registration order.
func (s *Set) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Names returns the registered tool names in registration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Name()
	}
	return names
}

// Definitions returns the model-facing declarations of the tools, in order.
func (s *Set) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, model.NewFunctionDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}

// Lookup returns the tool registered under name.
func (s *Set) Lookup(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Invoke executes call and always yields a Result. Unknown tools, malformed
// argument JSON, tool errors and panics are all reported as Err results.
func (s *Set) Invoke(toolCtx *core.ToolContext, call core.FunctionCall) (res Result) {
	logger := toolCtx.Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool.call.panic", "tool", call.Name, "panic", fmt.Sprint(r))
			res = Err(fmt.Sprintf("tool %s failed unexpectedly", call.Name))
		}
		if s.opts.Observer != nil {
			s.opts.Observer.ObserveToolCall(call.Name, time.Since(start), res.IsErr())
		}
	}()

	t, ok := s.byName[call.Name]
	if !ok {
		logger.Warn("tool.call.unknown", "tool", call.Name)
		return Err(fmt.Sprintf("unknown tool %q, available tools: %s", call.Name, strings.Join(s.Names(), ", ")))
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		logger.Warn("tool.call.bad_arguments", "tool", call.Name, "error", err.Error())
		return Err(fmt.Sprintf("arguments for %s are not a valid JSON object", call.Name))
	}

	value, err := t.Call(toolCtx, args)
	if err != nil {
		return Err(errorText(err))
	}
	return render(value)
}

func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func errorText(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Message
	}
	return err.Error()
}

func render(value any) Result {
	switch v := value.(type) {
	case Result:
		return v
	case string:
		return Ok(v)
	case []byte:
		return Ok(string(v))
	case nil:
		return Ok("null")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return Err(fmt.Sprintf("result could not be encoded: %v", err))
	}
	return Ok(string(b))
}
