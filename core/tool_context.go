package core

import (
	"context"

	"github.com/hupe1980/docchat/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by an agent: the request context, the identifiers of the originating call
// and a logger already scoped to them.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context bound to a parent context, the
// session the turn belongs to and the unique functionCallID. A nil logger
// discards output.
func NewToolContext(ctx context.Context, sessionID, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		sessionID:      sessionID,
		functionCallID: functionCallID,
		logger:         logging.With(logging.OrNoOp(logger), "session_id", sessionID, "function_call_id", functionCallID),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the scoped logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// LogDebug logs at debug level with the call scope attached.
func (tc *ToolContext) LogDebug(msg string, args ...any) { tc.logger.Debug(msg, args...) }

// LogInfo logs at info level with the call scope attached.
func (tc *ToolContext) LogInfo(msg string, args ...any) { tc.logger.Info(msg, args...) }

// LogError logs at error level with the call scope attached.
func (tc *ToolContext) LogError(msg string, args ...any) { tc.logger.Error(msg, args...) }
