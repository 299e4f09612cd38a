// Package router decides whether a message is answered conversationally or
// through the database tools, and runs the turn against a session.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/docchat/agent"
	"github.com/hupe1980/docchat/logging"
	"github.com/hupe1980/docchat/memory"
	"github.com/hupe1980/docchat/session"
)

// ErrEmptyMessage is returned for blank user input.
var ErrEmptyMessage = errors.New("message must not be empty")

// DefaultApology is the reply used when a turn cannot be answered.
const DefaultApology = "Sorry, I ran into a problem while answering. Please try again in a moment."

// Recorder receives per-turn observations.
type Recorder interface {
	ObserveTurn(mode string, steps int, budgetExhausted, degraded bool, duration time.Duration)
}

// Options configures a Router.
type Options struct {
	Logger   logging.Logger
	Recorder Recorder
	// MaxHistory limits how many recent turns are sent to the model (0 = all).
	MaxHistory int
	// Apology is the reply text for degraded turns.
	Apology string
	// State is rendered into templated agent instructions.
	State map[string]any
}

// Reply is the outcome of one handled message.
type Reply struct {
	Text            string                 `json:"text"`
	Mode            Mode                   `json:"-"`
	ToolCalls       []agent.ToolCallRecord `json:"tool_calls,omitempty"`
	Steps           int                    `json:"steps"`
	BudgetExhausted bool                   `json:"budget_exhausted"`
	Degraded        bool                   `json:"degraded"`
}

// Router classifies each message and dispatches it to the matching responder.
type Router struct {
	classifier *Classifier
	plain      agent.Responder
	tooled     agent.Responder
	opts       Options
}

// New creates a Router.
func New(classifier *Classifier, plain, tooled agent.Responder, optFns ...func(o *Options)) *Router {
	opts := Options{Apology: DefaultApology}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Apology == "" {
		opts.Apology = DefaultApology
	}
	return &Router{classifier: classifier, plain: plain, tooled: tooled, opts: opts}
}

// Classify exposes the routing decision without handling the message.
func (r *Router) Classify(message string) Mode { return r.classifier.Classify(message) }

// Handle processes one user message within sess. Turns of the same session are
// serialised. The user turn and the assistant reply are appended to the
// transcript together, and only when a reply was produced; a failed turn
// leaves the transcript untouched and returns a degraded apology.
func (r *Router) Handle(ctx context.Context, sess *session.Session, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, ErrEmptyMessage
	}

	sess.Lock()
	defer sess.Unlock()

	start := time.Now()
	mode, trigger := r.classifier.Match(message)
	logger := logging.With(r.opts.Logger, "session_id", sess.ID)
	logger.Info("router.classified", "mode", mode.String(), "trigger", trigger)

	out, err := r.respond(ctx, mode, agent.Input{
		SessionID: sess.ID,
		History:   sess.Transcript.Recent(r.opts.MaxHistory),
		Message:   message,
		State:     r.opts.State,
	})

	reply := Reply{Mode: mode}
	if err != nil {
		logger.Error("router.turn_failed", "mode", mode.String(), "error", err.Error())
		reply.Text = r.opts.Apology
		reply.Degraded = true
	} else {
		reply.Text = out.Text
		reply.ToolCalls = out.ToolCalls
		reply.Steps = out.Steps
		reply.BudgetExhausted = out.BudgetExhausted
		sess.Transcript.Append(memory.UserTurn(message), memory.AssistantTurn(out.Text))
	}

	dur := time.Since(start)
	if r.opts.Recorder != nil {
		r.opts.Recorder.ObserveTurn(mode.String(), reply.Steps, reply.BudgetExhausted, reply.Degraded, dur)
	}
	logger.Info("router.turn_done", "mode", mode.String(), "steps", reply.Steps, "degraded", reply.Degraded, "duration_ms", dur.Milliseconds())
	return reply, nil
}

// respond invokes the responder for mode, converting panics into errors.
func (r *Router) respond(ctx context.Context, mode Mode, in agent.Input) (out agent.Output, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("responder panic: %v", p)
		}
	}()

	responder := r.plain
	if mode == ModeTooled {
		responder = r.tooled
	}
	if responder == nil {
		return agent.Output{}, fmt.Errorf("no responder for mode %s", mode)
	}
	return responder.Respond(ctx, in)
}
