// Package docchat provides a high-level façade that assembles the assistant
// from a config.Config: the document store gateway, the model provider, the
// tool set, both responders and the router. Most applications interact with
// this package by:
//  1. Loading a config via config.Load
//  2. Creating an Assistant via New (optionally overriding the model or reader)
//  3. Sending messages with Ask, or serving the Assistant over HTTP
package docchat

import (
	"context"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/docchat/agent"
	"github.com/hupe1980/docchat/config"
	"github.com/hupe1980/docchat/logging"
	"github.com/hupe1980/docchat/metrics"
	"github.com/hupe1980/docchat/model"
	"github.com/hupe1980/docchat/model/anthropic"
	"github.com/hupe1980/docchat/model/openai"
	"github.com/hupe1980/docchat/router"
	"github.com/hupe1980/docchat/session"
	"github.com/hupe1980/docchat/store"
	"github.com/hupe1980/docchat/tool"
	"github.com/hupe1980/docchat/tool/docstore"
)

// Options overrides components New would otherwise build from the config.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// Reader replaces the MongoDB gateway.
	Reader store.Reader
	// Sessions defaults to an in-memory store.
	Sessions session.Store
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics
	// Logger defaults to one built from cfg.Log.
	Logger logging.Logger
}

// Assistant aggregates the assembled components.
type Assistant struct {
	cfg      *config.Config
	logger   logging.Logger
	gateway  *store.Gateway
	reader   store.Reader
	sessions session.Store
	metrics  *metrics.Metrics
	router   *router.Router
}

// New assembles an Assistant. Unless a Reader is supplied it opens a gateway
// to cfg.Store; the driver connects lazily so no server round-trip happens here.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Assistant, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &Assistant{cfg: cfg, logger: opts.Logger, reader: opts.Reader, sessions: opts.Sessions, metrics: opts.Metrics}
	if a.logger == nil {
		logger, _, err := NewLogger(cfg)
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}
	if a.sessions == nil {
		a.sessions = session.NewInMemoryStore()
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = NewModel(cfg); err != nil {
			return nil, err
		}
	}

	if a.reader == nil {
		gw, err := OpenGateway(ctx, cfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.gateway, a.reader = gw, gw
	}

	r, err := NewRouter(cfg, m, a.reader, a.metrics, a.logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.router = r
	return a, nil
}

// Ask handles message within the named session, creating it on first use.
func (a *Assistant) Ask(ctx context.Context, sessionID, message string) (router.Reply, error) {
	sess, err := a.sessions.GetOrCreate(sessionID)
	if err != nil {
		return router.Reply{}, err
	}
	return a.router.Handle(ctx, sess, message)
}

// Config returns the configuration the Assistant was built from.
func (a *Assistant) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *Assistant) Logger() logging.Logger { return a.logger }

// Router returns the message router.
func (a *Assistant) Router() *router.Router { return a.router }

// Sessions returns the session store.
func (a *Assistant) Sessions() session.Store { return a.sessions }

// Reader returns the document store reader.
func (a *Assistant) Reader() store.Reader { return a.reader }

// Metrics returns the metrics registry.
func (a *Assistant) Metrics() *metrics.Metrics { return a.metrics }

// Close disconnects the gateway if New opened one.
func (a *Assistant) Close(ctx context.Context) error {
	if a.gateway == nil {
		return nil
	}
	return a.gateway.Close(ctx)
}

// NewLogger builds the application logger from cfg.Log.
func NewLogger(cfg *config.Config) (logging.Logger, logging.LogLevel, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, level, err
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "docchat",
	}), level, nil
}

// OpenGateway creates a gateway for cfg.Store.
func OpenGateway(ctx context.Context, cfg *config.Config, logger logging.Logger) (*store.Gateway, error) {
	return store.NewGateway(ctx, cfg.Store.URI, cfg.Store.Database, func(o *store.Options) {
		o.Timeout = cfg.Store.Timeout
		o.StringIDs = cfg.Store.StringIDs
		o.Logger = logger
	})
}

// NewModel selects the provider adapter and applies the request throttle.
func NewModel(cfg *config.Config) (model.Model, error) {
	var m model.Model
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.LLM.Model != "" {
				o.Model = cfg.LLM.Model
			}
			if cfg.LLM.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.LLM.MaxTokens
			}
			o.Temperature = cfg.LLM.Temperature
			o.BaseURL = cfg.LLM.BaseURL
			o.APIKey = cfg.LLM.APIKey
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.LLM.Model != "" {
				o.Model = anthropicsdk.Model(cfg.LLM.Model)
			}
			if cfg.LLM.MaxTokens > 0 {
				o.MaxTokens = cfg.LLM.MaxTokens
			}
			o.Temperature = cfg.LLM.Temperature
			o.BaseURL = cfg.LLM.BaseURL
			o.APIKey = cfg.LLM.APIKey
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	return model.WithRateLimit(m, model.NewLimiter(cfg.LLM.RequestsPerSecond)), nil
}

// NewRouter assembles the classifier, both responders and the tool set. mx
// may be nil.
func NewRouter(cfg *config.Config, m model.Model, reader store.Reader, mx *metrics.Metrics, logger logging.Logger) (*router.Router, error) {
	classifier, err := router.NewClassifier(router.Rules{Terms: cfg.Router.Terms, Patterns: cfg.Router.Patterns})
	if err != nil {
		return nil, err
	}

	tools, err := tool.NewSet(docstore.New(reader, func(o *docstore.Options) {
		o.DefaultLimit = cfg.Tools.DefaultLimit
		o.DefaultSkip = cfg.Tools.DefaultSkip
	}), func(o *tool.SetOptions) {
		o.Logger = logger
		if mx != nil {
			o.Observer = mx
		}
	})
	if err != nil {
		return nil, err
	}

	chat := agent.NewChat(m, func(o *agent.ChatOptions) {
		o.Logger = logger
	})
	loop := agent.NewToolLoop(m, tools, func(o *agent.LoopOptions) {
		o.MaxSteps = cfg.Agent.MaxSteps
		o.Logger = logger
	})

	return router.New(classifier, chat, loop, func(o *router.Options) {
		o.Logger = logger
		if mx != nil {
			o.Recorder = mx
		}
		o.MaxHistory = cfg.Agent.MaxHistory
		o.State = map[string]any{"database": cfg.Store.Database}
	}), nil
}
