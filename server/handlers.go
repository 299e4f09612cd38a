package server

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/hupe1980/docchat/agent"
	"github.com/hupe1980/docchat/router"
	"github.com/hupe1980/docchat/session"
	"github.com/hupe1980/docchat/store"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response        string                 `json:"response"`
	Mode            string                 `json:"mode"`
	SessionID       string                 `json:"session_id"`
	Steps           int                    `json:"steps,omitempty"`
	ToolCalls       []agent.ToolCallRecord `json:"tool_calls,omitempty"`
	BudgetExhausted bool                   `json:"budget_exhausted,omitempty"`
	Degraded        bool                   `json:"degraded,omitempty"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) chat(ctx context.Context, c *app.RequestContext) {
	var req chatRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, consts.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(c, consts.StatusBadRequest, router.ErrEmptyMessage.Error())
		return
	}

	sess, err := s.sessions.GetOrCreate(sessionID(c, req.SessionID))
	if err != nil {
		writeError(c, consts.StatusInternalServerError, err.Error())
		return
	}

	reply, err := s.router.Handle(ctx, sess, req.Message)
	if err != nil {
		if errors.Is(err, router.ErrEmptyMessage) {
			writeError(c, consts.StatusBadRequest, err.Error())
			return
		}
		s.opts.Logger.Error("server.chat_failed", "session_id", sess.ID, "error", err.Error())
		writeError(c, consts.StatusInternalServerError, "failed to process message")
		return
	}

	c.JSON(consts.StatusOK, chatResponse{
		Response:        reply.Text,
		Mode:            reply.Mode.String(),
		SessionID:       sess.ID,
		Steps:           reply.Steps,
		ToolCalls:       reply.ToolCalls,
		BudgetExhausted: reply.BudgetExhausted,
		Degraded:        reply.Degraded,
	})
}

func (s *Server) history(_ context.Context, c *app.RequestContext) {
	id := sessionID(c, c.Query("session_id"))
	entries := []historyEntry{}
	if sess, err := s.sessions.Get(id); err == nil {
		for _, turn := range sess.Transcript.ReadAll() {
			entries = append(entries, historyEntry{Role: string(turn.Role), Content: turn.Content})
		}
	}
	c.JSON(consts.StatusOK, utils.H{"session_id": id, "history": entries})
}

func (s *Server) clearHistory(_ context.Context, c *app.RequestContext) {
	id := sessionID(c, c.Query("session_id"))
	if sess, err := s.sessions.Get(id); err == nil {
		sess.Transcript.Clear()
	}
	c.JSON(consts.StatusOK, utils.H{"session_id": id, "status": "cleared"})
}

func (s *Server) listSessions(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"sessions": s.sessions.List()})
}

func (s *Server) createSession(_ context.Context, c *app.RequestContext) {
	sess, err := s.sessions.Create("")
	if err != nil {
		writeError(c, consts.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(consts.StatusCreated, utils.H{"session_id": sess.ID})
}

func (s *Server) deleteSession(_ context.Context, c *app.RequestContext) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(c, consts.StatusNotFound, err.Error())
			return
		}
		writeError(c, consts.StatusInternalServerError, err.Error())
		return
	}
	c.Status(consts.StatusNoContent)
}

func (s *Server) collections(ctx context.Context, c *app.RequestContext) {
	names, err := s.reader.ListCollections(ctx)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"collections": names})
}

func (s *Server) collection(ctx context.Context, c *app.RequestContext) {
	limit, err := queryInt(c, "limit", s.opts.DefaultLimit)
	if err != nil {
		writeError(c, consts.StatusBadRequest, err.Error())
		return
	}
	skip, err := queryInt(c, "skip", s.opts.DefaultSkip)
	if err != nil {
		writeError(c, consts.StatusBadRequest, err.Error())
		return
	}

	records, err := s.reader.Query(ctx, c.Param("name"), nil, limit, skip)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"data": records})
}

func (s *Server) document(ctx context.Context, c *app.RequestContext) {
	rec, found, err := s.reader.GetByID(ctx, c.Param("name"), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	if !found {
		writeError(c, consts.StatusNotFound, "document not found")
		return
	}
	c.JSON(consts.StatusOK, utils.H{"data": rec})
}

func (s *Server) health(ctx context.Context, c *app.RequestContext) {
	if p, ok := s.reader.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			c.JSON(consts.StatusServiceUnavailable, utils.H{"status": "degraded", "store": "unavailable"})
			return
		}
	}
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

func (s *Server) metrics(_ context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := s.opts.Metrics.WritePrometheus(&buf); err != nil {
		writeError(c, consts.StatusInternalServerError, err.Error())
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// storeError maps gateway failures to HTTP statuses.
func (s *Server) storeError(c *app.RequestContext, err error) {
	status := statusFor(err)
	if status == consts.StatusInternalServerError {
		s.opts.Logger.Error("server.store_error", "path", string(c.Path()), "error", err.Error())
	}
	writeError(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrStoreUnavailable):
		return consts.StatusServiceUnavailable
	case errors.Is(err, store.ErrCollectionNotFound):
		return consts.StatusNotFound
	case errors.Is(err, store.ErrInvalidFilter),
		errors.Is(err, store.ErrInvalidIdentifier),
		errors.Is(err, store.ErrNoTextIndex):
		return consts.StatusBadRequest
	default:
		return consts.StatusInternalServerError
	}
}

// sessionID picks the explicit id, then the header, then the default session.
func sessionID(c *app.RequestContext, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	if id := strings.TrimSpace(string(c.GetHeader(SessionHeader))); id != "" {
		return id
	}
	return session.DefaultID
}

func queryInt(c *app.RequestContext, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func writeError(c *app.RequestContext, status int, msg string) {
	c.JSON(status, utils.H{"error": msg})
}
