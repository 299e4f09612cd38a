package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docchat/agent"
	"github.com/hupe1980/docchat/core"
	"github.com/hupe1980/docchat/internal/testutil"
	"github.com/hupe1980/docchat/metrics"
	"github.com/hupe1980/docchat/model"
	"github.com/hupe1980/docchat/router"
	"github.com/hupe1980/docchat/session"
	"github.com/hupe1980/docchat/store"
	"github.com/hupe1980/docchat/tool"
	"github.com/hupe1980/docchat/tool/docstore"
)

type testEnv struct {
	srv      *Server
	model    *model.MockModel
	reader   *testutil.FakeReader
	sessions *session.InMemoryStore
}

func newTestEnv(t *testing.T, optFns ...func(o *Options)) *testEnv {
	t.Helper()
	reader := &testutil.FakeReader{Collections: []string{"orders", "users"}}
	m := model.NewMockModel("mock", "mock")

	set, err := tool.NewSet(docstore.New(reader))
	require.NoError(t, err)
	classifier, err := router.NewClassifier(router.DefaultRules())
	require.NoError(t, err)
	r := router.New(classifier, agent.NewChat(m), agent.NewToolLoop(m, set), func(o *router.Options) {
		o.State = map[string]any{"database": "shop"}
	})

	sessions := session.NewInMemoryStore()
	return &testEnv{
		srv:      New(r, sessions, reader, optFns...),
		model:    m,
		reader:   reader,
		sessions: sessions,
	}
}

func (e *testEnv) do(method, url, body string, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(e.srv.Hertz().Engine, method, url,
		&ut.Body{Body: strings.NewReader(body), Len: len(body)}, headers...)
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out), string(w.Result().Body()))
	return out
}

func TestChat_Plain(t *testing.T) {
	env := newTestEnv(t)
	env.model.ScriptText("Hello! How can I help?")

	w := env.do("POST", "/chat", `{"message":"hi there"}`)
	require.Equal(t, 200, w.Result().StatusCode())

	body := decode(t, w)
	assert.Equal(t, "Hello! How can I help?", body["response"])
	assert.Equal(t, "plain", body["mode"])
	assert.Equal(t, session.DefaultID, body["session_id"])

	sess, err := env.sessions.Get(session.DefaultID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Transcript.Len())
}

func TestChat_Tooled(t *testing.T) {
	env := newTestEnv(t)
	env.model.
		ScriptToolCalls(core.FunctionCall{ID: "c1", Name: docstore.ListCollectionsName, Arguments: "{}"}).
		ScriptText("There are two collections: orders and users.")

	w := env.do("POST", "/chat", `{"message":"Which collections are in the database?","session_id":"abc"}`)
	require.Equal(t, 200, w.Result().StatusCode())

	body := decode(t, w)
	assert.Equal(t, "tooled", body["mode"])
	assert.Equal(t, "abc", body["session_id"])
	assert.Equal(t, "There are two collections: orders and users.", body["response"])
	calls, ok := body["tool_calls"].([]any)
	require.True(t, ok)
	assert.Len(t, calls, 1)
}

func TestChat_SessionHeader(t *testing.T) {
	env := newTestEnv(t)
	env.model.ScriptText("ok")

	w := env.do("POST", "/chat", `{"message":"hello"}`, ut.Header{Key: SessionHeader, Value: "from-header"})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "from-header", decode(t, w)["session_id"])
}

func TestChat_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{``, `{"message":""}`, `{"message":"   "}`, `not json`} {
		w := env.do("POST", "/chat", body)
		assert.Equal(t, 400, w.Result().StatusCode(), body)
	}
	assert.Equal(t, 0, env.model.Calls())
}

func TestChat_ModelFailureIsDegraded(t *testing.T) {
	env := newTestEnv(t)
	env.model.ScriptError(errors.New("provider down"))

	w := env.do("POST", "/chat", `{"message":"hello"}`)
	require.Equal(t, 200, w.Result().StatusCode())

	body := decode(t, w)
	assert.Equal(t, true, body["degraded"])
	assert.Equal(t, router.DefaultApology, body["response"])
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	env.model.ScriptText("first answer")

	w := env.do("GET", "/history?session_id=s1", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Empty(t, decode(t, w)["history"])

	env.do("POST", "/chat", `{"message":"hello","session_id":"s1"}`)

	w = env.do("GET", "/history?session_id=s1", "")
	history, ok := decode(t, w)["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 2)
	assert.Equal(t, map[string]any{"role": "user", "content": "hello"}, history[0])
	assert.Equal(t, map[string]any{"role": "assistant", "content": "first answer"}, history[1])

	w = env.do("DELETE", "/history", "", ut.Header{Key: SessionHeader, Value: "s1"})
	require.Equal(t, 200, w.Result().StatusCode())

	w = env.do("GET", "/history?session_id=s1", "")
	assert.Empty(t, decode(t, w)["history"])
}

func TestHistory_Prepopulated(t *testing.T) {
	env := newTestEnv(t)
	_, err := testutil.NewSessionBuilder("s2").Exchange("hi", "hello").Register(env.sessions)
	require.NoError(t, err)
	env.model.ScriptText("still here")

	w := env.do("POST", "/chat", `{"message":"are you there?","session_id":"s2"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	require.Len(t, env.model.Requests()[0].Contents, 3, "prior turns are sent to the model")

	w = env.do("GET", "/history", "", ut.Header{Key: SessionHeader, Value: "s2"})
	history, ok := decode(t, w)["history"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 4)
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/sessions", "")
	require.Equal(t, 201, w.Result().StatusCode())
	id, _ := decode(t, w)["session_id"].(string)
	require.NotEmpty(t, id)

	w = env.do("GET", "/sessions", "")
	assert.Equal(t, []any{id}, decode(t, w)["sessions"])

	w = env.do("DELETE", "/sessions/"+id, "")
	assert.Equal(t, 204, w.Result().StatusCode())

	w = env.do("DELETE", "/sessions/"+id, "")
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestCollections(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/collections", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, []any{"orders", "users"}, decode(t, w)["collections"])
}

func TestCollection(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.DefaultLimit = 7 })
	env.reader.Records = []store.Record{{"_id": "64b7f0c2a1b2c3d4e5f60718", "name": "Ada"}}

	w := env.do("GET", "/collection/users", "")
	require.Equal(t, 200, w.Result().StatusCode())
	data, ok := decode(t, w)["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 1)
	assert.Equal(t, 7, env.reader.LastLimit)
	assert.Equal(t, 0, env.reader.LastSkip)

	w = env.do("GET", "/collection/users?limit=2&skip=4", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, 2, env.reader.LastLimit)
	assert.Equal(t, 4, env.reader.LastSkip)

	w = env.do("GET", "/collection/users?limit=-1", "")
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestDocument(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/collection/users/64b7f0c2a1b2c3d4e5f60718", "")
	assert.Equal(t, 404, w.Result().StatusCode())

	env.reader.Doc = store.Record{"name": "Ada"}
	w = env.do("GET", "/collection/users/64b7f0c2a1b2c3d4e5f60718", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, map[string]any{"name": "Ada"}, decode(t, w)["data"])
}

func TestStoreErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&store.Error{Op: "query", Collection: "x", Kind: store.ErrStoreUnavailable, Err: errors.New("timeout")}, 503},
		{&store.Error{Op: "query", Collection: "x", Kind: store.ErrCollectionNotFound}, 404},
		{&store.Error{Op: "query", Collection: "x", Kind: store.ErrInvalidFilter}, 400},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		env.reader.Err = tt.err

		w := env.do("GET", "/collection/x", "")
		assert.Equal(t, tt.want, w.Result().StatusCode(), tt.err.Error())
		assert.NotEmpty(t, decode(t, w)["error"])
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/health", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "ok", decode(t, w)["status"])

	env.reader.PingErr = errors.New("no servers")
	w = env.do("GET", "/health", "")
	assert.Equal(t, 503, w.Result().StatusCode())
}

func TestCORS(t *testing.T) {
	origin := ut.Header{Key: "Origin", Value: "http://localhost:3000"}
	preflight := ut.Header{Key: "Access-Control-Request-Method", Value: "POST"}

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do("GET", "/health", "", origin)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("any origin", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.CORSOrigins = []string{"*"} })

		w := env.do("OPTIONS", "/chat", "", origin, preflight)
		assert.Equal(t, 204, w.Result().StatusCode())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Zero(t, env.model.Calls(), "preflight never reaches the chat handler")

		w = env.do("GET", "/health", "", origin)
		assert.Equal(t, 200, w.Result().StatusCode())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origins", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.CORSOrigins = []string{"http://localhost:3000"} })

		w := env.do("OPTIONS", "/chat", "", origin, preflight)
		assert.Equal(t, 204, w.Result().StatusCode())
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

		w = env.do("OPTIONS", "/chat", "", ut.Header{Key: "Origin", Value: "http://evil.example"}, preflight)
		assert.Equal(t, 403, w.Result().StatusCode())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, 404, env.do("GET", "/metrics", "").Result().StatusCode())

	m := metrics.New()
	m.ObserveToolCall("list_collections", time.Millisecond, false)
	env = newTestEnv(t, func(o *Options) { o.Metrics = m })

	w := env.do("GET", "/metrics", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Header.ContentType()), "text/plain")
	assert.True(t, bytes.Contains(w.Result().Body(), []byte(`docchat_tool_calls_total{tool="list_collections"} 1`)))
}
