package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hupe1980/docchat/core"
)

func userRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, text)}}
}

func TestMockModel_Fallbacks(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hello", "hi there")

	resp, err := Collect(context.Background(), m, userRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content.Text())

	resp, err = Collect(context.Background(), m, userRequest("other"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())

	_, err = Collect(context.Background(), m, Request{})
	assert.Error(t, err)
	assert.Equal(t, 3, m.Calls())
}

func TestMockModel_Script(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockModel("mock", "mock").
		ScriptToolCalls(core.FunctionCall{ID: "c1", Name: "list_collections", Arguments: "{}"}).
		ScriptError(boom).
		ScriptText("done")

	resp, err := Collect(context.Background(), m, userRequest("q"))
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "list_collections", calls[0].Name)
	assert.Equal(t, "tool_calls", resp.FinishReason)

	_, err = Collect(context.Background(), m, userRequest("q"))
	assert.ErrorIs(t, err, boom)

	resp, err = Collect(context.Background(), m, userRequest("q"))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content.Text())

	require.Len(t, m.Requests(), 3)
	assert.Equal(t, Info{Name: "mock", Provider: "mock", SupportsTools: true}, m.Info())
}

func TestMockModel_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, NewMockModel("m", "mock").ScriptText("x"), userRequest("q"))
	assert.ErrorIs(t, err, context.Canceled)
}

type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error)
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (silentModel) Info() Info { return Info{Name: "silent"} }

func TestCollect_NoResponse(t *testing.T) {
	_, err := Collect(context.Background(), silentModel{}, Request{})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestNewFunctionDefinition(t *testing.T) {
	def := NewFunctionDefinition("get_document", "Fetch one", map[string]any{"type": "object"})
	assert.Equal(t, "function", def.Type)
	assert.Equal(t, "get_document", def.Function.Name)
}

func TestWithRateLimit(t *testing.T) {
	assert.Nil(t, NewLimiter(0))

	base := NewMockModel("m", "mock")
	assert.Same(t, base, WithRateLimit(base, nil))

	limited := WithRateLimit(base, NewLimiter(1000))
	assert.Equal(t, base.Info(), limited.Info())
	_, err := Collect(context.Background(), limited, userRequest("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, base.Calls())
}

func TestWithRateLimit_WaitFails(t *testing.T) {
	base := NewMockModel("m", "mock")
	// One token every hour with the burst already spent.
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Collect(ctx, WithRateLimit(base, limiter), userRequest("a"))
	assert.Error(t, err)
	assert.Equal(t, 0, base.Calls())
}
