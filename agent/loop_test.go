package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docchat/core"
	"github.com/hupe1980/docchat/model"
)

var shopState = map[string]any{"database": "shop"}

func TestToolLoop_NoToolCalls(t *testing.T) {
	m := model.NewMockModel("m", "mock").ScriptText("There are no tools needed.")
	loop := NewToolLoop(m, testTools(t))

	out, err := loop.Respond(context.Background(), Input{Message: "hi", State: shopState})
	require.NoError(t, err)
	assert.Equal(t, "There are no tools needed.", out.Text)
	assert.Equal(t, 1, out.Steps)
	assert.Empty(t, out.ToolCalls)
	assert.False(t, out.BudgetExhausted)

	req := m.Requests()[0]
	assert.Contains(t, req.Instructions, `"shop"`)
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "list_collections", req.Tools[0].Function.Name)
}

func TestToolLoop_ExecutesCallsInOrder(t *testing.T) {
	m := model.NewMockModel("m", "mock").
		ScriptToolCalls(
			core.FunctionCall{ID: "a", Name: "list_collections", Arguments: "{}"},
			core.FunctionCall{ID: "b", Name: "query_collection", Arguments: `{"collection":"ghosts"}`},
		).
		ScriptText("You have orders and users.")
	loop := NewToolLoop(m, testTools(t))

	out, err := loop.Respond(context.Background(), Input{SessionID: "s", Message: "what collections are there?", State: shopState})
	require.NoError(t, err)
	assert.Equal(t, "You have orders and users.", out.Text)
	assert.Equal(t, 2, out.Steps)

	require.Len(t, out.ToolCalls, 2)
	assert.Equal(t, "list_collections", out.ToolCalls[0].Name)
	assert.Equal(t, `["orders","users"]`, out.ToolCalls[0].Result)
	assert.False(t, out.ToolCalls[0].IsError)
	assert.True(t, out.ToolCalls[1].IsError, "tool errors are results, not failures")
	assert.Contains(t, out.ToolCalls[1].Result, "error: collection not found")

	// Second request carries the assistant call message and both tool responses.
	second := m.Requests()[1]
	require.Len(t, second.Contents, 4)
	assert.Len(t, second.Contents[1].FunctionCalls(), 2)
	first := second.Contents[2].FunctionResponses()
	require.Len(t, first, 1)
	assert.Equal(t, "a", first[0].ID)
	last := second.Contents[3].FunctionResponses()
	require.Len(t, last, 1)
	assert.True(t, last[0].IsError)
}

func TestToolLoop_UnknownToolDoesNotAbort(t *testing.T) {
	m := model.NewMockModel("m", "mock").
		ScriptToolCalls(core.FunctionCall{ID: "x", Name: "drop_collection", Arguments: "{}"}).
		ScriptText("I cannot do that.")
	out, err := NewToolLoop(m, testTools(t)).Respond(context.Background(), Input{Message: "drop users", State: shopState})
	require.NoError(t, err)
	assert.Equal(t, "I cannot do that.", out.Text)
	require.Len(t, out.ToolCalls, 1)
	assert.True(t, out.ToolCalls[0].IsError)
}

func TestToolLoop_AssignsMissingCallIDs(t *testing.T) {
	m := model.NewMockModel("m", "mock").
		ScriptToolCalls(core.FunctionCall{Name: "list_collections"}).
		ScriptText("done")
	out, err := NewToolLoop(m, testTools(t)).Respond(context.Background(), Input{Message: "list", State: shopState})
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "call_1_1", out.ToolCalls[0].ID)

	second := m.Requests()[1]
	assert.Equal(t, "call_1_1", second.Contents[1].FunctionCalls()[0].ID)
	assert.Equal(t, "call_1_1", second.Contents[2].FunctionResponses()[0].ID)
}

func TestToolLoop_BudgetExhausted(t *testing.T) {
	call := core.FunctionCall{ID: "c", Name: "list_collections", Arguments: "{}"}

	t.Run("final answer", func(t *testing.T) {
		m := model.NewMockModel("m", "mock").
			ScriptToolCalls(call).
			ScriptToolCalls(call).
			ScriptText("Based on what I found: orders and users.")
		loop := NewToolLoop(m, testTools(t), func(o *LoopOptions) { o.MaxSteps = 2 })

		out, err := loop.Respond(context.Background(), Input{Message: "loop forever", State: shopState})
		require.NoError(t, err)
		assert.True(t, out.BudgetExhausted)
		assert.Equal(t, 2, out.Steps)
		assert.Len(t, out.ToolCalls, 2)
		assert.Equal(t, "Based on what I found: orders and users.", out.Text)

		final := m.Requests()[2]
		assert.Empty(t, final.Tools, "final call is tools-free")
		assert.Equal(t, DefaultFinalPrompt, final.Contents[len(final.Contents)-1].Text())
	})

	t.Run("acknowledgement fallback", func(t *testing.T) {
		m := model.NewMockModel("m", "mock").
			ScriptToolCalls(call).
			ScriptError(errors.New("provider down"))
		loop := NewToolLoop(m, testTools(t), func(o *LoopOptions) {
			o.MaxSteps = 1
			o.Acknowledgement = "sorry"
		})

		out, err := loop.Respond(context.Background(), Input{Message: "q", State: shopState})
		require.NoError(t, err)
		assert.True(t, out.BudgetExhausted)
		assert.Equal(t, "sorry", out.Text)
	})
}

func TestToolLoop_ModelErrorAborts(t *testing.T) {
	boom := errors.New("provider down")
	m := model.NewMockModel("m", "mock").ScriptError(boom)

	_, err := NewToolLoop(m, testTools(t)).Respond(context.Background(), Input{Message: "q", State: shopState})
	assert.ErrorIs(t, err, boom)
}

func TestToolLoop_Defaults(t *testing.T) {
	loop := NewToolLoop(model.NewMockModel("m", "mock"), nil, func(o *LoopOptions) { o.MaxSteps = 0 })
	assert.Equal(t, DefaultMaxSteps, loop.MaxSteps())
	assert.Empty(t, loop.defs)
}

func TestToolLoop_MissingInstructionState(t *testing.T) {
	m := model.NewMockModel("m", "mock").ScriptText("unused")

	_, err := NewToolLoop(m, testTools(t)).Respond(context.Background(), Input{Message: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
	assert.Zero(t, m.Calls())
}
