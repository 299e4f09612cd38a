// Package agent contains the two response generators the router dispatches to:
//
//  1. Chat: plain conversational replies, no tools
//  2. ToolLoop: a bounded tool-calling loop over a tool.Set
//
// Both implement Responder. They are stateless between calls; the caller
// supplies the conversation history and persists the final reply.
//
// Execution model of ToolLoop:
//   - Each step sends the history, the new message and every tool result so far
//     to the model together with the tool definitions
//   - Function calls in a reply are executed in order and fed back as tool
//     responses; a reply without calls ends the loop
//   - When MaxSteps is reached a final tools-free request asks the model to
//     answer from what it gathered; if that fails a fixed acknowledgement is used
package agent
