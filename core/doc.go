// Package core provides the foundational conversation types shared by the
// model adapters, the tool subsystem and the agents:
//
//   - Content / Part (role tagged, ordered message segments)
//   - FunctionCall / FunctionResponse (tool invocation records)
//   - ToolContext (scoped execution surface handed to tools)
//
// The package intentionally keeps implementation concerns (persistence,
// providers, routing) out of scope so every other package can depend on it
// without cycles.
package core
