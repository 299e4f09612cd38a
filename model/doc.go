// Package model defines the provider‑agnostic abstractions for talking to
// language models.
//
// Core goals:
//   - Hide vendor SDKs behind a single channel based Generate call
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers live in sub packages (openai, anthropic) so the agents remain
// decoupled from any particular SDK.
package model
