// Package memory holds the per-session conversation transcript: an ordered,
// append-only list of user and assistant turns that lives for the lifetime of
// the process.
//
// Transcripts are safe for concurrent use and always hand out copies, so a
// caller iterating a snapshot never observes later appends.
package memory
