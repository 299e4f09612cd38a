// Package session tracks conversation sessions. Each session owns an
// independent memory.Transcript plus a turn lock that serialises message
// handling within that session while different sessions proceed in parallel.
//
// Store is the lookup contract; InMemoryStore is the process-local
// implementation. Sessions do not survive a restart.
package session
