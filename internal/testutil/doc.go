// Package testutil contains fakes and builders shared by package tests: an
// in-memory store.Reader and a session builder with pre-populated turns.
// They are not intended for production usage.
package testutil
