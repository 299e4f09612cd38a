package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/docchat/store"
)

// FakeReader is a store.Reader returning canned results. It records the
// arguments of the most recent call. Err, when set, is returned by every
// operation; PingErr is returned by Ping.
type FakeReader struct {
	Collections []string
	Records     []store.Record
	Doc         store.Record
	Err         error
	PingErr     error

	mu             sync.Mutex
	LastCollection string
	LastFilter     map[string]any
	LastLimit      int
	LastSkip       int
	LastText       string
	LastID         string
}

var _ store.Reader = (*FakeReader)(nil)

// ListCollections returns Collections.
func (f *FakeReader) ListCollections(context.Context) ([]string, error) {
	return f.Collections, f.Err
}

// Query returns at most limit of Records.
func (f *FakeReader) Query(_ context.Context, collection string, filter map[string]any, limit, skip int) ([]store.Record, error) {
	f.mu.Lock()
	f.LastCollection, f.LastFilter, f.LastLimit, f.LastSkip = collection, filter, limit, skip
	f.mu.Unlock()
	return f.limited(limit)
}

// GetByID returns Doc, reporting it absent when nil.
func (f *FakeReader) GetByID(_ context.Context, collection, id string) (store.Record, bool, error) {
	f.mu.Lock()
	f.LastCollection, f.LastID = collection, id
	f.mu.Unlock()
	if f.Err != nil {
		return nil, false, f.Err
	}
	return f.Doc, f.Doc != nil, nil
}

// SearchText returns at most limit of Records.
func (f *FakeReader) SearchText(_ context.Context, collection, text string, limit int) ([]store.Record, error) {
	f.mu.Lock()
	f.LastCollection, f.LastText, f.LastLimit = collection, text, limit
	f.mu.Unlock()
	return f.limited(limit)
}

func (f *FakeReader) limited(limit int) ([]store.Record, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if limit >= 0 && limit < len(f.Records) {
		return f.Records[:limit], nil
	}
	return f.Records, nil
}

// Ping returns PingErr.
func (f *FakeReader) Ping(context.Context) error { return f.PingErr }
