package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Error kinds returned (wrapped in *Error) by Gateway operations.
var (
	// ErrStoreUnavailable indicates the database could not be reached in time.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrCollectionNotFound indicates the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidFilter indicates the server (or the gateway) rejected the filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidIdentifier indicates a document identifier is malformed.
	ErrInvalidIdentifier = errors.New("invalid document identifier")
	// ErrNoTextIndex indicates a text search against a collection without a text index.
	ErrNoTextIndex = errors.New("collection has no text index")
)

// MongoDB server error codes the gateway distinguishes.
const (
	codeBadValue      = 2
	codeFailedToParse = 9
	codeIndexNotFound = 27
)

// Error describes a failed gateway operation.
type Error struct {
	Op         string // Gateway operation (query, get, search, list)
	Collection string // Target collection, empty for database level operations
	Kind       error  // One of the Err* sentinels
	Err        error  // Underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Collection != "" {
		fmt.Fprintf(&b, " (collection %q)", e.Collection)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the error kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func newError(op, collection string, kind, cause error) *Error {
	return &Error{Op: op, Collection: collection, Kind: kind, Err: cause}
}

// wrap maps a driver error onto a gateway error kind. Errors that match no
// kind are returned wrapped with the operation for context.
func wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if kind := classify(err); kind != nil {
		return newError(op, collection, kind, err)
	}
	return fmt.Errorf("store %s: %w", op, err)
}

func classify(err error) error {
	var selErr topology.ServerSelectionError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, mongo.ErrClientDisconnected),
		errors.As(err, &selErr),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return ErrStoreUnavailable
	}

	var srvErr mongo.ServerError
	if errors.As(err, &srvErr) {
		switch {
		case srvErr.HasErrorCode(codeIndexNotFound), srvErr.HasErrorMessage("text index required"):
			return ErrNoTextIndex
		case srvErr.HasErrorCode(codeBadValue), srvErr.HasErrorCode(codeFailedToParse),
			srvErr.HasErrorMessage("unknown operator"):
			return ErrInvalidFilter
		}
	}
	return nil
}
