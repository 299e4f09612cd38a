// Package store is the read-only gateway to the MongoDB database the
// assistant answers questions about.
//
// A Gateway lists collections, runs filtered queries, fetches single documents
// by identifier and performs full-text search. Every returned Record is
// normalised into plain JSON-friendly Go values (ObjectIDs become hex strings,
// dates become RFC 3339 text) so callers never see driver types. The top level
// _id is always a string that GetByID accepts back.
//
// Failures are reported as *Error values whose Kind is one of the sentinel
// errors declared in errors.go, so callers can branch with errors.Is:
//
//	recs, err := gw.Query(ctx, "users", nil, 10, 0)
//	if errors.Is(err, store.ErrCollectionNotFound) {
//		// tell the user which collections exist
//	}
package store
