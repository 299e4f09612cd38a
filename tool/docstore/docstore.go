// Package docstore provides the read-only database tools offered to the
// database agent: list_collections, query_collection, get_document and
// search_text. Each tool wraps a store.Reader and renders results as JSON text.
package docstore

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hupe1980/docchat/core"
	"github.com/hupe1980/docchat/store"
	"github.com/hupe1980/docchat/tool"
)

// Tool names.
const (
	ListCollectionsName = "list_collections"
	QueryCollectionName = "query_collection"
	GetDocumentName     = "get_document"
	SearchTextName      = "search_text"
)

// NotFoundMarker is the payload get_document returns when no document matches.
const NotFoundMarker = "document not found"

// Error codes attached to the *tool.ToolError values these tools return.
const (
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeInvalidFilter      = "INVALID_FILTER"
	CodeInvalidIdentifier  = "INVALID_IDENTIFIER"
	CodeNoTextIndex        = "NO_TEXT_INDEX"
	CodeInternal           = "INTERNAL_ERROR"
)

// Options configures the database tools.
type Options struct {
	// DefaultLimit applies when the model omits limit.
	DefaultLimit int
	// DefaultSkip applies when the model omits skip.
	DefaultSkip int
}

// New returns the four database tools bound to r, in a stable order.
func New(r store.Reader, optFns ...func(o *Options)) []tool.Tool {
	opts := Options{DefaultLimit: store.DefaultLimit}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.DefaultLimit < 0 {
		opts.DefaultLimit = store.DefaultLimit
	}
	if opts.DefaultSkip < 0 {
		opts.DefaultSkip = 0
	}

	d := &docTools{reader: r, opts: opts}
	return []tool.Tool{
		tool.NewFunctionToolFromStruct(ListCollectionsName,
			"List the names of all collections in the database.",
			listCollectionsArgs{},
			d.listCollections),
		tool.NewFunctionToolFromStruct(QueryCollectionName,
			fmt.Sprintf("Query documents from a collection. filter is a MongoDB filter encoded as a JSON string, "+
				`for example {"status": "active", "age": {"$gt": 30}}. Use {"$oid": "..."} to match ObjectIDs. `+
				"limit defaults to %d and skip to %d.", opts.DefaultLimit, opts.DefaultSkip),
			queryCollectionArgs{},
			d.queryCollection),
		tool.NewFunctionToolFromStruct(GetDocumentName,
			"Fetch a single document by its _id, exactly as returned by the other tools.",
			getDocumentArgs{},
			d.getDocument),
		tool.NewFunctionToolFromStruct(SearchTextName,
			fmt.Sprintf("Full-text search over a collection that has a text index. Results are ordered by relevance. "+
				"limit defaults to %d.", opts.DefaultLimit),
			searchTextArgs{},
			d.searchText),
	}
}

type listCollectionsArgs struct{}

type queryCollectionArgs struct {
	Collection string `json:"collection" description:"Collection name"`
	Filter     string `json:"filter,omitempty" description:"MongoDB filter as a JSON string"`
	Limit      *int   `json:"limit" minimum:"0" description:"Maximum number of documents"`
	Skip       *int   `json:"skip" minimum:"0" description:"Number of documents to skip"`
}

type getDocumentArgs struct {
	Collection string `json:"collection" description:"Collection name"`
	ID         string `json:"id" description:"Document identifier"`
}

type searchTextArgs struct {
	Collection string `json:"collection" description:"Collection name"`
	Text       string `json:"text" description:"Search terms"`
	Limit      *int   `json:"limit" minimum:"0" description:"Maximum number of documents"`
}

type docTools struct {
	reader store.Reader
	opts   Options
}

func (d *docTools) listCollections(tc *core.ToolContext, _ map[string]any) (any, error) {
	names, err := d.reader.ListCollections(tc.Context())
	if err != nil {
		return nil, toolError(tc, ListCollectionsName, err)
	}
	return names, nil
}

func (d *docTools) queryCollection(tc *core.ToolContext, args map[string]any) (any, error) {
	collection := stringArg(args, "collection")
	limit := intArg(args, "limit", d.opts.DefaultLimit)
	skip := intArg(args, "skip", d.opts.DefaultSkip)

	filter, err := parseFilter(stringArg(args, "filter"))
	if err != nil {
		tc.LogDebug("tool.query.bad_filter", "error", err.Error())
		return nil, tool.NewToolError(QueryCollectionName, "invalid JSON filter", CodeInvalidFilter)
	}

	recs, err := d.reader.Query(tc.Context(), collection, filter, limit, skip)
	if err != nil {
		return nil, toolError(tc, QueryCollectionName, err)
	}
	return recs, nil
}

func (d *docTools) getDocument(tc *core.ToolContext, args map[string]any) (any, error) {
	rec, found, err := d.reader.GetByID(tc.Context(), stringArg(args, "collection"), stringArg(args, "id"))
	if err != nil {
		return nil, toolError(tc, GetDocumentName, err)
	}
	if !found {
		return NotFoundMarker, nil
	}
	return rec, nil
}

func (d *docTools) searchText(tc *core.ToolContext, args map[string]any) (any, error) {
	limit := intArg(args, "limit", d.opts.DefaultLimit)

	recs, err := d.reader.SearchText(tc.Context(), stringArg(args, "collection"), stringArg(args, "text"), limit)
	if err != nil {
		return nil, toolError(tc, SearchTextName, err)
	}
	return recs, nil
}

// parseFilter decodes a relaxed Extended JSON filter so operators such as
// $oid and $date reach the server as native BSON types.
func parseFilter(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(raw), false, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// toolError converts gateway failures into messages the model can act on.
func toolError(tc *core.ToolContext, name string, err error) error {
	var (
		msg  string
		code string
	)
	switch {
	case errors.Is(err, store.ErrStoreUnavailable):
		msg, code = "document store unavailable, try again later: "+err.Error(), CodeStoreUnavailable
	case errors.Is(err, store.ErrCollectionNotFound):
		msg, code = err.Error()+"; call list_collections to see the available collections", CodeCollectionNotFound
	case errors.Is(err, store.ErrNoTextIndex):
		msg, code = err.Error()+"; use query_collection with a filter instead", CodeNoTextIndex
	case errors.Is(err, store.ErrInvalidFilter):
		msg, code = err.Error()+"; check the filter syntax", CodeInvalidFilter
	case errors.Is(err, store.ErrInvalidIdentifier):
		msg, code = err.Error()+"; pass an _id exactly as another tool returned it", CodeInvalidIdentifier
	default:
		tc.LogError("tool.store.unexpected_error", "tool", name, "error", err.Error())
		msg, code = "the database request failed unexpectedly", CodeInternal
	}
	return tool.NewToolError(name, msg, code)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads a JSON number. Validation has already guaranteed the type and
// lower bound, so only absence needs a fallback.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}
