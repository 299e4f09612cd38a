package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hupe1980/docchat/logging"
)

// Defaults applied when a caller passes no explicit value.
const (
	DefaultTimeout = 5 * time.Second
	DefaultLimit   = 10
)

// Record is a single normalised document.
type Record map[string]any

// Reader is the read-only surface consumed by the tools and the HTTP layer.
type Reader interface {
	ListCollections(ctx context.Context) ([]string, error)
	Query(ctx context.Context, collection string, filter map[string]any, limit, skip int) ([]Record, error)
	GetByID(ctx context.Context, collection, id string) (Record, bool, error)
	SearchText(ctx context.Context, collection, text string, limit int) ([]Record, error)
}

// Options configures a Gateway.
type Options struct {
	// Timeout bounds every individual gateway call.
	Timeout time.Duration
	// StringIDs additionally matches identifiers verbatim against string
	// _id values, including ones that look like ObjectID hex.
	StringIDs bool
	// Logger receives debug level operation traces.
	Logger logging.Logger
}

// Gateway is a MongoDB backed Reader. It is safe for concurrent use; connection
// pooling is handled by the driver.
type Gateway struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
}

var _ Reader = (*Gateway)(nil)

// NewGateway connects to uri and binds the gateway to database. The driver
// connects lazily so an unreachable server surfaces on first use as
// ErrStoreUnavailable.
func NewGateway(ctx context.Context, uri, database string, optFns ...func(o *Options)) (*Gateway, error) {
	if database == "" {
		return nil, errors.New("store: database name is required")
	}
	o := buildOptions(optFns)

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(o.Timeout).
		SetConnectTimeout(o.Timeout))
	if err != nil {
		return nil, wrap("connect", "", err)
	}

	return &Gateway{client: client, db: client.Database(database), opts: o}, nil
}

// NewGatewayFromDatabase wraps an existing database handle. Close is a no-op
// for gateways built this way; the caller owns the client.
func NewGatewayFromDatabase(db *mongo.Database, optFns ...func(o *Options)) *Gateway {
	return &Gateway{db: db, opts: buildOptions(optFns)}
}

func buildOptions(optFns []func(o *Options)) Options {
	o := Options{Timeout: DefaultTimeout, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	o.Logger = logging.OrNoOp(o.Logger)
	return o
}

// Database returns the configured database name.
func (g *Gateway) Database() string { return g.db.Name() }

// Ping verifies the server is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.db.Client().Ping(ctx, nil); err != nil {
		return newError("ping", "", ErrStoreUnavailable, err)
	}
	return nil
}

// Close disconnects the pooled client.
func (g *Gateway) Close(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	return g.client.Disconnect(ctx)
}

// ListCollections returns the names of every collection in the database, sorted.
func (g *Gateway) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	names, err := g.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, wrap("list", "", err)
	}
	sort.Strings(names)
	g.opts.Logger.Debug("store.list", "count", len(names))
	return names, nil
}

// Query returns up to limit records of collection matching filter, skipping
// the first skip matches. A nil filter matches everything and results keep the
// collection's natural order.
func (g *Gateway) Query(ctx context.Context, collection string, filter map[string]any, limit, skip int) ([]Record, error) {
	const op = "query"
	if limit < 0 || skip < 0 {
		return nil, newError(op, collection, ErrInvalidFilter, fmt.Errorf("limit and skip must be >= 0, got %d and %d", limit, skip))
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.ensureCollection(ctx, op, collection); err != nil {
		return nil, err
	}
	// The server treats limit 0 as "no limit".
	if limit == 0 {
		return []Record{}, nil
	}
	if filter == nil {
		filter = map[string]any{}
	}

	start := time.Now()
	cur, err := g.db.Collection(collection).Find(ctx, filter, options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(skip)))
	if err != nil {
		return nil, wrap(op, collection, err)
	}
	recs, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, wrap(op, collection, err)
	}
	g.opts.Logger.Debug("store.query", "collection", collection, "count", len(recs), "duration", time.Since(start))
	return recs, nil
}

// GetByID fetches a single document. A missing document is reported as
// (nil, false, nil).
func (g *Gateway) GetByID(ctx context.Context, collection, id string) (Record, bool, error) {
	const op = "get"
	filter, err := g.idFilter(id)
	if err != nil {
		return nil, false, newError(op, collection, ErrInvalidIdentifier, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.ensureCollection(ctx, op, collection); err != nil {
		return nil, false, err
	}

	var raw bson.M
	err = g.db.Collection(collection).FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap(op, collection, err)
	}
	return normalizeDocument(raw), true, nil
}

// SearchText runs a $text search and returns results ordered by relevance.
// Each record carries its relevance under "score".
func (g *Gateway) SearchText(ctx context.Context, collection, text string, limit int) ([]Record, error) {
	const op = "search"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newError(op, collection, ErrInvalidFilter, errors.New("search text must not be blank"))
	}
	if limit < 0 {
		return nil, newError(op, collection, ErrInvalidFilter, fmt.Errorf("limit must be >= 0, got %d", limit))
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if err := g.ensureCollection(ctx, op, collection); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []Record{}, nil
	}

	score := bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}
	cur, err := g.db.Collection(collection).Find(ctx,
		bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: text}}}},
		options.Find().SetProjection(score).SetSort(score).SetLimit(int64(limit)))
	if err != nil {
		return nil, wrap(op, collection, err)
	}
	recs, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, wrap(op, collection, err)
	}
	g.opts.Logger.Debug("store.search", "collection", collection, "count", len(recs))
	return recs, nil
}

func (g *Gateway) ensureCollection(ctx context.Context, op, collection string) error {
	if strings.TrimSpace(collection) == "" {
		return newError(op, collection, ErrCollectionNotFound, errors.New("collection name is empty"))
	}
	names, err := g.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return wrap(op, collection, err)
	}
	for _, n := range names {
		if n == collection {
			return nil
		}
	}
	return newError(op, collection, ErrCollectionNotFound, nil)
}

// idFilter matches every native _id form the string id could stand for: an
// ObjectID for 24 hex characters, an integer for decimal digits, a UUID binary
// for canonical UUIDs and, with StringIDs, the raw string itself.
func (g *Gateway) idFilter(id string) (bson.D, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("identifier is empty")
	}

	var forms bson.A
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		forms = append(forms, oid)
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		forms = append(forms, n)
	}
	if u, err := uuid.Parse(id); err == nil && len(id) == 36 {
		forms = append(forms, primitive.Binary{Subtype: 0x04, Data: u[:]})
	}
	if g.opts.StringIDs {
		forms = append(forms, id)
	}
	if len(forms) == 0 {
		return nil, fmt.Errorf("%q is not an ObjectID, integer or UUID identifier", id)
	}
	if len(forms) == 1 {
		return bson.D{{Key: "_id", Value: forms[0]}}, nil
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: forms}}}}, nil
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]Record, error) {
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(raw))
	for _, doc := range raw {
		recs = append(recs, normalizeDocument(doc))
	}
	return recs, nil
}
