package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func collectionsResponse(names ...string) bson.D {
	docs := make([]bson.D, 0, len(names))
	for _, n := range names {
		docs = append(docs, bson.D{{Key: "name", Value: n}, {Key: "type", Value: "collection"}})
	}
	return mtest.CreateCursorResponse(0, "db.$cmd.listCollections", mtest.FirstBatch, docs...)
}

func TestGateway_ListCollections(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sorted names", func(mt *mtest.T) {
		mt.AddMockResponses(collectionsResponse("users", "orders", "audit"))
		gw := NewGatewayFromDatabase(mt.DB)

		names, err := gw.ListCollections(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"audit", "orders", "users"}, names)
	})

	mt.Run("empty database", func(mt *mtest.T) {
		mt.AddMockResponses(collectionsResponse())
		gw := NewGatewayFromDatabase(mt.DB)

		names, err := gw.ListCollections(context.Background())
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestGateway_Query(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()
	ref := primitive.NewObjectID()

	mt.Run("normalises identifiers", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: oid},
					{Key: "name", Value: "Ada"},
					{Key: "age", Value: int32(36)},
					{Key: "manager", Value: bson.D{{Key: "ref", Value: ref}}},
					{Key: "tags", Value: bson.A{ref, "x"}},
				},
			),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		recs, err := gw.Query(context.Background(), "users", map[string]any{"age": map[string]any{"$gt": 30}}, 10, 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, oid.Hex(), recs[0]["_id"])
		assert.Equal(t, "Ada", recs[0]["name"])
		assert.Equal(t, int32(36), recs[0]["age"])
		assert.Equal(t, map[string]any{"ref": ref.Hex()}, recs[0]["manager"])
		assert.Equal(t, []any{ref.Hex(), "x"}, recs[0]["tags"])
	})

	mt.Run("empty result is not an error", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		recs, err := gw.Query(context.Background(), "users", nil, 10, 0)
		require.NoError(t, err)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})

	mt.Run("limit zero skips the data fetch", func(mt *mtest.T) {
		// Only the existence check is answered; a find would run out of responses.
		mt.AddMockResponses(collectionsResponse("users"))
		gw := NewGatewayFromDatabase(mt.DB)

		recs, err := gw.Query(context.Background(), "users", nil, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	mt.Run("unknown collection", func(mt *mtest.T) {
		mt.AddMockResponses(collectionsResponse())
		gw := NewGatewayFromDatabase(mt.DB)

		_, err := gw.Query(context.Background(), "missing", nil, 10, 0)
		require.ErrorIs(t, err, ErrCollectionNotFound)

		var sErr *Error
		require.ErrorAs(t, err, &sErr)
		assert.Equal(t, "query", sErr.Op)
		assert.Equal(t, "missing", sErr.Collection)
	})

	mt.Run("rejected filter", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    2,
				Name:    "BadValue",
				Message: "unknown top level operator: $bogus",
			}),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		_, err := gw.Query(context.Background(), "users", map[string]any{"$bogus": 1}, 10, 0)
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	mt.Run("negative bounds", func(mt *mtest.T) {
		gw := NewGatewayFromDatabase(mt.DB)

		_, err := gw.Query(context.Background(), "users", nil, -1, 0)
		assert.ErrorIs(t, err, ErrInvalidFilter)
		_, err = gw.Query(context.Background(), "users", nil, 1, -1)
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestGateway_GetByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: oid},
				{Key: "created", Value: primitive.NewDateTimeFromTime(created)},
			}),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		rec, found, err := gw.GetByID(context.Background(), "users", oid.Hex())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, oid.Hex(), rec["_id"])
		assert.Equal(t, "2024-03-01T12:00:00Z", rec["created"])
	})

	mt.Run("absent", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		rec, found, err := gw.GetByID(context.Background(), "users", oid.Hex())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, rec)
	})

	mt.Run("malformed identifier", func(mt *mtest.T) {
		gw := NewGatewayFromDatabase(mt.DB)

		for _, id := range []string{"", "xyz", "12ab"} {
			_, found, err := gw.GetByID(context.Background(), "users", id)
			assert.ErrorIs(t, err, ErrInvalidIdentifier, id)
			assert.False(t, found)
		}
	})

	mt.Run("string identifiers when enabled", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "ada"},
			}),
		)
		gw := NewGatewayFromDatabase(mt.DB, func(o *Options) { o.StringIDs = true })

		rec, found, err := gw.GetByID(context.Background(), "users", "ada")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "ada", rec["_id"])
	})

	mt.Run("integer identifier round trips", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("orders"),
			mtest.CreateCursorResponse(0, "db.orders", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: int32(7)},
				{Key: "total", Value: 12.5},
			}),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		rec, found, err := gw.GetByID(context.Background(), "orders", "7")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "7", rec["_id"])
	})

	mt.Run("hex looking string identifier", func(mt *mtest.T) {
		hex := "64b7f0c2a1b2c3d4e5f60718"
		mt.AddMockResponses(
			collectionsResponse("users"),
			mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: hex},
			}),
		)
		gw := NewGatewayFromDatabase(mt.DB, func(o *Options) { o.StringIDs = true })

		rec, found, err := gw.GetByID(context.Background(), "users", hex)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, hex, rec["_id"])
	})
}

func TestGateway_IDFilter(t *testing.T) {
	hex := "64b7f0c2a1b2c3d4e5f60718"
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	u := uuid.MustParse("0b7e5c1a-3f0e-4c59-8a4f-2d8c7f1e9a10")

	tests := []struct {
		name      string
		stringIDs bool
		id        string
		want      bson.D
	}{
		{"object id", false, hex, bson.D{{Key: "_id", Value: oid}}},
		{"integer", false, " 42 ", bson.D{{Key: "_id", Value: int64(42)}}},
		{"uuid", false, u.String(), bson.D{{Key: "_id", Value: primitive.Binary{Subtype: 0x04, Data: u[:]}}}},
		{"plain string", true, "ada", bson.D{{Key: "_id", Value: "ada"}}},
		{"object id or string", true, hex, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid, hex}}}}}},
		{"integer or string", true, "42", bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{int64(42), "42"}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &Gateway{opts: buildOptions([]func(o *Options){func(o *Options) { o.StringIDs = tt.stringIDs }})}
			got, err := gw.idFilter(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateway_SearchText(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ordered results", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("articles"),
			mtest.CreateCursorResponse(0, "db.articles", mtest.FirstBatch,
				bson.D{{Key: "title", Value: "mongo basics"}, {Key: "score", Value: 1.5}},
				bson.D{{Key: "title", Value: "mongo"}, {Key: "score", Value: 0.75}},
			),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		recs, err := gw.SearchText(context.Background(), "articles", "  mongo ", 5)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "mongo basics", recs[0]["title"])
		assert.Equal(t, 1.5, recs[0]["score"])
	})

	mt.Run("no text index", func(mt *mtest.T) {
		mt.AddMockResponses(
			collectionsResponse("articles"),
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    27,
				Name:    "IndexNotFound",
				Message: "text index required for $text query",
			}),
		)
		gw := NewGatewayFromDatabase(mt.DB)

		_, err := gw.SearchText(context.Background(), "articles", "mongo", 5)
		assert.ErrorIs(t, err, ErrNoTextIndex)
	})

	mt.Run("blank text", func(mt *mtest.T) {
		gw := NewGatewayFromDatabase(mt.DB)

		_, err := gw.SearchText(context.Background(), "articles", "   ", 5)
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestBuildOptions(t *testing.T) {
	o := buildOptions(nil)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.NotNil(t, o.Logger)

	o = buildOptions([]func(o *Options){func(o *Options) { o.Timeout = -time.Second }})
	assert.Equal(t, DefaultTimeout, o.Timeout)
}

func TestNewGateway_RequiresDatabase(t *testing.T) {
	_, err := NewGateway(context.Background(), "mongodb://localhost:27017", "")
	assert.Error(t, err)
}
