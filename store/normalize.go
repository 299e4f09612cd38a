package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalizeDocument converts a decoded BSON document into a Record containing
// only JSON friendly values. The top level _id always becomes a string.
func normalizeDocument(doc map[string]any) Record {
	rec := Record(normalizeMap(doc))
	if id, ok := doc["_id"]; ok {
		rec["_id"] = idString(id)
	}
	return rec
}

// idString renders an _id in the form GetByID accepts back.
func idString(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case primitive.Binary:
		if isUUID(t) {
			return uuid.UUID(t.Data).String()
		}
		return base64.StdEncoding.EncodeToString(t.Data)
	default:
		return fmt.Sprint(normalizeValue(v))
	}
}

func isUUID(b primitive.Binary) bool {
	return (b.Subtype == 0x03 || b.Subtype == 0x04) && len(b.Data) == 16
}

func normalizeMap(doc map[string]any) map[string]any {
	m := make(map[string]any, len(doc))
	for k, v := range doc {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return t.String()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC().Format(time.RFC3339)
	case primitive.Binary:
		if isUUID(t) {
			return uuid.UUID(t.Data).String()
		}
		return base64.StdEncoding.EncodeToString(t.Data)
	case primitive.Regex:
		return t.String()
	case primitive.Null, primitive.Undefined:
		return nil
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	default:
		return v
	}
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = normalizeValue(v)
	}
	return out
}
