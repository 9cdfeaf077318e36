package persistence

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToObjectID coerces a value to a native object identifier. Valid hex strings
// convert; every other value passes through unchanged and the server reports
// a mismatch if it matters.
func ToObjectID(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v
	case string:
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid
		}
	}
	return value
}

// coerceIDValues applies ToObjectID element-wise to sequence values.
func coerceIDValues(value interface{}) interface{} {
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = ToObjectID(item)
		}
		return out
	case primitive.A:
		out := make(primitive.A, len(v))
		for i, item := range v {
			out[i] = ToObjectID(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = ToObjectID(item)
		}
		return out
	}
	return ToObjectID(value)
}

// IDToString renders a native identifier in its string form.
func IDToString(value interface{}) string {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CoerceForWrite produces a copy of the item ready for storage: the public id
// moves under _id, and every field flagged IsID is coerced to a native object
// identifier, element-wise for sequences. When the model declares a custom id
// scheme the id value is preserved as-is under _id.
func CoerceForWrite(model IModel, item bson.M) bson.M {
	out := make(bson.M, len(item))
	for key, value := range item {
		out[key] = value
	}

	if id, ok := out["id"]; ok {
		delete(out, "id")
		if model.HasCustomID() {
			out["_id"] = id
		} else {
			out["_id"] = ToObjectID(id)
		}
	}

	for logical, spec := range model.Fields() {
		if spec == nil || !spec.IsID {
			continue
		}
		if value, ok := out[logical]; ok {
			out[logical] = coerceIDValues(value)
		}
	}
	return out
}

// CoerceManyForWrite applies CoerceForWrite to a batch of items.
func CoerceManyForWrite(model IModel, items []bson.M) []bson.M {
	out := make([]bson.M, len(items))
	for i, item := range items {
		out[i] = CoerceForWrite(model, item)
	}
	return out
}

// RenameForClient produces a copy of a stored document with _id removed and
// id set to its string form. Documents without _id are copied unchanged.
func RenameForClient(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for key, value := range doc {
		out[key] = value
	}
	if id, ok := out["_id"]; ok {
		delete(out, "_id")
		out["id"] = IDToString(id)
	}
	return out
}

// RenameManyForClient applies RenameForClient to a batch of documents.
func RenameManyForClient(docs []bson.M) []bson.M {
	out := make([]bson.M, len(docs))
	for i, doc := range docs {
		out[i] = RenameForClient(doc)
	}
	return out
}
