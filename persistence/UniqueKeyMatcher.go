package persistence

import (
	"go.mongodb.org/mongo-driver/bson"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

// uniqueKeyCandidates collects the model's unique-key field lists in order:
// unique entries from the index specs first (key order preserved), then the
// explicit unique-index declarations.
func uniqueKeyCandidates(model IModel) [][]string {
	var out [][]string
	for _, index := range model.Indexes() {
		if index == nil || !index.Unique {
			continue
		}
		fields := make([]string, 0, len(index.Key))
		for _, entry := range index.Key {
			fields = append(fields, entry.Key)
		}
		if len(fields) > 0 {
			out = append(out, fields)
		}
	}
	return append(out, model.UniqueIndexes()...)
}

/*
UniqueFilter derives the smallest filter that uniquely identifies the item.
The item is expected in its storage form (after CoerceForWrite), so a caller
supplied id already sits under _id and wins outright. Otherwise the first
unique-key candidate whose fields are all present on the item is used.

Fails with MODEL_EMPTY_UNIQUE_INDEXES when the model declares no unique keys
at all, and with EMPTY_UNIQUE_INDEXES when none of them is satisfied.
*/
func UniqueFilter(model IModel, item bson.M) (bson.M, error) {
	if id, ok := item["_id"]; ok {
		return bson.M{"_id": id}, nil
	}

	candidates := uniqueKeyCandidates(model)
	if len(candidates) == 0 {
		return nil, merr.New(merr.ModelEmptyUniqueIndexes, "Model does not declare any unique indexes")
	}

	for _, fields := range candidates {
		if len(fields) == 0 {
			continue
		}
		filter := bson.M{}
		satisfied := true
		for _, field := range fields {
			value, present := item[field]
			if !present {
				satisfied = false
				break
			}
			filter[field] = value
		}
		if satisfied {
			return filter, nil
		}
	}
	return nil, merr.New(merr.EmptyUniqueIndexes, "No unique index is satisfied by the item")
}
