package persistence

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

var sortDirections = map[string]int{
	"asc":  1,
	"desc": -1,
}

/*
CompileSort translates a mapping of logical field to "asc"/"desc" into native
sort directives. The id field is renamed to _id, invalid entries are dropped,
and a stable _id:-1 tiebreaker is appended when any valid entries remain —
unless the caller already sorts by id, which counts as taking the tiebreaker
over. Returns nil when no valid entries remain; a nil sort must not be passed
to the driver.

Accepts an ordered bson.D or a plain map; map entries are emitted in sorted
key order to keep compilation deterministic.
*/
func CompileSort(order interface{}) bson.D {
	entries := sortEntries(order)

	out := make(bson.D, 0, len(entries)+1)
	sortsByID := false
	for _, entry := range entries {
		value, ok := entry.Value.(string)
		if !ok {
			continue
		}
		direction, ok := sortDirections[value]
		if !ok {
			continue
		}
		key := entry.Key
		if key == "id" {
			key = "_id"
		}
		if key == "_id" {
			sortsByID = true
		}
		out = append(out, bson.E{Key: key, Value: direction})
	}

	if len(out) == 0 {
		return nil
	}
	if !sortsByID {
		out = append(out, bson.E{Key: "_id", Value: -1})
	}
	return out
}

func sortEntries(order interface{}) bson.D {
	switch v := order.(type) {
	case bson.D:
		return v
	case map[string]string:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		entries := make(bson.D, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, bson.E{Key: key, Value: v[key]})
		}
		return entries
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		entries := make(bson.D, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, bson.E{Key: key, Value: v[key]})
		}
		return entries
	case bson.M:
		return sortEntries(map[string]interface{}(v))
	}
	return nil
}
