package persistence

import (
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	mongoopt "go.mongodb.org/mongo-driver/mongo/options"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

// ValidateIndex checks a caller-supplied index specification.
func ValidateIndex(index *IndexSpec) error {
	if index == nil {
		return merr.New(merr.InvalidIndex, "Index is not an object")
	}
	if index.Name == "" {
		return merr.New(merr.InvalidIndex, "Index name is required")
	}
	if len(index.Key) == 0 {
		return merr.Newf(merr.InvalidIndex, "Index %s has no key", index.Name)
	}
	for _, entry := range index.Key {
		if entry.Key == "" {
			return merr.Newf(merr.InvalidIndex, "Index %s has an empty key field", index.Name)
		}
		direction, ok := entry.Value.(int)
		if !ok || (direction != 1 && direction != -1) {
			return merr.Newf(merr.InvalidIndex, "Index %s key field %s must be 1 or -1", index.Name, entry.Key)
		}
	}
	if index.ExpireAfterSeconds != nil && *index.ExpireAfterSeconds < 0 {
		return merr.Newf(merr.InvalidIndex, "Index %s has a negative ttl", index.Name)
	}
	return nil
}

// indexModel converts a validated spec into the driver's index model.
func indexModel(index *IndexSpec) mongodrv.IndexModel {
	options := mongoopt.Index().SetName(index.Name)
	if index.Unique {
		options.SetUnique(true)
	}
	if index.Sparse {
		options.SetSparse(true)
	}
	if index.ExpireAfterSeconds != nil {
		options.SetExpireAfterSeconds(*index.ExpireAfterSeconds)
	}
	if index.PartialFilterExpression != nil {
		options.SetPartialFilterExpression(index.PartialFilterExpression)
	}
	return mongodrv.IndexModel{Keys: index.Key, Options: options}
}
