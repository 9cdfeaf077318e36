package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

// GetIndexes lists the collection's indexes normalized to name, key and
// uniqueness.
func (c *MongoDbQueryEngine) GetIndexes(ctx context.Context, model IModel) ([]*IndexSpec, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, merr.WrapInternal(err, "List indexes failed")
	}
	defer cursor.Close(ctx)

	indexes := make([]*IndexSpec, 0)
	for cursor.Next(ctx) {
		var doc struct {
			Name   string `bson:"name"`
			Key    bson.D `bson:"key"`
			Unique bool   `bson:"unique"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, merr.WrapInternal(err, "Index decode failed")
		}
		indexes = append(indexes, &IndexSpec{Name: doc.Name, Key: doc.Key, Unique: doc.Unique})
	}
	if err := cursor.Err(); err != nil {
		return nil, merr.WrapInternal(err, "List indexes failed")
	}
	return indexes, nil
}

// CreateIndex validates and creates a single index.
func (c *MongoDbQueryEngine) CreateIndex(ctx context.Context, model IModel, index *IndexSpec) error {
	return c.CreateIndexes(ctx, model, []*IndexSpec{index})
}

// CreateIndexes validates and creates a batch of indexes. All specs are
// validated before any index is created.
func (c *MongoDbQueryEngine) CreateIndexes(ctx context.Context, model IModel, indexes []*IndexSpec) error {
	if err := checkModel(model); err != nil {
		return err
	}
	if len(indexes) == 0 {
		return merr.New(merr.InvalidIndex, "Indexes must be a non-empty list")
	}

	models := make([]mongodrv.IndexModel, 0, len(indexes))
	for _, index := range indexes {
		if err := ValidateIndex(index); err != nil {
			return err
		}
		models = append(models, indexModel(index))
	}
	if err := c.checkConfigured(); err != nil {
		return err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return err
	}
	names, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return merr.WrapInternal(err, "Create indexes failed")
	}
	for _, name := range names {
		c.Logger.Debug("", "Created index %s on %s", name, model.Table())
	}
	return nil
}

// DropIndex drops a single index by name.
func (c *MongoDbQueryEngine) DropIndex(ctx context.Context, model IModel, name string) error {
	if err := checkModel(model); err != nil {
		return err
	}
	if name == "" {
		return merr.New(merr.InvalidIndex, "Index name is required")
	}
	if err := c.checkConfigured(); err != nil {
		return err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return err
	}
	if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
		return merr.WrapInternal(err, "Drop index failed")
	}
	c.Logger.Debug("", "Dropped index %s on %s", name, model.Table())
	return nil
}

// DropIndexes drops every index of the collection except the default _id one.
func (c *MongoDbQueryEngine) DropIndexes(ctx context.Context, model IModel) error {
	if err := checkModel(model); err != nil {
		return err
	}
	if err := c.checkConfigured(); err != nil {
		return err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return err
	}
	if _, err := coll.Indexes().DropAll(ctx); err != nil {
		return merr.WrapInternal(err, "Drop indexes failed")
	}
	c.Logger.Debug("", "Dropped indexes on %s", model.Table())
	return nil
}
