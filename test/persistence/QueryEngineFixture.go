package test_persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	persist "github.com/pip-services3-go/pip-services3-mongoquery-go/persistence"
)

// QueryEngineFixture drives the full operation set against a live server.
type QueryEngineFixture struct {
	engine *persist.MongoDbQueryEngine
}

func NewQueryEngineFixture(engine *persist.MongoDbQueryEngine) *QueryEngineFixture {
	return &QueryEngineFixture{engine: engine}
}

func (c *QueryEngineFixture) newModel() *persist.Model {
	return &persist.Model{
		TableName:  "dummies",
		UniqueKeys: [][]string{{"key"}},
	}
}

func (c *QueryEngineFixture) Clear(t *testing.T) {
	ctx := context.Background()
	_, err := c.engine.MultiRemove(ctx, c.newModel(), nil)
	assert.NoError(t, err)
	_ = c.engine.DropIndexes(ctx, c.newModel())
}

func (c *QueryEngineFixture) TestCrudOperations(t *testing.T) {
	ctx := context.Background()
	model := c.newModel()

	// Upsert insert path.
	id, err := c.engine.Save(ctx, model, bson.M{"key": "k1", "content": "v1"}, bson.M{"origin": "fixture"})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	items, err := c.engine.Get(ctx, model, &persist.QueryParams{Filters: bson.M{"key": "k1"}})
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, id, items[0]["id"])
	assert.Equal(t, "v1", items[0]["content"])
	assert.Equal(t, "fixture", items[0]["origin"])
	assert.Contains(t, items[0], "dateCreated")
	assert.Contains(t, items[0], "dateModified")
	assert.NotContains(t, items[0], "_id")

	// Upsert update path keeps identity and the insert-only fields.
	id2, err := c.engine.Save(ctx, model, bson.M{"key": "k1", "content": "v2"}, bson.M{"origin": "other"})
	assert.NoError(t, err)
	assert.Equal(t, id, id2)

	items, err = c.engine.Get(ctx, model, &persist.QueryParams{Filters: bson.M{"key": "k1"}})
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "v2", items[0]["content"])
	assert.Equal(t, "fixture", items[0]["origin"])

	count, err := c.engine.Update(ctx, model, bson.M{"content": "v3"}, bson.M{"key": "k1"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	doc, err := c.engine.Increment(ctx, model, bson.M{"key": "k1"}, bson.M{"counter": 5}, bson.M{"status": "seen"})
	assert.NoError(t, err)
	assert.NotNil(t, doc)
	assert.EqualValues(t, 5, doc["counter"])
	assert.Equal(t, "seen", doc["status"])
	assert.Contains(t, doc, "id")

	doc, err = c.engine.Increment(ctx, model, bson.M{"key": "k1"}, bson.M{"counter": 5}, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 10, doc["counter"])

	// No match and no upsert.
	doc, err = c.engine.Increment(ctx, model, bson.M{"key": "missing"}, bson.M{"counter": 1}, nil)
	assert.NoError(t, err)
	assert.Nil(t, doc)

	deleted, err := c.engine.Remove(ctx, model, bson.M{"key": "k1"})
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.engine.Remove(ctx, model, bson.M{"key": "k1"})
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func (c *QueryEngineFixture) TestBatchOperations(t *testing.T) {
	ctx := context.Background()
	model := c.newModel()

	err := c.engine.CreateIndex(ctx, model, &persist.IndexSpec{
		Name:   "key_unique",
		Key:    bson.D{bson.E{Key: "key", Value: 1}},
		Unique: true,
	})
	assert.NoError(t, err)

	items, err := c.engine.MultiInsert(ctx, model, []bson.M{
		{"key": "b1", "content": "v1"},
		{"key": "b2", "content": "v2"},
	}, false)
	assert.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.Contains(t, item, "id")
		assert.IsType(t, "", item["id"])
	}

	// Duplicates drop silently, non-conflicting items persist.
	items, err = c.engine.MultiInsert(ctx, model, []bson.M{
		{"key": "b2", "content": "dup"},
		{"key": "b3", "content": "v3"},
	}, false)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "b3", items[0]["key"])

	_, err = c.engine.MultiInsert(ctx, model, []bson.M{
		{"key": "b3", "content": "dup"},
	}, true)
	assert.Error(t, err)

	err = c.engine.MultiSave(ctx, model, []bson.M{
		{"key": "b1", "content": "w1"},
		{"key": "b4", "content": "w4"},
	}, nil)
	assert.NoError(t, err)

	keys, err := c.engine.Distinct(ctx, model, "key", nil)
	assert.NoError(t, err)
	assert.Len(t, keys, 4)

	result, err := c.engine.MultiUpdate(ctx, model, []persist.UpdateOperation{
		{Filter: bson.M{"key": "b1"}, Data: bson.M{"content": "u1"}, UpdateOne: true},
		{Filter: bson.M{"key": bson.M{"value": []string{"b2", "b3"}, "type": "in"}}, Data: bson.M{"content": "u2"}},
	})
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(3), result.ModifiedCount)
	assert.Len(t, result.Operations, 2)
	for _, operation := range result.Operations {
		assert.True(t, operation.Success)
	}

	removed, err := c.engine.MultiRemove(ctx, model, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), removed)
}

func (c *QueryEngineFixture) TestPagingAndTotals(t *testing.T) {
	ctx := context.Background()
	model := c.newModel()

	items := make([]bson.M, 0, 10)
	for _, key := range []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"} {
		items = append(items, bson.M{"key": key, "content": "xyz"})
	}
	_, err := c.engine.MultiInsert(ctx, model, items, false)
	assert.NoError(t, err)

	page, err := c.engine.Get(ctx, model, &persist.QueryParams{
		Filters: bson.M{"content": bson.M{"value": "x", "type": "search"}},
		Order:   map[string]string{"key": "asc"},
		Limit:   5,
		Page:    1,
	})
	assert.NoError(t, err)
	assert.Len(t, page, 5)
	assert.Equal(t, "p0", page[0]["key"])

	totals, err := c.engine.GetTotals(ctx, model, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(10), totals.Total)
	assert.Equal(t, int64(5), totals.PageSize)
	assert.Equal(t, int64(2), totals.Pages)
	assert.Equal(t, int64(1), totals.Page)

	capped, err := c.engine.GetTotals(ctx, model, bson.M{"content": "xyz"}, &persist.TotalsOptions{Limit: 3})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), capped.Total)

	var pageSizes []int
	paged, err := c.engine.GetPaged(ctx, model, &persist.QueryParams{Limit: 4}, func(items []bson.M, page int64, batchSize int64) error {
		pageSizes = append(pageSizes, len(items))
		assert.Equal(t, int64(4), batchSize)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(10), paged.Total)
	assert.Equal(t, int64(3), paged.Pages)
	assert.Equal(t, []int{4, 4, 2}, pageSizes)

	// Projection: inclusion wins over exclusion.
	projected, err := c.engine.Get(ctx, model, &persist.QueryParams{
		Fields:        []string{"key"},
		ExcludeFields: []string{"content"},
		Limit:         1,
	})
	assert.NoError(t, err)
	assert.Len(t, projected, 1)
	assert.Contains(t, projected[0], "key")
	assert.NotContains(t, projected[0], "content")

	_, err = c.engine.MultiRemove(ctx, model, nil)
	assert.NoError(t, err)
}

func (c *QueryEngineFixture) TestIndexOperations(t *testing.T) {
	ctx := context.Background()
	model := c.newModel()
	ttl := int32(3600)

	err := c.engine.CreateIndexes(ctx, model, []*persist.IndexSpec{
		{Name: "key_unique", Key: bson.D{bson.E{Key: "key", Value: 1}}, Unique: true},
		{Name: "created_ttl", Key: bson.D{bson.E{Key: "dateCreated", Value: 1}}, ExpireAfterSeconds: &ttl},
	})
	assert.NoError(t, err)

	indexes, err := c.engine.GetIndexes(ctx, model)
	assert.NoError(t, err)

	byName := map[string]*persist.IndexSpec{}
	for _, index := range indexes {
		byName[index.Name] = index
	}
	assert.Contains(t, byName, "key_unique")
	assert.Contains(t, byName, "created_ttl")
	assert.True(t, byName["key_unique"].Unique)
	assert.False(t, byName["created_ttl"].Unique)

	err = c.engine.DropIndex(ctx, model, "created_ttl")
	assert.NoError(t, err)

	err = c.engine.DropIndexes(ctx, model)
	assert.NoError(t, err)
}
