package persistence

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	mongoopt "go.mongodb.org/mongo-driver/mongo/options"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

// UpdateOptions tunes Update.
type UpdateOptions struct {
	// UpdateOne restricts the update to a single document.
	UpdateOne bool
	// SkipAutomaticSetModifiedData suppresses the dateModified injection.
	SkipAutomaticSetModifiedData bool
}

// UpdateOperation is one entry of a MultiUpdate bulk write.
type UpdateOperation struct {
	Filter    interface{}
	Data      bson.M
	UpdateOne bool
}

// OperationResult reports the outcome of one MultiUpdate entry.
type OperationResult struct {
	Index   int
	Success bool
	Errors  []string
}

// MultiUpdateResult is the structured summary of a MultiUpdate bulk write.
type MultiUpdateResult struct {
	Success       bool
	ModifiedCount int64
	MatchedCount  int64
	UpsertedCount int64
	WriteErrors   []string
	Operations    []OperationResult
}

// Save upserts one item located by its unique key: present fields are set,
// dateModified refreshes, and dateCreated plus the setOnInsert extras apply
// only when the upsert inserts. Returns the string form of the resulting
// document identifier, or an empty string when the backend reported neither
// a match nor an upsert.
func (c *MongoDbQueryEngine) Save(ctx context.Context, model IModel, item bson.M, setOnInsert bson.M) (string, error) {
	if err := checkModel(model); err != nil {
		return "", err
	}
	if item == nil {
		return "", merr.New(merr.InvalidItem, "Item is not set")
	}
	if err := c.checkConfigured(); err != nil {
		return "", err
	}

	filter, update, err := c.saveOperation(model, item, setOnInsert)
	if err != nil {
		return "", err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return "", err
	}
	options := mongoopt.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(mongoopt.After)

	var doc bson.M
	err = coll.FindOneAndUpdate(ctx, filter, update, options).Decode(&doc)
	if err == mongodrv.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", merr.WrapInternal(err, "Save failed")
	}

	id := IDToString(doc["_id"])
	c.Logger.Trace("", "Saved in %s with id = %s", model.Table(), id)
	return id, nil
}

// MultiSave upserts a batch of items as one unordered bulk write of per-item
// save operations.
func (c *MongoDbQueryEngine) MultiSave(ctx context.Context, model IModel, items []bson.M, setOnInsert bson.M) error {
	if err := checkModel(model); err != nil {
		return err
	}
	if len(items) == 0 {
		return merr.New(merr.InvalidItem, "Items must be a non-empty list")
	}
	if err := c.checkConfigured(); err != nil {
		return err
	}

	operations := make([]mongodrv.WriteModel, 0, len(items))
	for _, item := range items {
		filter, update, err := c.saveOperation(model, item, setOnInsert)
		if err != nil {
			return err
		}
		operations = append(operations, mongodrv.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return err
	}
	if _, err = coll.BulkWrite(ctx, operations, mongoopt.BulkWrite().SetOrdered(false)); err != nil {
		return merr.WrapInternal(err, "MultiSave failed")
	}
	c.Logger.Trace("", "Saved %d in %s", len(items), model.Table())
	return nil
}

// saveOperation compiles the unique filter and the upsert update for one item.
func (c *MongoDbQueryEngine) saveOperation(model IModel, item bson.M, setOnInsert bson.M) (bson.M, bson.M, error) {
	coerced := CoerceForWrite(model, item)
	unique, err := UniqueFilter(model, coerced)
	if err != nil {
		return nil, nil, err
	}
	filter, err := CompileFilters(model, unique)
	if err != nil {
		return nil, nil, err
	}
	return filter, buildSaveUpdate(coerced, setOnInsert), nil
}

// buildSaveUpdate assembles the save update document. The set payload is the
// item stripped of _id and the lifecycle timestamps; setOnInsert extras apply
// only where the payload does not already set the field.
func buildSaveUpdate(coerced bson.M, setOnInsert bson.M) bson.M {
	body := bson.M{}
	for key, value := range coerced {
		if key == "_id" || key == "dateCreated" || key == "dateModified" {
			continue
		}
		body[key] = value
	}

	onInsert := bson.M{"dateCreated": time.Now()}
	for key, value := range setOnInsert {
		if key == "dateCreated" || key == "dateModified" {
			continue
		}
		if _, set := body[key]; !set {
			onInsert[key] = value
		}
	}

	update := bson.M{
		"$currentDate": bson.M{"dateModified": true},
		"$setOnInsert": onInsert,
	}
	if len(body) > 0 {
		update["$set"] = body
	}
	return update
}

// Insert inserts one item and returns the string form of its identifier.
func (c *MongoDbQueryEngine) Insert(ctx context.Context, model IModel, item bson.M) (string, error) {
	if err := checkModel(model); err != nil {
		return "", err
	}
	if item == nil {
		return "", merr.New(merr.InvalidItem, "Item is not set")
	}
	if err := c.checkConfigured(); err != nil {
		return "", err
	}

	coerced := CoerceForWrite(model, item)
	coerced["dateCreated"] = time.Now()

	coll, err := c.collection(ctx, model)
	if err != nil {
		return "", err
	}
	result, err := coll.InsertOne(ctx, coerced)
	if err != nil {
		return "", merr.WrapInternal(err, "Insert failed")
	}

	id := IDToString(result.InsertedID)
	c.Logger.Trace("", "Created in %s with id = %s", model.Table(), id)
	return id, nil
}

// MultiInsert inserts a batch unordered so that non-conflicting items persist.
// By default duplicate-key failures are dropped silently and the accepted
// items return, each carrying its assigned id; with failOnDuplicateErrors any
// failure surfaces. Non-duplicate errors always propagate.
func (c *MongoDbQueryEngine) MultiInsert(ctx context.Context, model IModel, items []bson.M, failOnDuplicateErrors bool) ([]bson.M, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, merr.New(merr.InvalidItem, "Items must be a non-empty list")
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	coerced := CoerceManyForWrite(model, items)
	docs := make([]interface{}, len(coerced))
	now := time.Now()
	for i, doc := range coerced {
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = primitive.NewObjectID()
		}
		doc["dateCreated"] = now
		docs[i] = doc
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	_, err = coll.InsertMany(ctx, docs, mongoopt.InsertMany().SetOrdered(false))

	rejected := map[int]bool{}
	if err != nil {
		bulkErr, ok := err.(mongodrv.BulkWriteException)
		if !ok || failOnDuplicateErrors {
			return nil, merr.WrapInternal(err, "MultiInsert failed")
		}
		for _, writeErr := range bulkErr.WriteErrors {
			if writeErr.Code != 11000 {
				return nil, merr.WrapInternal(err, "MultiInsert failed")
			}
			rejected[writeErr.Index] = true
		}
	}

	accepted := make([]bson.M, 0, len(coerced))
	for i, doc := range coerced {
		if rejected[i] {
			continue
		}
		accepted = append(accepted, RenameForClient(doc))
	}
	c.Logger.Trace("", "Created %d of %d in %s", len(accepted), len(items), model.Table())
	return accepted, nil
}

// Update applies values to the documents matching the filter and returns the
// count of modified documents. Plain fields wrap in $set; fields starting
// with $ pass through as native update operators.
func (c *MongoDbQueryEngine) Update(ctx context.Context, model IModel, values bson.M, filter interface{}, options *UpdateOptions) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, merr.New(merr.InvalidItem, "Values must be a non-empty object")
	}
	if err := c.checkConfigured(); err != nil {
		return 0, err
	}
	if options == nil {
		options = &UpdateOptions{}
	}

	update := buildUpdateDoc(model, values, options.SkipAutomaticSetModifiedData)
	compiled, err := CompileFilters(model, filter)
	if err != nil {
		return 0, err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return 0, err
	}

	var result *mongodrv.UpdateResult
	if options.UpdateOne {
		result, err = coll.UpdateOne(ctx, compiled, update)
	} else {
		result, err = coll.UpdateMany(ctx, compiled, update)
	}
	if err != nil {
		return 0, merr.WrapInternal(err, "Update failed")
	}

	c.Logger.Trace("", "Updated %d in %s", result.ModifiedCount, model.Table())
	return result.ModifiedCount, nil
}

// buildUpdateDoc assembles an update document from caller values: update
// operators pass through, plain fields wrap in $set, and dateModified joins
// the set payload unless skipped. The identifier itself is never updated.
func buildUpdateDoc(model IModel, values bson.M, skipModified bool) bson.M {
	coerced := CoerceForWrite(model, values)
	delete(coerced, "_id")

	update := bson.M{}
	set := bson.M{}
	for key, value := range coerced {
		if strings.HasPrefix(key, "$") {
			update[key] = value
			continue
		}
		set[key] = value
	}
	if !skipModified {
		set["dateModified"] = time.Now()
	}

	if len(set) > 0 {
		if existing, ok := update["$set"].(bson.M); ok {
			for key, value := range set {
				existing[key] = value
			}
		} else {
			update["$set"] = set
		}
	}
	return update
}

// MultiUpdate executes a batch of update operations as one unordered bulk
// write and returns a structured per-operation summary.
func (c *MongoDbQueryEngine) MultiUpdate(ctx context.Context, model IModel, operations []UpdateOperation) (*MultiUpdateResult, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if len(operations) == 0 {
		return nil, merr.New(merr.InvalidItem, "Operations must be a non-empty list")
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	writes := make([]mongodrv.WriteModel, 0, len(operations))
	for _, operation := range operations {
		filter, err := CompileFilters(model, operation.Filter)
		if err != nil {
			return nil, err
		}
		update := buildUpdateDoc(model, operation.Data, false)
		if operation.UpdateOne {
			writes = append(writes, mongodrv.NewUpdateOneModel().SetFilter(filter).SetUpdate(update))
		} else {
			writes = append(writes, mongodrv.NewUpdateManyModel().SetFilter(filter).SetUpdate(update))
		}
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	bulkResult, err := coll.BulkWrite(ctx, writes, mongoopt.BulkWrite().SetOrdered(false))

	result := &MultiUpdateResult{Success: err == nil}
	if bulkResult != nil {
		result.ModifiedCount = bulkResult.ModifiedCount
		result.MatchedCount = bulkResult.MatchedCount
		result.UpsertedCount = bulkResult.UpsertedCount
	}

	failures := map[int][]string{}
	if err != nil {
		bulkErr, ok := err.(mongodrv.BulkWriteException)
		if !ok {
			return nil, merr.WrapInternal(err, "MultiUpdate failed")
		}
		for _, writeErr := range bulkErr.WriteErrors {
			result.WriteErrors = append(result.WriteErrors, writeErr.Message)
			failures[writeErr.Index] = append(failures[writeErr.Index], writeErr.Message)
		}
	}

	result.Operations = make([]OperationResult, len(operations))
	for i := range operations {
		result.Operations[i] = OperationResult{
			Index:   i,
			Success: len(failures[i]) == 0,
			Errors:  failures[i],
		}
	}

	c.Logger.Trace("", "Bulk updated %d in %s", result.ModifiedCount, model.Table())
	return result, nil
}

// Remove deletes the single document identified by the item's unique key and
// reports whether exactly one was deleted.
func (c *MongoDbQueryEngine) Remove(ctx context.Context, model IModel, item bson.M) (bool, error) {
	if err := checkModel(model); err != nil {
		return false, err
	}
	if item == nil {
		return false, merr.New(merr.InvalidItem, "Item is not set")
	}
	if err := c.checkConfigured(); err != nil {
		return false, err
	}

	coerced := CoerceForWrite(model, item)
	unique, err := UniqueFilter(model, coerced)
	if err != nil {
		return false, err
	}
	filter, err := CompileFilters(model, unique)
	if err != nil {
		return false, err
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return false, err
	}
	result, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, merr.WrapInternal(err, "Remove failed")
	}
	c.Logger.Trace("", "Deleted %d from %s", result.DeletedCount, model.Table())
	return result.DeletedCount == 1, nil
}

// MultiRemove deletes all documents matching the filter and returns the count.
func (c *MongoDbQueryEngine) MultiRemove(ctx context.Context, model IModel, filter interface{}) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	if err := c.checkConfigured(); err != nil {
		return 0, err
	}

	compiled, err := CompileFilters(model, filter)
	if err != nil {
		return 0, err
	}
	coll, err := c.collection(ctx, model)
	if err != nil {
		return 0, err
	}
	result, err := coll.DeleteMany(ctx, compiled)
	if err != nil {
		return 0, merr.WrapInternal(err, "MultiRemove failed")
	}
	c.Logger.Trace("", "Deleted %d from %s", result.DeletedCount, model.Table())
	return result.DeletedCount, nil
}

// Increment atomically increments numeric fields on the document identified
// by the filter's unique key, optionally setting extra fields, and returns
// the updated document. Returns nil when no document matched; no upsert is
// performed.
func (c *MongoDbQueryEngine) Increment(ctx context.Context, model IModel, filter bson.M, incrementData bson.M, setData bson.M) (bson.M, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if err := validateIncrementData(incrementData); err != nil {
		return nil, err
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	coerced := CoerceForWrite(model, filter)
	unique, err := UniqueFilter(model, coerced)
	if err != nil {
		return nil, err
	}
	compiled, err := CompileFilters(model, unique)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$inc":         incrementData,
		"$currentDate": bson.M{"dateModified": true},
	}
	if len(setData) > 0 {
		update["$set"] = setData
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	options := mongoopt.FindOneAndUpdate().
		SetUpsert(false).
		SetReturnDocument(mongoopt.After)

	var doc bson.M
	err = coll.FindOneAndUpdate(ctx, compiled, update, options).Decode(&doc)
	if err == mongodrv.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, merr.WrapInternal(err, "Increment failed")
	}

	c.Logger.Trace("", "Incremented in %s", model.Table())
	return RenameForClient(doc), nil
}

func validateIncrementData(incrementData bson.M) error {
	if len(incrementData) == 0 {
		return merr.New(merr.InvalidIncrementData, "Increment data must be a non-empty object")
	}
	for key, value := range incrementData {
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return merr.Newf(merr.InvalidIncrementData, "Increment value for %s is not a number", key)
		}
	}
	return nil
}
