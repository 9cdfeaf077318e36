package persistence

import (
	"context"

	cconf "github.com/pip-services3-go/pip-services3-commons-go/config"
	crefer "github.com/pip-services3-go/pip-services3-commons-go/refer"
	clog "github.com/pip-services3-go/pip-services3-components-go/log"
	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	mongoopt "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pip-services3-go/pip-services3-mongoquery-go/connect"
	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

// QueryParams carries the optional inputs of Get, GetCursor and GetPaged.
type QueryParams struct {
	// Filters is a filter group or a sequence of groups (disjunction).
	Filters interface{}
	// Order maps logical fields to "asc"/"desc"; bson.D keeps caller order.
	Order interface{}
	// Limit is the page size; the configured limit applies when zero.
	Limit int64
	// Page is the 1-based page number; defaults to 1.
	Page int64
	// Fields builds an inclusion projection and wins over ExcludeFields.
	Fields []string
	// ExcludeFields builds an exclusion projection.
	ExcludeFields []string
}

// Totals describes the count of documents matching a recorded or given query.
type Totals struct {
	Total    int64
	PageSize int64
	Pages    int64
	Page     int64
}

// TotalsOptions tunes GetTotals.
type TotalsOptions struct {
	// Limit caps counting.
	Limit int64
}

// PagedTotals summarizes a completed paged iteration.
type PagedTotals struct {
	Total     int64
	BatchSize int64
	Pages     int64
}

// PageCallback receives each non-empty page during GetPaged.
type PageCallback func(items []bson.M, page int64, batchSize int64) error

/*
MongoDbQueryEngine is the public operation set of the module: a typed,
model-driven façade over MongoDB collections.

The engine is configured once with connection settings and then serves any
number of models; collections resolve through the shared connection registry
so endpoints are connected at most once per process.

Example:

	engine := persistence.NewMongoDbQueryEngine()
	err := engine.Configure(cconf.NewConfigParamsFromTuples(
		"connection.host", "localhost",
		"connection.database", "orders",
	))

	items, err := engine.Get(context.Background(), model, &persistence.QueryParams{
		Filters: bson.M{"status": "active"},
		Order:   map[string]string{"dateCreated": "desc"},
		Limit:   20,
	})
*/
type MongoDbQueryEngine struct {
	// The validated connection settings.
	Settings *connect.MongoDbSettings
	// The connection registry resolving collection handles.
	Registry *connect.MongoDbConnectionRegistry
	// The logger.
	Logger *clog.CompositeLogger
}

// NewMongoDbQueryEngine creates an unconfigured engine bound to the shared
// connection registry.
func NewMongoDbQueryEngine() *MongoDbQueryEngine {
	return &MongoDbQueryEngine{
		Registry: connect.SharedRegistry(),
		Logger:   clog.NewCompositeLogger(),
	}
}

// NewMongoDbQueryEngineFromValue creates a configured engine from an
// arbitrary configuration value.
func NewMongoDbQueryEngineFromValue(config interface{}) (*MongoDbQueryEngine, error) {
	settings, err := connect.NewMongoDbSettingsFromValue(config)
	if err != nil {
		return nil, err
	}
	engine := NewMongoDbQueryEngine()
	engine.Settings = settings
	return engine, nil
}

// Configure configures the engine by passing configuration parameters.
func (c *MongoDbQueryEngine) Configure(config *cconf.ConfigParams) error {
	settings, err := connect.NewMongoDbSettingsFromConfig(config)
	if err != nil {
		return err
	}
	c.Settings = settings
	return nil
}

// SetReferences sets references to dependent components.
func (c *MongoDbQueryEngine) SetReferences(references crefer.IReferences) {
	c.Logger.SetReferences(references)
	c.Registry.SetReferences(references)
}

// Close drains the connections held by the engine's registry. Intended for a
// process-end hook.
func (c *MongoDbQueryEngine) Close(ctx context.Context) error {
	return c.Registry.Close(ctx)
}

func checkModel(model IModel) error {
	if model == nil {
		return merr.New(merr.InvalidModel, "Model is not set")
	}
	if model.Table() == "" {
		return merr.New(merr.InvalidModel, "Model table is not set")
	}
	return nil
}

func (c *MongoDbQueryEngine) checkConfigured() error {
	if c.Settings == nil {
		return merr.New(merr.InvalidConfig, "Engine is not configured")
	}
	return nil
}

func (c *MongoDbQueryEngine) collection(ctx context.Context, model IModel) (*mongodrv.Collection, error) {
	return c.Registry.Collection(ctx, c.Settings, model.Database(), model.Table())
}

func (c *MongoDbQueryEngine) defaultLimit() int64 {
	if c.Settings != nil && c.Settings.Limit > 0 {
		return c.Settings.Limit
	}
	return connect.DefaultLimit
}

func buildProjection(params *QueryParams) bson.M {
	projKey := func(field string) string {
		if field == "id" {
			return "_id"
		}
		return field
	}
	if len(params.Fields) > 0 {
		projection := bson.M{}
		for _, field := range params.Fields {
			projection[projKey(field)] = 1
		}
		return projection
	}
	if len(params.ExcludeFields) > 0 {
		projection := bson.M{}
		for _, field := range params.ExcludeFields {
			projection[projKey(field)] = 0
		}
		return projection
	}
	return nil
}

func (c *MongoDbQueryEngine) find(ctx context.Context, model IModel, params *QueryParams) (*mongodrv.Cursor, bson.M, int64, int64, bson.D, error) {
	filter, err := CompileFilters(model, params.Filters)
	if err != nil {
		return nil, nil, 0, 0, nil, err
	}
	order := CompileSort(params.Order)

	limit := params.Limit
	if limit <= 0 {
		limit = c.defaultLimit()
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}

	options := mongoopt.Find().
		SetLimit(limit).
		SetSkip(limit * (page - 1))
	if order != nil {
		options.SetSort(order)
	}
	if projection := buildProjection(params); projection != nil {
		options.SetProjection(projection)
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, nil, 0, 0, nil, err
	}
	cursor, err := coll.Find(ctx, filter, options)
	if err != nil {
		return nil, nil, 0, 0, nil, merr.WrapInternal(err, "Find failed")
	}
	return cursor, filter, limit, page, order, nil
}

// Get retrieves a page of documents matching the params. Returned documents
// expose their identifier as a string id; _id never reaches the caller. The
// query context is recorded on the model for a later GetTotals.
func (c *MongoDbQueryEngine) Get(ctx context.Context, model IModel, params *QueryParams) ([]bson.M, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if params == nil {
		params = &QueryParams{}
	}

	cursor, filter, limit, page, order, err := c.find(ctx, model, params)
	if err != nil {
		return nil, err
	}
	items := make([]bson.M, 0)
	if err = cursor.All(ctx, &items); err != nil {
		return nil, merr.WrapInternal(err, "Cursor drain failed")
	}

	model.State().record(filter, limit, page, order, len(items) > 0)
	c.Logger.Trace("", "Retrieved %d from %s", len(items), model.Table())
	return RenameManyForClient(items), nil
}

// GetCursor runs the same query as Get but hands the driver cursor to the
// caller without materialization. Documents read from it carry the stored
// shape, including _id; the caller owns closing the cursor.
func (c *MongoDbQueryEngine) GetCursor(ctx context.Context, model IModel, params *QueryParams) (*mongodrv.Cursor, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if params == nil {
		params = &QueryParams{}
	}
	cursor, _, _, _, _, err := c.find(ctx, model, params)
	return cursor, err
}

// Distinct returns the distinct values of a key among documents matching the
// filters.
func (c *MongoDbQueryEngine) Distinct(ctx context.Context, model IModel, key string, filters interface{}) ([]interface{}, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, merr.New(merr.InvalidDistinctKey, "Distinct key is required")
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	filter, err := CompileFilters(model, filters)
	if err != nil {
		return nil, err
	}
	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	values, err := coll.Distinct(ctx, key, filter)
	if err != nil {
		return nil, merr.WrapInternal(err, "Distinct failed")
	}
	c.Logger.Trace("", "Found %d distinct %s in %s", len(values), key, model.Table())
	return values, nil
}

// GetTotals counts documents matching the given filters, or the filters of
// the last recorded Get when none are given. Without filters and without a
// prior Get it returns zeros rather than erroring.
func (c *MongoDbQueryEngine) GetTotals(ctx context.Context, model IModel, filters interface{}, options *TotalsOptions) (*Totals, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	state := model.State()
	var filter bson.M
	pageSize := c.defaultLimit()
	var page int64 = 1

	if filters == nil {
		if !state.recorded {
			return &Totals{Total: 0, Pages: 0}, nil
		}
		filter = state.filters
		pageSize = state.limit
		page = state.page
	} else {
		var err error
		filter, err = CompileFilters(model, filters)
		if err != nil {
			return nil, err
		}
	}

	countOptions := mongoopt.Count()
	if options != nil && options.Limit > 0 {
		countOptions.SetLimit(options.Limit)
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	total, err := coll.CountDocuments(ctx, filter, countOptions)
	if err != nil {
		return nil, merr.WrapInternal(err, "Count failed")
	}

	pages := (total + pageSize - 1) / pageSize
	return &Totals{Total: total, PageSize: pageSize, Pages: pages, Page: page}, nil
}

// GetPaged drives a lazy sequence of pages over the documents matching the
// params, invoking the callback for each non-empty page. The batch size is
// params.Limit or the configured limit. Callback errors abort the iteration
// and propagate unchanged.
func (c *MongoDbQueryEngine) GetPaged(ctx context.Context, model IModel, params *QueryParams, callback PageCallback) (*PagedTotals, error) {
	if err := checkModel(model); err != nil {
		return nil, err
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if params == nil {
		params = &QueryParams{}
	}

	batch := params.Limit
	if batch <= 0 {
		batch = c.defaultLimit()
	}

	filter, err := CompileFilters(model, params.Filters)
	if err != nil {
		return nil, err
	}
	order := CompileSort(params.Order)

	options := mongoopt.Find().SetBatchSize(int32(batch))
	if order != nil {
		options.SetSort(order)
	}

	coll, err := c.collection(ctx, model)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, filter, options)
	if err != nil {
		return nil, merr.WrapInternal(err, "Find failed")
	}
	defer cursor.Close(ctx)

	totals := &PagedTotals{BatchSize: batch}
	items := make([]bson.M, 0, batch)
	flush := func() error {
		totals.Pages++
		totals.Total += int64(len(items))
		if err := callback(items, totals.Pages, batch); err != nil {
			return err
		}
		items = make([]bson.M, 0, batch)
		return nil
	}

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, merr.WrapInternal(err, "Cursor decode failed")
		}
		items = append(items, RenameForClient(doc))
		if int64(len(items)) == batch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, merr.WrapInternal(err, "Cursor drain failed")
	}
	if len(items) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	c.Logger.Trace("", "Paged %d from %s in %d pages", totals.Total, model.Table(), totals.Pages)
	return totals, nil
}
