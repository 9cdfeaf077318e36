package persistence

import (
	"go.mongodb.org/mongo-driver/bson"
)

// MapperFunc transforms a constraint value before it enters the compiled
// filter. Applied element-wise to sequence values.
type MapperFunc func(interface{}) interface{}

// MapperSpec selects the value mapper for a field. A nil spec means the
// default mapper for the logical field name applies.
type MapperSpec struct {
	// Named mapper resolved from the built-in registry.
	Name string
	// Caller-supplied mapper. Takes precedence over Name.
	Fn MapperFunc
	// Disabled suppresses the default mapper without substituting one.
	Disabled bool
}

// FieldSpec describes a logical model field.
type FieldSpec struct {
	// Physical (stored) name when it differs from the logical one.
	Field string
	// Default filter type tag for the field.
	Type string
	// IsID marks values for coercion to native object identifiers.
	IsID bool
	// Mapper overrides the default value mapper.
	Mapper *MapperSpec
}

// IndexSpec describes a collection index.
type IndexSpec struct {
	Name                    string
	Key                     bson.D
	Unique                  bool
	ExpireAfterSeconds      *int32
	PartialFilterExpression bson.M
	Sparse                  bool
}

/*
IModel is the read-only model descriptor contract consumed by the query
engine. It is provided by the caller's domain layer; the engine never
mutates it beyond the query state it owns.
*/
type IModel interface {
	// Table returns the collection name.
	Table() string
	// Database optionally overrides the configured database.
	Database() string
	// Fields maps logical field names to field specs.
	Fields() map[string]*FieldSpec
	// Indexes returns the declared index specifications.
	Indexes() []*IndexSpec
	// UniqueIndexes returns ordered unique-key field lists.
	UniqueIndexes() [][]string
	// HasCustomID suppresses object-identifier coercion of the id field.
	HasCustomID() bool
	// State returns the per-model query state owned by the engine.
	State() *ModelState
}

/*
ModelState is the per-model query context recorded by Get so that GetTotals
needs no extra arguments. It is deliberately co-located with the model
instance and is not safe for concurrent use; callers sharing a model across
parallel workers must serialize Get and GetTotals themselves.
*/
type ModelState struct {
	recorded   bool
	filters    bson.M
	limit      int64
	page       int64
	order      bson.D
	hasResults bool
}

// LastQueryHasResults reports whether the last recorded Get returned items.
func (c *ModelState) LastQueryHasResults() bool {
	return c.hasResults
}

func (c *ModelState) record(filters bson.M, limit int64, page int64, order bson.D, hasResults bool) {
	c.recorded = true
	c.filters = filters
	c.limit = limit
	c.page = page
	c.order = order
	c.hasResults = hasResults
}

/*
Model is a ready-made IModel implementation for callers that declare their
descriptors as plain values rather than dedicated types.

Example:

	model := &persistence.Model{
		TableName: "profiles",
		FieldSpecs: map[string]*persistence.FieldSpec{
			"clientId": {IsID: true},
			"dateFrom": {Field: "date", Type: "greaterOrEqual"},
		},
		UniqueKeys: [][]string{{"email"}},
	}
*/
type Model struct {
	TableName    string
	DatabaseName string
	FieldSpecs   map[string]*FieldSpec
	IndexSpecs   []*IndexSpec
	UniqueKeys   [][]string
	CustomID     bool

	state ModelState
}

func (c *Model) Table() string               { return c.TableName }
func (c *Model) Database() string            { return c.DatabaseName }
func (c *Model) Fields() map[string]*FieldSpec { return c.FieldSpecs }
func (c *Model) Indexes() []*IndexSpec       { return c.IndexSpecs }
func (c *Model) UniqueIndexes() [][]string   { return c.UniqueKeys }
func (c *Model) HasCustomID() bool           { return c.CustomID }
func (c *Model) State() *ModelState          { return &c.state }

// fieldSpec looks up the spec for a logical name, returning nil when absent.
func fieldSpec(model IModel, logical string) *FieldSpec {
	fields := model.Fields()
	if fields == nil {
		return nil
	}
	return fields[logical]
}

// physicalField resolves the stored name for a logical field.
func physicalField(model IModel, logical string) string {
	if spec := fieldSpec(model, logical); spec != nil && spec.Field != "" {
		return spec.Field
	}
	return logical
}
