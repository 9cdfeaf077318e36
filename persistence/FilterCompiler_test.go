package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

func oid(t *testing.T, hex string) primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(hex)
	assert.NoError(t, err)
	return id
}

func TestCompileFiltersEmptyInputs(t *testing.T) {
	model := &Model{TableName: "dummies"}

	filter, err := CompileFilters(model, nil)
	assert.NoError(t, err)
	assert.Equal(t, bson.M{}, filter)

	filter, err = CompileFilters(model, bson.M{})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{}, filter)

	filter, err = CompileFilters(model, []bson.M{})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{}, filter)
}

func TestCompileFiltersRejectsNonObjects(t *testing.T) {
	model := &Model{TableName: "dummies"}

	_, err := CompileFilters(model, 42)
	assert.Equal(t, merr.InvalidFilter, merr.CodeOf(err))

	_, err = CompileFilters(model, "name=foo")
	assert.Equal(t, merr.InvalidFilter, merr.CodeOf(err))

	_, err = CompileFilters(model, []interface{}{"not-a-group"})
	assert.Equal(t, merr.InvalidFilter, merr.CodeOf(err))
}

func TestCompileFiltersShorthandAndDefaults(t *testing.T) {
	model := &Model{TableName: "dummies"}

	filter, err := CompileFilters(model, bson.M{
		"name":   "foo",
		"count":  0,
		"flags":  []interface{}{"a", "b"},
		"absent": nil,
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{
		"name":   bson.M{"$eq": "foo"},
		"count":  bson.M{"$eq": 0},
		"flags":  bson.M{"$in": []interface{}{"a", "b"}},
		"absent": bson.M{"$eq": nil},
	}, filter)
}

func TestCompileFiltersNullValueConstraint(t *testing.T) {
	model := &Model{TableName: "dummies"}

	filter, err := CompileFilters(model, bson.M{
		"name": bson.M{"value": nil},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"name": bson.M{"$eq": nil}}, filter)
}

func TestCompileFiltersOrWithIDCoercion(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"otherId": {IsID: true},
		},
	}
	date := time.Date(2019, 12, 11, 0, 0, 0, 0, time.UTC)

	filter, err := CompileFilters(model, []bson.M{
		{
			"foo":     "bar",
			"id":      "5df0151dbc1d570011949d86",
			"otherId": []string{"5df0151dbc1d570011949d87", "5df0151dbc1d570011949d88"},
		},
		{
			"baz":  Constraint{Type: "equal", Value: []int{1, 2}},
			"date": date,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{
		"$or": []bson.M{
			{
				"foo": bson.M{"$eq": "bar"},
				"_id": bson.M{"$eq": oid(t, "5df0151dbc1d570011949d86")},
				"otherId": bson.M{"$in": []interface{}{
					oid(t, "5df0151dbc1d570011949d87"),
					oid(t, "5df0151dbc1d570011949d88"),
				}},
			},
			{
				"baz":  bson.M{"$eq": []int{1, 2}},
				"date": bson.M{"$eq": date},
			},
		},
	}, filter)
}

func TestCompileFiltersSingleElementSequence(t *testing.T) {
	model := &Model{TableName: "dummies"}
	group := bson.M{"name": "foo"}

	direct, err := CompileFilters(model, group)
	assert.NoError(t, err)
	wrapped, err := CompileFilters(model, []bson.M{group})
	assert.NoError(t, err)
	assert.Equal(t, direct, wrapped)
	assert.NotContains(t, wrapped, "$or")
}

func TestCompileFiltersRangeOnSamePhysicalField(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"dateFrom": {Field: "date", Type: "greaterOrEqual", Mapper: &MapperSpec{Name: "toDate"}},
			"dateTo":   {Field: "date", Type: "lesserOrEqual", Mapper: &MapperSpec{Name: "toDate"}},
		},
	}

	filter, err := CompileFilters(model, bson.M{
		"dateFrom": "2019-12-11T00:00:00.000Z",
		"dateTo":   "2019-12-11T23:59:59.999Z",
	})
	assert.NoError(t, err)

	fragment, ok := filter["date"].(bson.M)
	assert.True(t, ok)
	assert.Len(t, filter, 1)
	assert.Len(t, fragment, 2)

	from, ok := fragment["$gte"].(time.Time)
	assert.True(t, ok)
	to, ok := fragment["$lte"].(time.Time)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2019, 12, 11, 0, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, time.Date(2019, 12, 11, 23, 59, 59, 999000000, time.UTC), to.UTC())
}

func TestCompileFiltersTypePassthroughAndUnknown(t *testing.T) {
	model := &Model{TableName: "dummies"}

	filter, err := CompileFilters(model, bson.M{
		"size": Constraint{Type: "$bitsAllSet", Value: 35},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"size": bson.M{"$bitsAllSet": 35}}, filter)

	_, err = CompileFilters(model, bson.M{
		"size": Constraint{Type: "bitsAllSet", Value: 35},
	})
	assert.Equal(t, merr.InvalidFilterType, merr.CodeOf(err))
}

func TestCompileFiltersRawPassthrough(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"ref": {IsID: true},
		},
	}
	raw := bson.M{"$gt": 5, "$mod": []int{2, 0}}

	filter, err := CompileFilters(model, bson.M{
		"ref": bson.M{"value": raw, "raw": true},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"ref": raw}, filter)
}

func TestCompileFiltersSearchAndText(t *testing.T) {
	model := &Model{TableName: "dummies"}

	filter, err := CompileFilters(model, bson.M{
		"name": Constraint{Type: "search", Value: "foo"},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{
		"name": bson.M{"$regex": primitive.Regex{Pattern: "foo", Options: "i"}},
	}, filter)

	filter, err = CompileFilters(model, bson.M{
		"name": Constraint{Type: "text", Value: "foo bar"},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{
		"$text": bson.M{
			"$search":             "foo bar",
			"$caseSensitive":      false,
			"$diacriticSensitive": false,
		},
	}, filter)
}

func TestCompileFiltersMapperSelection(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"code": {Mapper: &MapperSpec{Fn: func(value interface{}) interface{} {
				return "mapped"
			}}},
			"plain": {Mapper: &MapperSpec{Disabled: true}},
		},
	}

	filter, err := CompileFilters(model, bson.M{"code": "raw"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"code": bson.M{"$eq": "mapped"}}, filter)

	filter, err = CompileFilters(model, bson.M{"plain": "raw"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"plain": bson.M{"$eq": "raw"}}, filter)

	_, err = CompileFilters(model, bson.M{
		"code": bson.M{"value": "x", "mapper": "unknownMapper"},
	})
	assert.Equal(t, merr.InvalidFilter, merr.CodeOf(err))

	_, err = CompileFilters(model, bson.M{
		"code": bson.M{"value": "x", "mapper": 42},
	})
	assert.Equal(t, merr.InvalidFilter, merr.CodeOf(err))
}

func TestCompileFiltersDefaultDateMappers(t *testing.T) {
	model := &Model{TableName: "dummies"}

	filter, err := CompileFilters(model, bson.M{
		"dateCreatedFrom": bson.M{"value": "2020-01-02T03:04:05.000Z", "type": "greaterOrEqual"},
	})
	assert.NoError(t, err)

	fragment := filter["dateCreatedFrom"].(bson.M)
	mapped, ok := fragment["$gte"].(time.Time)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), mapped.UTC())

	// A disabled mapper keeps the raw string.
	disabled := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"dateCreatedFrom": {Mapper: &MapperSpec{Disabled: true}},
		},
	}
	filter, err = CompileFilters(disabled, bson.M{
		"dateCreatedFrom": bson.M{"value": "2020-01-02T03:04:05.000Z", "type": "greaterOrEqual"},
	})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"dateCreatedFrom": bson.M{"$gte": "2020-01-02T03:04:05.000Z"}}, filter)
}

func TestCompileFiltersIdempotent(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"otherId": {IsID: true},
		},
	}
	filters := bson.M{
		"foo": "bar",
		"id":  "5df0151dbc1d570011949d86",
	}

	first, err := CompileFilters(model, filters)
	assert.NoError(t, err)
	second, err := CompileFilters(model, filters)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileFiltersCustomIDScheme(t *testing.T) {
	model := &Model{TableName: "dummies", CustomID: true}

	filter, err := CompileFilters(model, bson.M{"id": "order-123"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"_id": bson.M{"$eq": "order-123"}}, filter)
}
