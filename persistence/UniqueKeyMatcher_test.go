package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

func TestUniqueFilterPrefersID(t *testing.T) {
	model := &Model{TableName: "dummies", UniqueKeys: [][]string{{"key"}}}
	id := oid(t, "5df0151dbc1d570011949d86")

	filter, err := UniqueFilter(model, bson.M{"_id": id, "key": "k1"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"_id": id}, filter)
}

func TestUniqueFilterFirstSatisfiedCandidate(t *testing.T) {
	model := &Model{
		TableName:  "dummies",
		UniqueKeys: [][]string{{"email"}, {"firstname", "lastname"}},
	}

	filter, err := UniqueFilter(model, bson.M{"firstname": "Ada", "lastname": "Lovelace"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"firstname": "Ada", "lastname": "Lovelace"}, filter)

	filter, err = UniqueFilter(model, bson.M{"email": "ada@example.com", "firstname": "Ada"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"email": "ada@example.com"}, filter)
}

func TestUniqueFilterDerivedFromIndexSpecs(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		IndexSpecs: []*IndexSpec{
			{Name: "status", Key: bson.D{bson.E{Key: "status", Value: 1}}},
			{Name: "code_unique", Key: bson.D{bson.E{Key: "code", Value: 1}}, Unique: true},
		},
	}

	filter, err := UniqueFilter(model, bson.M{"code": "c-7", "status": "open"})
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"code": "c-7"}, filter)
}

func TestUniqueFilterPartialCompositeFails(t *testing.T) {
	model := &Model{TableName: "dummies", UniqueKeys: [][]string{{"a", "b"}}}

	_, err := UniqueFilter(model, bson.M{"a": 1})
	assert.Equal(t, merr.EmptyUniqueIndexes, merr.CodeOf(err))
}

func TestUniqueFilterNoDeclaredIndexes(t *testing.T) {
	model := &Model{TableName: "dummies"}

	_, err := UniqueFilter(model, bson.M{"a": 1})
	assert.Equal(t, merr.ModelEmptyUniqueIndexes, merr.CodeOf(err))
}
