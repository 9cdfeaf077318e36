package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

func TestValidateIndex(t *testing.T) {
	ttl := int32(3600)
	valid := &IndexSpec{
		Name:               "code_unique",
		Key:                bson.D{bson.E{Key: "code", Value: 1}, bson.E{Key: "status", Value: -1}},
		Unique:             true,
		Sparse:             true,
		ExpireAfterSeconds: &ttl,
		PartialFilterExpression: bson.M{
			"status": bson.M{"$eq": "open"},
		},
	}
	assert.NoError(t, ValidateIndex(valid))
}

func TestValidateIndexRejections(t *testing.T) {
	negative := int32(-1)
	cases := []*IndexSpec{
		nil,
		{Key: bson.D{bson.E{Key: "code", Value: 1}}},
		{Name: "missing_key"},
		{Name: "bad_direction", Key: bson.D{bson.E{Key: "code", Value: 2}}},
		{Name: "bad_direction_kind", Key: bson.D{bson.E{Key: "code", Value: "asc"}}},
		{Name: "empty_field", Key: bson.D{bson.E{Key: "", Value: 1}}},
		{Name: "bad_ttl", Key: bson.D{bson.E{Key: "code", Value: 1}}, ExpireAfterSeconds: &negative},
	}
	for _, index := range cases {
		assert.Equal(t, merr.InvalidIndex, merr.CodeOf(ValidateIndex(index)))
	}
}

func TestIndexModelMapping(t *testing.T) {
	ttl := int32(60)
	index := &IndexSpec{
		Name:                    "session_ttl",
		Key:                     bson.D{bson.E{Key: "expiresAt", Value: 1}},
		Unique:                  true,
		Sparse:                  true,
		ExpireAfterSeconds:      &ttl,
		PartialFilterExpression: bson.M{"kind": "session"},
	}

	model := indexModel(index)
	assert.Equal(t, index.Key, model.Keys)
	assert.Equal(t, "session_ttl", *model.Options.Name)
	assert.True(t, *model.Options.Unique)
	assert.True(t, *model.Options.Sparse)
	assert.Equal(t, ttl, *model.Options.ExpireAfterSeconds)
	assert.Equal(t, bson.M{"kind": "session"}, model.Options.PartialFilterExpression)
}
