package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToObjectIDLenientCoercion(t *testing.T) {
	id := oid(t, "5df0151dbc1d570011949d86")

	assert.Equal(t, id, ToObjectID("5df0151dbc1d570011949d86"))
	assert.Equal(t, id, ToObjectID(id))
	assert.Equal(t, "not-an-object-id", ToObjectID("not-an-object-id"))
	assert.Equal(t, 42, ToObjectID(42))
}

func TestCoerceForWriteMovesIDAndCoercesFields(t *testing.T) {
	model := &Model{
		TableName: "dummies",
		FieldSpecs: map[string]*FieldSpec{
			"refs": {IsID: true},
		},
	}
	item := bson.M{
		"id":   "5df0151dbc1d570011949d86",
		"refs": []string{"5df0151dbc1d570011949d87", "5df0151dbc1d570011949d88"},
		"name": "foo",
	}

	coerced := CoerceForWrite(model, item)
	assert.Equal(t, oid(t, "5df0151dbc1d570011949d86"), coerced["_id"])
	assert.NotContains(t, coerced, "id")
	assert.Equal(t, []interface{}{
		oid(t, "5df0151dbc1d570011949d87"),
		oid(t, "5df0151dbc1d570011949d88"),
	}, coerced["refs"])
	assert.Equal(t, "foo", coerced["name"])

	// The input item stays untouched.
	assert.Equal(t, "5df0151dbc1d570011949d86", item["id"])
}

func TestCoerceForWriteCustomID(t *testing.T) {
	model := &Model{TableName: "dummies", CustomID: true}

	coerced := CoerceForWrite(model, bson.M{"id": "order-123"})
	assert.Equal(t, "order-123", coerced["_id"])
}

func TestRenameForClientRoundTrip(t *testing.T) {
	model := &Model{TableName: "dummies"}
	item := bson.M{"id": "5df0151dbc1d570011949d86", "name": "foo"}

	restored := RenameForClient(CoerceForWrite(model, item))
	assert.Equal(t, item, restored)
}

func TestRenameManyForClient(t *testing.T) {
	docs := []bson.M{
		{"_id": oid(t, "5df0151dbc1d570011949d86"), "name": "a"},
		{"name": "b"},
	}

	renamed := RenameManyForClient(docs)
	assert.Equal(t, "5df0151dbc1d570011949d86", renamed[0]["id"])
	assert.NotContains(t, renamed[0], "_id")
	assert.Equal(t, bson.M{"name": "b"}, renamed[1])
}

func TestIDToString(t *testing.T) {
	assert.Equal(t, "5df0151dbc1d570011949d86", IDToString(oid(t, "5df0151dbc1d570011949d86")))
	assert.Equal(t, "order-123", IDToString("order-123"))
	assert.Equal(t, "42", IDToString(42))
}

func TestCoerceIDValuesPrimitiveArray(t *testing.T) {
	coerced := coerceIDValues(primitive.A{"5df0151dbc1d570011949d87", 7})
	assert.Equal(t, primitive.A{oid(t, "5df0151dbc1d570011949d87"), 7}, coerced)
}
