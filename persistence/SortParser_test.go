package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCompileSortDirectionsAndTiebreaker(t *testing.T) {
	sort := CompileSort(map[string]string{"name": "asc"})
	assert.Equal(t, bson.D{
		bson.E{Key: "name", Value: 1},
		bson.E{Key: "_id", Value: -1},
	}, sort)

	sort = CompileSort(bson.D{
		bson.E{Key: "status", Value: "desc"},
		bson.E{Key: "name", Value: "asc"},
	})
	assert.Equal(t, bson.D{
		bson.E{Key: "status", Value: -1},
		bson.E{Key: "name", Value: 1},
		bson.E{Key: "_id", Value: -1},
	}, sort)
}

func TestCompileSortRenamesID(t *testing.T) {
	sort := CompileSort(bson.D{
		bson.E{Key: "id", Value: "asc"},
		bson.E{Key: "x", Value: "desc"},
	})
	assert.Equal(t, bson.D{
		bson.E{Key: "_id", Value: 1},
		bson.E{Key: "x", Value: -1},
	}, sort)
}

func TestCompileSortDropsInvalidEntries(t *testing.T) {
	sort := CompileSort(map[string]string{
		"name":   "asc",
		"broken": "upward",
	})
	assert.Equal(t, bson.D{
		bson.E{Key: "name", Value: 1},
		bson.E{Key: "_id", Value: -1},
	}, sort)
}

func TestCompileSortEmptyResults(t *testing.T) {
	assert.Nil(t, CompileSort(nil))
	assert.Nil(t, CompileSort(map[string]string{}))
	assert.Nil(t, CompileSort(map[string]string{"name": "sideways"}))
	assert.Nil(t, CompileSort("name"))
}
