package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToDateMapperKeepsDates(t *testing.T) {
	date := time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, date, ToDateMapper(date))
	assert.Equal(t, date, ToDateMapper(&date))

	fromPrimitive, ok := ToDateMapper(primitive.NewDateTimeFromTime(date)).(time.Time)
	assert.True(t, ok)
	assert.Equal(t, date, fromPrimitive.UTC())
}

func TestToDateMapperParsesStrings(t *testing.T) {
	mapped, ok := ToDateMapper("2020-03-04T05:06:07.000Z").(time.Time)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC), mapped.UTC())
}

func TestToDateMapperInvalidBecomesNow(t *testing.T) {
	before := time.Now()
	mapped, ok := ToDateMapper("not a date").(time.Time)
	after := time.Now()

	assert.True(t, ok)
	assert.False(t, mapped.Before(before))
	assert.False(t, mapped.After(after))
}

func TestRegisterMapper(t *testing.T) {
	RegisterMapper("upper", func(value interface{}) interface{} {
		return "UPPER"
	})
	defer delete(mapperRegistry, "upper")

	fn, err := resolveMapper(&FieldSpec{Mapper: &MapperSpec{Name: "upper"}}, "code", nil)
	assert.NoError(t, err)
	assert.Equal(t, "UPPER", fn("x"))
}

func TestApplyMapperElementWise(t *testing.T) {
	double := func(value interface{}) interface{} {
		return value.(int) * 2
	}

	assert.Equal(t, 4, applyMapper(double, 2))
	assert.Equal(t, []interface{}{2, 4}, applyMapper(double, []interface{}{1, 2}))
	assert.Equal(t, 7, applyMapper(nil, 7))
}
