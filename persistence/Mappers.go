package persistence

import (
	"time"

	cconv "github.com/pip-services3-go/pip-services3-commons-go/convert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

// mapperRegistry holds the named value mappers available to field specs and
// filter constraints.
var mapperRegistry = map[string]MapperFunc{
	"toDate": ToDateMapper,
}

// RegisterMapper adds or replaces a named mapper in the registry.
func RegisterMapper(name string, fn MapperFunc) {
	mapperRegistry[name] = fn
}

// defaultFieldMappers assigns mappers by logical field name when neither the
// field spec nor the constraint selects one.
var defaultFieldMappers = map[string]string{
	"dateCreated":      "toDate",
	"dateCreatedFrom":  "toDate",
	"dateCreatedTo":    "toDate",
	"dateModified":     "toDate",
	"dateModifiedFrom": "toDate",
	"dateModifiedTo":   "toDate",
}

// ToDateMapper converts a value to a date. Dates are kept, parseable values
// convert, anything else becomes the current time.
func ToDateMapper(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v
	case *time.Time:
		return *v
	case primitive.DateTime:
		return v.Time()
	}
	if converted := cconv.DateTimeConverter.ToNullableDateTime(value); converted != nil {
		return *converted
	}
	return time.Now()
}

// resolveMapper selects the mapper for a constraint: the constraint's own
// mapper wins over the field spec's, which wins over the per-field default.
func resolveMapper(spec *FieldSpec, logical string, override *MapperSpec) (MapperFunc, error) {
	selected := override
	if selected == nil && spec != nil {
		selected = spec.Mapper
	}

	if selected != nil {
		if selected.Disabled {
			return nil, nil
		}
		if selected.Fn != nil {
			return selected.Fn, nil
		}
		if selected.Name != "" {
			fn, ok := mapperRegistry[selected.Name]
			if !ok {
				return nil, merr.Newf(merr.InvalidFilter, "Unknown mapper %s for field %s", selected.Name, logical)
			}
			return fn, nil
		}
	}

	if name, ok := defaultFieldMappers[logical]; ok {
		return mapperRegistry[name], nil
	}
	return nil, nil
}

// applyMapper runs a mapper over a value, element-wise for sequences.
func applyMapper(fn MapperFunc, value interface{}) interface{} {
	if fn == nil {
		return value
	}
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = fn(item)
		}
		return out
	case primitive.A:
		out := make(primitive.A, len(v))
		for i, item := range v {
			out[i] = fn(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = fn(item)
		}
		return out
	}
	return fn(value)
}
