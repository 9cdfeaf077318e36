package persistence

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

/*
Constraint is the typed form of a filter condition. Callers may pass it
directly, or use the shorthand forms the compiler normalizes on entry:
a bare value, a sequence, or a mapping with at least a "value" key and
optional "type", "mapper" and "raw" keys.
*/
type Constraint struct {
	Value  interface{}
	Type   string
	Mapper *MapperSpec
	// Raw writes the value into the output verbatim: no type resolution,
	// no mapper, no identifier coercion.
	Raw bool
}

// filterOperators maps the declarative type vocabulary to native operators.
// Types starting with $ bypass the table and pass through unchanged.
var filterOperators = map[string]string{
	"equal":          "$eq",
	"notEqual":       "$ne",
	"greater":        "$gt",
	"greaterOrEqual": "$gte",
	"lesser":         "$lt",
	"lesserOrEqual":  "$lte",
	"in":             "$in",
	"notIn":          "$nin",
	"all":            "$all",
	"exists":         "$exists",
	"elemMatch":      "$elemMatch",
	"nearSphere":     "$nearSphere",
	"geoIntersects":  "$geoIntersects",
	"search":         "$regex",
	"text":           "$text",
}

/*
CompileFilters compiles a declarative filter into the native filter document.

The input is either a filter group — a mapping of logical field name to
constraint, interpreted conjunctively — or a sequence of groups interpreted
as a disjunction. A nil or empty input compiles to the empty filter; a
sequence of two or more groups wraps the compiled groups in $or, while a
single-element sequence is indistinguishable from compiling its sole group.
*/
func CompileFilters(model IModel, filters interface{}) (bson.M, error) {
	if filters == nil {
		return bson.M{}, nil
	}

	switch v := filters.(type) {
	case bson.M:
		return compileGroup(model, v)
	case map[string]interface{}:
		return compileGroup(model, v)
	case []bson.M:
		groups := make([]map[string]interface{}, len(v))
		for i, group := range v {
			groups[i] = group
		}
		return compileGroups(model, groups)
	case []map[string]interface{}:
		return compileGroups(model, v)
	case []interface{}:
		groups := make([]map[string]interface{}, len(v))
		for i, raw := range v {
			group, ok := asStringMap(raw)
			if !ok {
				return nil, merr.New(merr.InvalidFilter, "Invalid filters, groups must be objects")
			}
			groups[i] = group
		}
		return compileGroups(model, groups)
	}
	return nil, merr.New(merr.InvalidFilter, "Invalid filters, must be an object or an array of objects")
}

func compileGroups(model IModel, groups []map[string]interface{}) (bson.M, error) {
	if len(groups) == 0 {
		return bson.M{}, nil
	}
	if len(groups) == 1 {
		return compileGroup(model, groups[0])
	}

	compiled := make([]bson.M, len(groups))
	for i, group := range groups {
		out, err := compileGroup(model, group)
		if err != nil {
			return nil, err
		}
		compiled[i] = out
	}
	return bson.M{"$or": compiled}, nil
}

func compileGroup(model IModel, group map[string]interface{}) (bson.M, error) {
	out := bson.M{}
	for logical, raw := range group {
		if err := compileEntry(model, out, logical, raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func compileEntry(model IModel, out bson.M, logical string, raw interface{}) error {
	spec := fieldSpec(model, logical)
	key := physicalField(model, logical)

	// The public id addresses the native identifier unless aliased away.
	isID := spec != nil && spec.IsID
	if logical == "id" || logical == "_id" {
		if spec == nil || spec.Field == "" {
			key = "_id"
		}
		isID = isID || !model.HasCustomID()
	}

	cons, err := normalizeConstraint(raw)
	if err != nil {
		return err
	}

	if cons.Raw {
		out[key] = cons.Value
		return nil
	}

	mapper, err := resolveMapper(spec, logical, cons.Mapper)
	if err != nil {
		return err
	}
	value := applyMapper(mapper, cons.Value)

	filterType := cons.Type
	if filterType == "" && spec != nil {
		filterType = spec.Type
	}
	if filterType == "" {
		if isSequence(value) {
			filterType = "in"
		} else {
			filterType = "equal"
		}
	}

	operator := filterType
	if !strings.HasPrefix(filterType, "$") {
		var ok bool
		operator, ok = filterOperators[filterType]
		if !ok {
			return merr.Newf(merr.InvalidFilterType, "Unknown filter type %s for field %s", filterType, logical)
		}
	}

	switch filterType {
	case "text":
		out["$text"] = bson.M{
			"$search":             value,
			"$caseSensitive":      false,
			"$diacriticSensitive": false,
		}
		return nil
	case "search":
		value = primitive.Regex{Pattern: stringOf(value), Options: "i"}
	default:
		if isID {
			value = coerceIDValues(value)
		}
	}

	mergeFragment(out, key, bson.M{operator: value})
	return nil
}

// mergeFragment writes a fragment under a physical key, merging by union of
// operator keys when the key already carries a fragment. This lets several
// logical fields aliased to the same physical field compose a range.
func mergeFragment(out bson.M, key string, fragment bson.M) {
	if existing, ok := out[key].(bson.M); ok {
		for op, value := range fragment {
			existing[op] = value
		}
		return
	}
	out[key] = fragment
}

// normalizeConstraint folds the polymorphic shorthand forms into Constraint.
// A value that is not a mapping, is a sequence, or lacks a "value" key is
// treated as the constraint value itself; a literal nil value is kept.
func normalizeConstraint(raw interface{}) (Constraint, error) {
	switch v := raw.(type) {
	case Constraint:
		return v, nil
	case *Constraint:
		return *v, nil
	}

	mapping, ok := asStringMap(raw)
	if !ok {
		return Constraint{Value: raw}, nil
	}
	if _, hasValue := mapping["value"]; !hasValue {
		return Constraint{Value: raw}, nil
	}

	cons := Constraint{Value: mapping["value"]}
	if t, ok := mapping["type"].(string); ok {
		cons.Type = t
	}
	if r, ok := mapping["raw"].(bool); ok {
		cons.Raw = r
	}
	mapper, err := parseMapperEntry(mapping["mapper"])
	if err != nil {
		return cons, err
	}
	cons.Mapper = mapper
	return cons, nil
}

// parseMapperEntry accepts a registry name, a mapper function, or false to
// disable the default mapper. Everything else is rejected at compile time.
func parseMapperEntry(raw interface{}) (*MapperSpec, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *MapperSpec:
		return v, nil
	case MapperSpec:
		return &v, nil
	case bool:
		if !v {
			return &MapperSpec{Disabled: true}, nil
		}
	case string:
		return &MapperSpec{Name: v}, nil
	case MapperFunc:
		return &MapperSpec{Fn: v}, nil
	case func(interface{}) interface{}:
		return &MapperSpec{Fn: v}, nil
	}
	return nil, merr.New(merr.InvalidFilter, "Invalid mapper, must be a name, a function or false")
}

// asStringMap views a value as a string-keyed map without copying.
func asStringMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case bson.M:
		return v, true
	case map[string]interface{}:
		return v, true
	}
	return nil, false
}

func isSequence(value interface{}) bool {
	if value == nil {
		return false
	}
	if _, isString := value.(string); isString {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func stringOf(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
