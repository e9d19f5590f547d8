package icetable

import (
	"encoding/json"
	"sort"
	"strings"

	"ratesetl/internal/records"
)

// FieldType is the small set of primitive and map types the engine stores.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeLong     FieldType = "long"
	TypeDouble   FieldType = "double"
	TypeBoolean  FieldType = "boolean"
	TypeRatesMap FieldType = "map<string,double>"
)

// Field is one named, typed table column.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema is an ordered field list. Order is stable across union operations:
// existing fields keep their position, new fields append.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Has reports whether the schema contains a field with the given name.
func (s Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// UnionByName returns the schema extended with every field of other that is
// not already present, and the names added. Existing fields are never dropped
// or retyped; a type mismatch on an existing field keeps the current type.
func (s Schema) UnionByName(other Schema) (Schema, []string) {
	out := Schema{Fields: append([]Field(nil), s.Fields...)}
	var added []string
	for _, f := range other.Fields {
		if !out.Has(f.Name) {
			out.Fields = append(out.Fields, f)
			added = append(added, f.Name)
		}
	}
	return out, added
}

// identityOrder fixes the position of the well-known bronze fields so that
// inferred schemas are deterministic run-to-run.
var identityOrder = []string{
	records.FieldExtractionID,
	records.FieldExtractionTimestamp,
	records.FieldSource,
	records.FieldSourceTier,
	records.FieldBaseCurrency,
	records.FieldRateDate,
	records.FieldRates,
}

// InferSchema derives a schema from a batch: well-known fields first in their
// canonical order, remaining fields sorted by name. A field that is null on
// every row falls back to string.
func InferSchema(rows []records.Record) Schema {
	types := map[string]FieldType{}
	seen := map[string]bool{}
	for _, rec := range rows {
		for k, v := range rec {
			seen[k] = true
			if _, done := types[k]; done {
				continue
			}
			if t, ok := inferType(v); ok {
				types[k] = t
			}
		}
	}

	var names []string
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)

	var s Schema
	appendField := func(name string) {
		t, ok := types[name]
		if !ok {
			t = TypeString
		}
		s.Fields = append(s.Fields, Field{Name: name, Type: t})
	}
	inIdentity := map[string]bool{}
	for _, name := range identityOrder {
		inIdentity[name] = true
		if seen[name] {
			appendField(name)
		}
	}
	for _, name := range names {
		if !inIdentity[name] {
			appendField(name)
		}
	}
	return s
}

func inferType(v any) (FieldType, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return TypeString, true
	case bool:
		return TypeBoolean, true
	case map[string]float64:
		return TypeRatesMap, true
	case float64:
		return TypeDouble, true
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return TypeDouble, true
		}
		return TypeLong, true
	default:
		return TypeString, true
	}
}
