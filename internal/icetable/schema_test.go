package icetable

import (
	"encoding/json"
	"reflect"
	"testing"

	"ratesetl/internal/records"
)

func TestInferSchemaOrdering(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{
			records.FieldRateDate:     "2024-01-02",
			records.FieldSource:       "frankfurter",
			records.FieldBaseCurrency: "USD",
			records.FieldRates:        map[string]float64{"EUR": 0.92},
			"zebra":                   json.Number("1"),
			"amount":                  json.Number("1.5"),
		},
	}
	s := InferSchema(rows)

	want := []string{
		records.FieldSource,
		records.FieldBaseCurrency,
		records.FieldRateDate,
		records.FieldRates,
		"amount",
		"zebra",
	}
	if got := s.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("field order = %v, want %v", got, want)
	}
}

func TestInferSchemaTypes(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{
			"s":     "x",
			"b":     true,
			"i":     json.Number("42"),
			"f":     json.Number("4.2"),
			"e":     json.Number("1e3"),
			"n":     nil,
			"rates": map[string]float64{},
		},
	}
	s := InferSchema(rows)

	want := map[string]FieldType{
		"s":     TypeString,
		"b":     TypeBoolean,
		"i":     TypeLong,
		"f":     TypeDouble,
		"e":     TypeDouble,
		"n":     TypeString, // all-null falls back to string
		"rates": TypeRatesMap,
	}
	for name, wt := range want {
		found := false
		for _, f := range s.Fields {
			if f.Name == name {
				found = true
				if f.Type != wt {
					t.Errorf("field %q type = %s, want %s", name, f.Type, wt)
				}
			}
		}
		if !found {
			t.Errorf("field %q missing from inferred schema", name)
		}
	}
}

func TestInferSchemaNullResolvedByLaterRow(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{"v": nil},
		{"v": json.Number("7")},
	}
	s := InferSchema(rows)
	if len(s.Fields) != 1 || s.Fields[0].Type != TypeLong {
		t.Errorf("schema = %+v, want single long field", s.Fields)
	}
}

func TestUnionByName(t *testing.T) {
	t.Parallel()

	base := Schema{Fields: []Field{
		{Name: "a", Type: TypeString},
		{Name: "b", Type: TypeLong},
	}}
	other := Schema{Fields: []Field{
		{Name: "b", Type: TypeDouble}, // existing field keeps its type
		{Name: "c", Type: TypeString},
	}}

	got, added := base.UnionByName(other)
	if !reflect.DeepEqual(added, []string{"c"}) {
		t.Errorf("added = %v, want [c]", added)
	}
	want := []Field{
		{Name: "a", Type: TypeString},
		{Name: "b", Type: TypeLong},
		{Name: "c", Type: TypeString},
	}
	if !reflect.DeepEqual(got.Fields, want) {
		t.Errorf("fields = %+v, want %+v", got.Fields, want)
	}
}

func TestKeyPredicate(t *testing.T) {
	t.Parallel()

	keys := []string{records.FieldRateDate, records.FieldSource}
	rows := []records.Record{
		{records.FieldRateDate: "2024-01-02", records.FieldSource: "ecb"},
		{records.FieldRateDate: "2024-01-02", records.FieldSource: "ecb"}, // duplicate tuple
		{records.FieldRateDate: "2024-01-03", records.FieldSource: "ecb"},
		{records.FieldRateDate: "2024-01-04"}, // missing key field
	}
	p := KeyPredicate(rows, keys)

	if len(p.Any) != 2 {
		t.Fatalf("got %d conjunctions, want 2", len(p.Any))
	}
	if !p.Match(records.Record{records.FieldRateDate: "2024-01-03", records.FieldSource: "ecb"}) {
		t.Error("predicate should match a keyed row")
	}
	if p.Match(records.Record{records.FieldRateDate: "2024-01-03", records.FieldSource: "boc"}) {
		t.Error("predicate matched a row with a different key tuple")
	}
	if p.Match(records.Record{records.FieldRateDate: "2024-01-04"}) {
		t.Error("predicate matched a row missing a key field")
	}
}

func TestEmptyPredicateMatchesNothing(t *testing.T) {
	t.Parallel()

	var p Predicate
	if !p.Empty() {
		t.Error("zero predicate should be empty")
	}
	if p.Match(records.Record{"a": "b"}) {
		t.Error("zero predicate matched a row")
	}
}
