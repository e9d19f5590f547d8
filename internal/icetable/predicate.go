package icetable

import (
	"strings"

	"ratesetl/internal/records"
)

// Equality is a single field = value comparison. Values are compared in their
// stable string rendering (records.KeyValue).
type Equality struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Predicate is a logical OR over per-row AND conjunctions of field
// equalities. The zero Predicate matches nothing.
type Predicate struct {
	Any []Conjunction `json:"any"`
}

// Conjunction is an AND of equalities.
type Conjunction []Equality

// Empty reports whether the predicate matches nothing.
func (p Predicate) Empty() bool { return len(p.Any) == 0 }

// Match evaluates the predicate against a row.
func (p Predicate) Match(rec records.Record) bool {
	for _, conj := range p.Any {
		if conj.match(rec) {
			return true
		}
	}
	return false
}

func (c Conjunction) match(rec records.Record) bool {
	for _, eq := range c {
		v, ok := rec[eq.Field]
		if !ok || records.KeyValue(v) != eq.Value {
			return false
		}
	}
	return len(c) > 0
}

// KeyPredicate builds the delete predicate for a batch: the OR, over the
// distinct primary-key tuples present in rows, of per-tuple equality
// conjunctions on the key fields. Rows missing a key field contribute no
// conjunction.
func KeyPredicate(rows []records.Record, keys []string) Predicate {
	var p Predicate
	seen := map[string]bool{}
	for _, rec := range rows {
		var (
			conj Conjunction
			sig  strings.Builder
			ok   = true
		)
		for _, k := range keys {
			v, present := rec[k]
			if !present {
				ok = false
				break
			}
			val := records.KeyValue(v)
			conj = append(conj, Equality{Field: k, Value: val})
			sig.WriteString(val)
			sig.WriteByte('\x1f')
		}
		if !ok || len(conj) == 0 {
			continue
		}
		if seen[sig.String()] {
			continue
		}
		seen[sig.String()] = true
		p.Any = append(p.Any, conj)
	}
	return p
}
