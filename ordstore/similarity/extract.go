package similarity

import (
	"sort"

	"github.com/nonibytes/ordstore/ordstore/metadata"
)

// Node is one arm of a filter tree: a similarity match, a plain literal
// comparison (opaque to this package), or a nested map keyed by column or
// association names.
type Node interface {
	filterNode()
}

// Match is a leaf carrying a similarity ops statement.
type Match OpsStatement

// Literal is a leaf carrying an ordinary comparison value; the extractor
// skips it.
type Literal struct {
	Value any
}

// Filters maps column or association names to further nodes.
type Filters map[string]Node

func (Match) filterNode()   {}
func (Literal) filterNode() {}
func (Filters) filterNode() {}

// Statement is one extracted similarity predicate: which table/alias and
// column it filters, and how.
type Statement struct {
	Table  string
	Alias  string
	Column string
	Ops    OpsStatement
}

// Source is a query's frozen filter sets: flat WHERE and NOT-WHERE
// statement lists, and the JOIN-AND tree keyed by association names.
type Source struct {
	Table    string
	Where    []Filters
	WhereNot []Filters
	JoinAnd  Filters
}

// Extract walks the filter sets in a fixed order (WHERE, NOT-WHERE, then
// JOIN-AND; sorted keys within each map) and returns every similarity
// statement found. Association names that don't resolve in the registry are
// skipped, not errored.
func Extract(meta *metadata.Registry, src Source) []Statement {
	var out []Statement
	for _, filters := range src.Where {
		out = appendFlat(out, src.Table, filters)
	}
	for _, filters := range src.WhereNot {
		out = appendFlat(out, src.Table, filters)
	}
	return appendJoins(out, meta, src.Table, src.JoinAnd)
}

// appendFlat scans one flat statement's keys for similarity matches; the
// alias is the query's own table.
func appendFlat(out []Statement, table string, filters Filters) []Statement {
	for _, column := range sortedKeys(filters) {
		match, ok := filters[column].(Match)
		if !ok || !match.Operator.Trigram() {
			continue
		}
		out = append(out, Statement{Table: table, Alias: table, Column: column, Ops: OpsStatement(match)})
	}
	return out
}

// appendJoins descends the JOIN-AND tree. Each key is an association name
// on the current table; its filters either match columns of the associated
// table or nest into further associations.
func appendJoins(out []Statement, meta *metadata.Registry, table string, joins Filters) []Statement {
	for _, name := range sortedKeys(joins) {
		assoc, ok := meta.Association(table, name)
		if !ok {
			continue
		}
		filters, ok := joins[name].(Filters)
		if !ok {
			continue
		}
		for _, key := range sortedKeys(filters) {
			switch node := filters[key].(type) {
			case Match:
				if node.Operator.Trigram() {
					out = append(out, Statement{
						Table:  assoc.TargetTable,
						Alias:  name,
						Column: key,
						Ops:    OpsStatement(node),
					})
				}
			case Filters:
				out = appendJoins(out, meta, assoc.TargetTable, Filters{key: node})
			}
		}
	}
	return out
}

func sortedKeys(filters Filters) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
