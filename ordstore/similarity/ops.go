// Package similarity rewrites trigram/full-text predicates found in a
// query's filter trees into rank-scored subquery joins with deterministic
// ordering. Postgres (pg_trgm + tsvector) is the only backend that can run
// the emitted SQL.
package similarity

import "fmt"

type Operator string

const (
	OpSimilarity           Operator = "similarity"
	OpWordSimilarity       Operator = "word_similarity"
	OpStrictWordSimilarity Operator = "strict_word_similarity"
	OpTextRank             Operator = "text_rank"
)

// DefaultThreshold matches pg_trgm's default similarity_threshold.
const DefaultThreshold = 0.3

// OpsStatement is a tagged comparison: match this column against Value via
// a similarity operator, keeping rows whose score reaches Threshold.
type OpsStatement struct {
	Operator  Operator
	Value     string
	Threshold float64
}

func Similar(value string) OpsStatement {
	return OpsStatement{Operator: OpSimilarity, Value: value, Threshold: DefaultThreshold}
}

func WordSimilar(value string) OpsStatement {
	return OpsStatement{Operator: OpWordSimilarity, Value: value, Threshold: DefaultThreshold}
}

func StrictWordSimilar(value string) OpsStatement {
	return OpsStatement{Operator: OpStrictWordSimilarity, Value: value, Threshold: DefaultThreshold}
}

func TextRank(value string) OpsStatement {
	return OpsStatement{Operator: OpTextRank, Value: value, Threshold: 0.05}
}

func (o OpsStatement) WithThreshold(t float64) OpsStatement {
	o.Threshold = t
	return o
}

// Trigram reports whether the operator belongs to the similarity family the
// extractor collects.
func (op Operator) Trigram() bool {
	switch op {
	case OpSimilarity, OpWordSimilarity, OpStrictWordSimilarity, OpTextRank:
		return true
	}
	return false
}

// ScoreExpr renders the rank expression for column against an
// already-registered value placeholder. Note the argument order on the
// word-similarity functions: query first, text second.
func (op Operator) ScoreExpr(column, valuePlaceholder string) string {
	switch op {
	case OpWordSimilarity:
		return fmt.Sprintf("word_similarity(%s, %s)", valuePlaceholder, column)
	case OpStrictWordSimilarity:
		return fmt.Sprintf("strict_word_similarity(%s, %s)", valuePlaceholder, column)
	case OpTextRank:
		return fmt.Sprintf("ts_rank(to_tsvector('simple', %s), websearch_to_tsquery('simple', %s))", column, valuePlaceholder)
	default:
		return fmt.Sprintf("similarity(%s, %s)", column, valuePlaceholder)
	}
}

// Comparator is how the score relates to the threshold: every operator in
// the family keeps rows scoring at least the threshold.
func (op Operator) Comparator() string { return ">=" }
