package similarity

import (
	"fmt"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/metadata"
	"github.com/nonibytes/ordstore/ordstore/storage"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

// Builder rewrites a statement so every extracted similarity predicate
// becomes a rank-scored subquery: joined by primary key on the SELECT path,
// folded into a WHERE pk IN (...) on the UPDATE path (UPDATE cannot join).
// Each statement also contributes one ORDER BY rank DESC term, in
// extraction order, so earlier predicates win ties.
//
// The rewrite consumes the source's statement list once and mutates the
// passed-in builder; running it twice against the same statement would
// double-join. That discipline is the caller's.
type Builder struct {
	adapter storage.Adapter
	meta    *metadata.Registry
	log     zerolog.Logger
}

func NewBuilder(adapter storage.Adapter, meta *metadata.Registry) *Builder {
	return &Builder{adapter: adapter, meta: meta, log: zerolog.Nop()}
}

func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

type Options struct {
	// BypassOrder suppresses the ORDER BY rank terms (counting queries,
	// caller-supplied ordering).
	BypassOrder bool
}

// Select rewrites a SELECT in place. Zero extracted statements leave the
// statement untouched.
func (b *Builder) Select(q *sqlbuilder.SelectStatement, src Source, opts Options) error {
	statements := Extract(b.meta, src)
	if len(statements) == 0 {
		return nil
	}
	outer, err := b.outerTable(q.Table())
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, st := range statements {
		joinAlias, rankAlias, err := b.aliases(st, seen)
		if err != nil {
			return err
		}
		if joinAlias == "" {
			continue // duplicate predicate, already joined
		}
		sub, err := b.subquery(q, st, rankAlias)
		if err != nil {
			return err
		}
		q.InnerJoin(sub, joinAlias, fmt.Sprintf("%s.%s = %s.trigram_search_id", outer.Name, outer.PrimaryKey, joinAlias))
		if !opts.BypassOrder {
			q.OrderBy(joinAlias+"."+rankAlias, "DESC")
		}
		b.log.Debug().Str("alias", joinAlias).Str("column", st.Column).Msg("joined similarity subquery")
	}
	return nil
}

// Update rewrites an UPDATE in place using the WHERE pk IN (subquery) form.
// Call it after all SET clauses are in place so placeholder order holds.
func (b *Builder) Update(u *sqlbuilder.UpdateStatement, src Source) error {
	statements := Extract(b.meta, src)
	if len(statements) == 0 {
		return nil
	}
	outer, err := b.outerTable(u.Table())
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, st := range statements {
		joinAlias, rankAlias, err := b.aliases(st, seen)
		if err != nil {
			return err
		}
		if joinAlias == "" {
			continue
		}
		sub, err := b.subquery(u, st, rankAlias)
		if err != nil {
			return err
		}
		u.WhereIn(outer.PrimaryKey, fmt.Sprintf("SELECT trigram_search_id FROM (%s) AS %s", sub, joinAlias))
	}
	return nil
}

func (b *Builder) outerTable(name string) (metadata.Table, error) {
	table, ok := b.meta.Table(name)
	if !ok {
		return metadata.Table{}, ordstore.UnknownTableError(name)
	}
	return table, nil
}

// aliases derives the deterministic join and rank aliases for a statement
// and applies the stable-hash dedup: an identical predicate seen twice
// returns an empty join alias; a distinct predicate on an already-joined
// column gets a hash-suffixed join alias so the joins cannot collide.
func (b *Builder) aliases(st Statement, seen map[string]bool) (joinAlias, rankAlias string, err error) {
	if err := b.checkBackend(st.Ops.Operator); err != nil {
		return "", "", err
	}
	if err := b.meta.ValidateColumn(st.Table, st.Column); err != nil {
		return "", "", err
	}
	if !metadata.ValidIdent(st.Alias) {
		return "", "", ordstore.New(ordstore.ErrMetadata, fmt.Sprintf("invalid similarity alias %q", st.Alias))
	}

	hash := stableHash(st.Alias, st.Column, string(st.Ops.Operator), st.Ops.Value)
	rankAlias = "rank_" + hash
	joinAlias = fmt.Sprintf("trigram_search_%s_%s", st.Alias, st.Column)

	if seen[rankAlias] {
		return "", "", nil
	}
	if seen[joinAlias] {
		joinAlias = joinAlias + "_" + hash
	}
	seen[rankAlias] = true
	seen[joinAlias] = true
	return joinAlias, rankAlias, nil
}

type argRegistrar interface {
	Arg(v any) string
}

// subquery renders the nested scored SELECT. The value placeholder is
// registered once and referenced from both the projection and the
// threshold predicate; the similarity path only ever runs on the dollar
// placeholder style, where re-reference is legal.
func (b *Builder) subquery(args argRegistrar, st Statement, rankAlias string) (string, error) {
	table, ok := b.meta.Table(st.Table)
	if !ok {
		return "", ordstore.UnknownTableError(st.Table)
	}
	valuePh := args.Arg(st.Ops.Value)
	score := st.Ops.Operator.ScoreExpr(st.Table+"."+st.Column, valuePh)
	thresholdPh := args.Arg(st.Ops.Threshold)

	return fmt.Sprintf(
		"SELECT %s.%s AS trigram_search_id, %s AS %s FROM %s WHERE %s %s %s",
		st.Table, table.PrimaryKey,
		score, rankAlias,
		st.Table,
		score, st.Ops.Operator.Comparator(), thresholdPh,
	), nil
}

func (b *Builder) checkBackend(op Operator) error {
	caps := b.adapter.Capabilities()
	supported := false
	switch op {
	case OpSimilarity:
		supported = caps.TrigramSimilarity
	case OpWordSimilarity, OpStrictWordSimilarity:
		supported = caps.WordSimilarity
	case OpTextRank:
		supported = caps.FullTextRank
	}
	if !supported {
		return ordstore.ConfigError(fmt.Sprintf(
			"backend %q cannot run %s queries: use the postgres adapter", b.adapter.Backend(), op))
	}
	return nil
}

func stableHash(parts ...string) string {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
