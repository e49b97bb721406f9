package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/metadata"
	"github.com/nonibytes/ordstore/ordstore/similarity"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

var (
	searchTable     string
	searchPKColumn  string
	searchColumn    string
	searchTerm      string
	searchOperator  string
	searchThreshold float64
	searchSQLOnly   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a trigram/full-text similarity search, ranked best-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		adapter, db, err := openAdapter(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		ops, err := opsForOperator(searchOperator, searchTerm)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("threshold") {
			ops = ops.WithThreshold(searchThreshold)
		}

		meta := metadata.NewRegistry(metadata.Table{
			Name:       searchTable,
			PrimaryKey: searchPKColumn,
			Columns:    []string{searchColumn},
		})

		b := sqlbuilder.New(adapter.PlaceholderStyle())
		q := sqlbuilder.NewSelect(b, searchTable)
		q.Column(fmt.Sprintf("%s.%s", searchTable, searchPKColumn))
		q.Column(fmt.Sprintf("%s.%s", searchTable, searchColumn))

		src := similarity.Source{
			Table: searchTable,
			Where: []similarity.Filters{{searchColumn: similarity.Match(ops)}},
		}
		if err := similarity.NewBuilder(adapter, meta).WithLogger(log).Select(q, src, similarity.Options{}); err != nil {
			return err
		}

		if searchSQLOnly {
			fmt.Fprintln(cmd.OutOrStdout(), q.SQL())
			return nil
		}

		rows, err := q.Query(ctx, db)
		if err != nil {
			return ordstore.Wrap(ordstore.ErrSQL, "similarity search", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id, value any
			if err := rows.Scan(&id, &value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\t%v\n", id, value)
		}
		return rows.Err()
	},
}

func opsForOperator(name, term string) (similarity.OpsStatement, error) {
	switch name {
	case "similarity":
		return similarity.Similar(term), nil
	case "word":
		return similarity.WordSimilar(term), nil
	case "strict-word":
		return similarity.StrictWordSimilar(term), nil
	case "rank":
		return similarity.TextRank(term), nil
	default:
		return similarity.OpsStatement{}, ordstore.ConfigError("unknown operator " + name)
	}
}

func init() {
	searchCmd.Flags().StringVar(&searchTable, "table", "", "table to search")
	searchCmd.Flags().StringVar(&searchPKColumn, "pk-column", "id", "primary key column")
	searchCmd.Flags().StringVar(&searchColumn, "column", "", "text column to match")
	searchCmd.Flags().StringVar(&searchTerm, "term", "", "search term")
	searchCmd.Flags().StringVar(&searchOperator, "operator", "similarity", "similarity|word|strict-word|rank")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", similarity.DefaultThreshold, "minimum score")
	searchCmd.Flags().BoolVar(&searchSQLOnly, "sql", false, "print the compiled SQL instead of executing")
	_ = searchCmd.MarkFlagRequired("table")
	_ = searchCmd.MarkFlagRequired("column")
	_ = searchCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(searchCmd)
}
