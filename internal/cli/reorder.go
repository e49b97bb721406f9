package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/metadata"
	"github.com/nonibytes/ordstore/ordstore/sortable"
	"github.com/nonibytes/ordstore/ordstore/storage"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

var (
	reorderTable     string
	reorderPKColumn  string
	reorderID        string
	reorderPosColumn string
	reorderPosition  int
	reorderScopeCols []string
	reorderCreatedAt string
)

var reorderCmd = &cobra.Command{
	Use:   "reorder",
	Short: "Move one row to a position, shifting its scoped siblings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		adapter, db, err := openAdapter(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		columns := append([]string{reorderPosColumn}, reorderScopeCols...)
		meta := metadata.NewRegistry(metadata.Table{
			Name:       reorderTable,
			PrimaryKey: reorderPKColumn,
			CreatedAt:  reorderCreatedAt,
			Columns:    columns,
		})

		attrs, err := loadRow(ctx, db, adapter, meta, reorderTable, reorderPKColumn, reorderID)
		if err != nil {
			return err
		}
		rec := ordstore.LoadedRow(reorderTable, reorderPKColumn, attrs)

		var previous *int
		if n, ok := ordstore.IntValue(rec.Get(reorderPosColumn)); ok {
			previous = &n
		}

		setter := sortable.NewSetter(db, adapter, meta).WithLogger(log)
		if err := setter.SetPosition(ctx, sortable.SetPositionParams{
			Record:   rec,
			Field:    reorderPosColumn,
			Scope:    reorderScopeCols,
			Position: reorderPosition,
			Previous: previous,
		}); err != nil {
			return err
		}

		final, _ := ordstore.IntValue(rec.Get(reorderPosColumn))
		log.Info().Str("table", reorderTable).Str("id", reorderID).Int("position", final).Msg("reordered")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> position %d\n", reorderTable, reorderID, final)
		return nil
	},
}

func loadRow(ctx context.Context, db *sql.DB, adapter storage.Adapter, meta *metadata.Registry, table, pkColumn, id string) (map[string]any, error) {
	if err := meta.ValidateColumn(table, pkColumn); err != nil {
		return nil, err
	}
	b := sqlbuilder.New(adapter.PlaceholderStyle())
	sel := sqlbuilder.NewSelect(b, table)
	sel.Where(pkColumn, "=", id)

	rows, err := sel.Query(ctx, db)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ordstore.New(ordstore.ErrSQL, fmt.Sprintf("no row with %s=%s in %s", pkColumn, id, table))
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	attrs := make(map[string]any, len(columns))
	for i, c := range columns {
		attrs[c] = values[i]
	}
	return attrs, rows.Err()
}

func init() {
	reorderCmd.Flags().StringVar(&reorderTable, "table", "", "table holding the ranked rows")
	reorderCmd.Flags().StringVar(&reorderPKColumn, "pk-column", "id", "primary key column")
	reorderCmd.Flags().StringVar(&reorderID, "id", "", "primary key of the row to move")
	reorderCmd.Flags().StringVar(&reorderPosColumn, "position-column", "position", "ordinal column")
	reorderCmd.Flags().IntVar(&reorderPosition, "position", 0, "target slot (0 appends at the end)")
	reorderCmd.Flags().StringSliceVar(&reorderScopeCols, "scope", nil, "scope column (repeatable)")
	reorderCmd.Flags().StringVar(&reorderCreatedAt, "created-at-column", "", "creation-time column used to order NULL backfills")
	_ = reorderCmd.MarkFlagRequired("table")
	_ = reorderCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(reorderCmd)
}
