// Package store persists Level-0 row batches in PostgreSQL. A merge stages
// the batch in a session-temporary table, deduplicates it, then replaces
// the matching permanent rows, all inside one transaction.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odin-smr/level0/internal/importer"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implements importer.MergeStore on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the permanent Level-0 tables when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Merge stages batch, drops staged duplicates last-write-wins, deletes the
// permanent rows whose dedup keys appear in staging and inserts the staged
// rows. The whole merge is one transaction; on any failure past staging the
// permanent table is untouched.
func (s *Postgres) Merge(ctx context.Context, batch importer.RowBatch) (importer.MergeStats, error) {
	var stats importer.MergeStats

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	staging := batch.Table.Name + "_staging"
	_, err = tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMPORARY TABLE %s (LIKE %s) ON COMMIT DROP",
		quoteIdentifier(staging), quoteIdentifier(batch.Table.Name),
	))
	if err != nil {
		return stats, fmt.Errorf("create staging table: %w", err)
	}

	stats.Staged, stats.Conflicts, err = stage(ctx, tx, staging, batch)
	if err != nil {
		return stats, err
	}

	stats.DupDropped, err = dedupStaging(ctx, tx, staging, batch.Table)
	if err != nil {
		return stats, err
	}

	cols := quoteAll(batch.Table.Columns)
	keyJoin := keyCondition(batch.Table.Name, staging, batch.Table.KeyColumns)

	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s USING %s WHERE %s",
		quoteIdentifier(batch.Table.Name), quoteIdentifier(staging), keyJoin,
	))
	if err != nil {
		return stats, fmt.Errorf("replace existing rows: %w", err)
	}
	stats.Deleted = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		quoteIdentifier(batch.Table.Name), strings.Join(cols, ", "),
		strings.Join(cols, ", "), quoteIdentifier(staging),
	))
	if err != nil {
		return stats, fmt.Errorf("insert staged rows: %w", err)
	}
	stats.Inserted = int(tag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

// stage loads the batch into the staging table. The bulk copy path handles
// the common clean batch; when it fails the rows are retried one by one
// under savepoints so a single bad row costs one conflict, not the batch.
func stage(ctx context.Context, tx pgx.Tx, staging string, batch importer.RowBatch) (staged, conflicts int, err error) {
	if len(batch.Rows) == 0 {
		return 0, 0, nil
	}

	if _, err := tx.Exec(ctx, "SAVEPOINT bulk_copy"); err != nil {
		return 0, 0, fmt.Errorf("create savepoint: %w", err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, batch.Table.Columns, pgx.CopyFromRows(batch.Rows))
	if err == nil {
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT bulk_copy")
		return int(n), 0, nil
	}
	if _, err := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT bulk_copy"); err != nil {
		return 0, 0, fmt.Errorf("rollback bulk copy: %w", err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(staging),
		strings.Join(quoteAll(batch.Table.Columns), ", "),
		placeholders(len(batch.Table.Columns)),
	)
	for i, row := range batch.Rows {
		savepointName := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepointName); err != nil {
			return staged, conflicts, fmt.Errorf("create savepoint: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, row...); err != nil {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepointName)
			conflicts++
			continue
		}
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+savepointName)
		staged++
	}
	return staged, conflicts, nil
}

// dedupStaging keeps the last staged row per dedup key, relying on ctid
// ordering within the freshly filled staging table.
func dedupStaging(ctx context.Context, tx pgx.Tx, staging string, table importer.Table) (int, error) {
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s older USING %s newer WHERE older.ctid < newer.ctid AND %s",
		quoteIdentifier(staging), quoteIdentifier(staging),
		keyCondition("older", "newer", table.KeyColumns),
	))
	if err != nil {
		return 0, fmt.Errorf("dedup staging: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func keyCondition(left, right string, keys []string) string {
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s.%s = %s.%s",
			quoteIdentifier(left), quoteIdentifier(k),
			quoteIdentifier(right), quoteIdentifier(k))
	}
	return strings.Join(conds, " AND ")
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ps, ", ")
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdentifier(n)
	}
	return out
}
