package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"placement-tests/internal/domain"
	"placement-tests/internal/repository/models"
	"placement-tests/internal/store"
	"placement-tests/internal/util"

	"github.com/jmoiron/sqlx"
)

// SQLTestTable is the sqlx-backed remote tests table.
type SQLTestTable struct {
	db  DBTX
	now func() time.Time
}

// NewSQLTestTable creates a new instance of SQLTestTable
func NewSQLTestTable(db *sqlx.DB) *SQLTestTable {
	return &SQLTestTable{db: db, now: time.Now}
}

var _ store.RemoteTable = (*SQLTestTable)(nil)

// selectColumns aliases every column to its quoted lowercase name so Oracle's
// upper-cased identifiers still match the db tags.
var selectColumns = func() string {
	cols := make([]string, len(models.TestColumns))
	for i, c := range models.TestColumns {
		cols[i] = fmt.Sprintf(`%s "%s"`, c, c)
	}
	return strings.Join(cols, ", ")
}()

// insertColumns are the columns a client writes; server-owned aggregates take the table defaults.
var insertColumns = func() []string {
	cols := make([]string, 0, len(models.TestColumns))
	for _, c := range models.TestColumns {
		if !models.ServerOwnedColumns[c] {
			cols = append(cols, c)
		}
	}
	return cols
}()

var updatableColumns = func() map[string]bool {
	m := make(map[string]bool, len(insertColumns))
	for _, c := range insertColumns {
		m[c] = true
	}
	delete(m, "id")
	delete(m, "created_at")
	delete(m, "created_by")
	return m
}()

// Select returns every row of the tests table in the requested order.
func (r *SQLTestTable) Select(ctx context.Context, order store.OrderBy) ([]models.TestRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", selectColumns, models.TestsTable)
	if order.Column != "" {
		if !isColumn(order.Column) {
			return nil, fmt.Errorf("unknown order column %q", order.Column)
		}
		dir := "ASC"
		if order.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", order.Column, dir)
	}

	var rows []models.TestRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.TestRow{}, nil
		}
		return nil, fmt.Errorf("failed to select tests: %w", err)
	}
	if rows == nil {
		rows = []models.TestRow{}
	}
	return rows, nil
}

// Insert stores row and returns it as persisted, including server defaults.
// An empty ID is replaced by a generated ULID.
func (r *SQLTestTable) Insert(ctx context.Context, row models.TestRow) (models.TestRow, error) {
	if row.ID == "" {
		row.ID = util.NewULID()
	}
	row.CreatedAt = sql.NullTime{Time: r.now().UTC(), Valid: true}

	placeholders := make([]string, len(insertColumns))
	for i, c := range insertColumns {
		placeholders[i] = ":" + c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		models.TestsTable, strings.Join(insertColumns, ", "), strings.Join(placeholders, ", "))

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return models.TestRow{}, fmt.Errorf("failed to insert test %s: %w", row.ID, err)
	}

	created, err := r.getByID(ctx, row.ID)
	if err != nil {
		return models.TestRow{}, fmt.Errorf("failed to read back test %s: %w", row.ID, err)
	}
	return created, nil
}

func (r *SQLTestTable) getByID(ctx context.Context, id string) (models.TestRow, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns, models.TestsTable))
	var row models.TestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TestRow{}, domain.ErrRecordNotFound
		}
		return models.TestRow{}, err
	}
	return row, nil
}

// Update writes only the given columns of row id.
// It returns domain.ErrRecordNotFound when no row matched.
func (r *SQLTestTable) Update(ctx context.Context, id string, columns map[string]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("update of test %s has no columns", id)
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		if !updatableColumns[name] {
			return fmt.Errorf("column %q is not updatable", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets[i] = name + " = ?"
		args = append(args, columns[name])
	}
	args = append(args, id)

	query := r.db.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", models.TestsTable, strings.Join(sets, ", ")))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update test %s: %w", id, err)
	}
	return requireAffected(result)
}

// Delete removes row id. It returns domain.ErrRecordNotFound when no row matched.
func (r *SQLTestTable) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", models.TestsTable))
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete test %s: %w", id, err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func isColumn(name string) bool {
	for _, c := range models.TestColumns {
		if c == name {
			return true
		}
	}
	return false
}
