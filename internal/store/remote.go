package store

import (
	"context"

	"placement-tests/internal/repository/models"
)

// OrderBy selects the sort column and direction of a remote select.
type OrderBy struct {
	Column string
	Desc   bool
}

// RemoteTable is the persistence contract the test store synchronizes with.
// Filters are equality on id. Update and Delete return domain.ErrRecordNotFound
// when no row matched.
type RemoteTable interface {
	Select(ctx context.Context, order OrderBy) ([]models.TestRow, error)
	Insert(ctx context.Context, row models.TestRow) (models.TestRow, error)
	Update(ctx context.Context, id string, columns map[string]any) error
	Delete(ctx context.Context, id string) error
}

var byNewestFirst = OrderBy{Column: "created_at", Desc: true}
