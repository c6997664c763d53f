package store

import (
	"context"
	"fmt"
	"sync"

	"placement-tests/internal/domain"
	"placement-tests/internal/repository/models"

	"github.com/stretchr/testify/mock"
)

// --- MockRemoteTable ---
type MockRemoteTable struct {
	mock.Mock
}

func (m *MockRemoteTable) Select(ctx context.Context, order OrderBy) ([]models.TestRow, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TestRow), args.Error(1)
}

func (m *MockRemoteTable) Insert(ctx context.Context, row models.TestRow) (models.TestRow, error) {
	args := m.Called(ctx, row)
	return args.Get(0).(models.TestRow), args.Error(1)
}

func (m *MockRemoteTable) Update(ctx context.Context, id string, columns map[string]any) error {
	args := m.Called(ctx, id, columns)
	return args.Error(0)
}

func (m *MockRemoteTable) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ RemoteTable = (*MockRemoteTable)(nil)

// fakeTable is an in-memory RemoteTable that fills server defaults the way the SQL table does.
type fakeTable struct {
	mu      sync.Mutex
	rows    []models.TestRow // newest first
	selects int
	updates []map[string]any
	nextID  int
}

func (f *fakeTable) Select(ctx context.Context, order OrderBy) ([]models.TestRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects++
	return append([]models.TestRow(nil), f.rows...), nil
}

func (f *fakeTable) Insert(ctx context.Context, row models.TestRow) (models.TestRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.ID == "" {
		f.nextID++
		row.ID = fmt.Sprintf("generated-%d", f.nextID)
	}
	row.StudentsAssigned.Valid = true
	row.StudentsCompleted.Valid = true
	row.AverageScore.Valid = true
	f.rows = append([]models.TestRow{row}, f.rows...)
	return row, nil
}

func (f *fakeTable) Update(ctx context.Context, id string, columns map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.updates = append(f.updates, columns)
			if status, ok := columns["status"].(string); ok {
				f.rows[i].Status = status
			}
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (f *fakeTable) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrRecordNotFound
}
