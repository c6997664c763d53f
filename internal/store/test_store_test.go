package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"placement-tests/internal/domain"
	"placement-tests/internal/repository/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func newTestStore(table RemoteTable) *TestStore {
	return New(table, WithClock(func() time.Time { return fixedNow }))
}

func activeRow(id string) models.TestRow {
	return models.TestRow{
		ID:         id,
		Title:      "Test " + id,
		Category:   string(domain.CategoryCoding),
		Difficulty: string(domain.DifficultyEasy),
		Duration:   45,
		Status:     string(domain.StatusActive),
		CreatedAt:  nullTime(fixedNow.Add(-24 * time.Hour)),
	}
}

func draftTest(id string) domain.Test {
	return domain.Test{
		ID:         id,
		Title:      "Test " + id,
		Category:   domain.CategoryTechnical,
		Difficulty: domain.DifficultyHard,
		Duration:   30,
		Status:     domain.StatusDraft,
	}
}

func ids(tests []domain.Test) []string {
	out := make([]string, len(tests))
	for i, t := range tests {
		out[i] = t.ID
	}
	return out
}

func TestInitialize_Idempotent(t *testing.T) {
	table := &fakeTable{rows: []models.TestRow{activeRow("t1")}}
	s := newTestStore(table)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	assert.Equal(t, 1, table.selects, "second initialize must not hit the remote table")
	assert.True(t, s.Hydrated())
	assert.Len(t, s.GetAllTests(), 1)
}

// blockSelect makes the next Select signal entered and wait for release.
func blockSelect(table *MockRemoteTable, rows []models.TestRow) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	table.On("Select", mock.Anything, byNewestFirst).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(rows, nil).Once()
	return entered, release
}

func TestInitialize_ConcurrentCallersShareOneRead(t *testing.T) {
	table := new(MockRemoteTable)
	entered, release := blockSelect(table, []models.TestRow{activeRow("t1")})
	s := newTestStore(table)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Initialize(context.Background()))
		}()
	}
	<-entered
	close(release)
	wg.Wait()

	table.AssertNumberOfCalls(t, "Select", 1)
	assert.True(t, s.Hydrated())
}

func TestInitialize_CancelledCallerDoesNotFailOthers(t *testing.T) {
	table := new(MockRemoteTable)
	entered := make(chan struct{})
	release := make(chan struct{})
	table.On("Select", mock.Anything, byNewestFirst).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
			assert.NoError(t, args.Get(0).(context.Context).Err(), "shared load outlives the first caller")
		}).
		Return([]models.TestRow{activeRow("t1")}, nil).Once()
	s := newTestStore(table)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- s.Initialize(ctx) }()
	<-entered

	second := make(chan error, 1)
	go func() { second <- s.Initialize(context.Background()) }()

	cancel()
	err := <-first
	assert.Equal(t, domain.ErrHydrationFailed, domain.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.NoError(t, <-second)
	assert.True(t, s.Hydrated())
	assert.Equal(t, []string{"t1"}, ids(s.GetAllTests()))
	table.AssertNumberOfCalls(t, "Select", 1)
}

func TestInitialize_KeepsMutationsMadeDuringLoad(t *testing.T) {
	t1 := activeRow("t1")
	t1.Status = string(domain.StatusDraft)
	table := new(MockRemoteTable)
	// snapshot taken before any of the writes below commit
	entered, release := blockSelect(table, []models.TestRow{t1, activeRow("t3")})
	created := activeRow("t2")
	created.Status = string(domain.StatusDraft)
	table.On("Insert", mock.Anything, mock.Anything).Return(created, nil).Once()
	table.On("Update", mock.Anything, "t1", mock.Anything).Return(nil).Once()
	table.On("Delete", mock.Anything, "t3").Return(nil).Once()
	s := newTestStore(table)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.Initialize(ctx) }()
	<-entered

	_, err := s.AddTest(ctx, draftTest("t2"))
	require.NoError(t, err)
	status := domain.StatusActive
	require.NoError(t, s.UpdateTest(ctx, "t1", domain.TestPatch{Status: &status}))
	require.NoError(t, s.DeleteTest(ctx, "t3"))

	close(release)
	require.NoError(t, <-done)

	assert.True(t, s.Hydrated())
	assert.Equal(t, []string{"t2", "t1"}, ids(s.GetAllTests()))
	got, ok := s.GetTestByID("t1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, got.Status)
	table.AssertExpectations(t)
}

func TestInitialize_FailureLeavesStoreEmpty(t *testing.T) {
	table := new(MockRemoteTable)
	remoteErr := errors.New("connection refused")
	table.On("Select", mock.Anything, byNewestFirst).Return(nil, remoteErr).Once()
	table.On("Select", mock.Anything, byNewestFirst).Return([]models.TestRow{activeRow("t1")}, nil).Once()
	s := newTestStore(table)

	notified := 0
	s.Subscribe(func() { notified++ })

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrHydrationFailed, domain.CodeOf(err))
	assert.ErrorIs(t, err, remoteErr)
	assert.False(t, s.Hydrated())
	assert.Empty(t, s.GetAllTests())
	assert.Equal(t, 0, notified)

	// callers may retry
	require.NoError(t, s.Initialize(context.Background()))
	assert.True(t, s.Hydrated())
	assert.Equal(t, 1, notified)
	table.AssertExpectations(t)
}

func TestInitialize_MapsRowsAndDropsDuplicates(t *testing.T) {
	dup := activeRow("t1")
	dup.Title = "stale duplicate"
	table := &fakeTable{rows: []models.TestRow{activeRow("t2"), activeRow("t1"), dup}}
	s := newTestStore(table)

	require.NoError(t, s.Initialize(context.Background()))

	all := s.GetAllTests()
	assert.Equal(t, []string{"t2", "t1"}, ids(all))
	assert.Equal(t, "Test t1", all[1].Title)
	assert.Equal(t, "2026-02-09", all[1].CreatedDate)
}

func TestAddTest_WriteThenRead(t *testing.T) {
	s := newTestStore(&fakeTable{})
	ctx := context.Background()

	created, err := s.AddTest(ctx, draftTest("t2"))
	require.NoError(t, err)

	got, ok := s.GetTestByID(created.ID)
	require.True(t, ok)
	assert.Equal(t, created, got)
	assert.Equal(t, fixedNow.Format(domain.DateLayout), got.CreatedDate, "missing created_at falls back to today")
	assert.False(t, got.ShowResultsImmediately, "explicit false is preserved")
}

func TestAddTest_RemoteGeneratesID(t *testing.T) {
	s := newTestStore(&fakeTable{})

	created, err := s.AddTest(context.Background(), draftTest(""))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, ok := s.GetTestByID(created.ID)
	assert.True(t, ok)
}

func TestAddTest_NewestInsertedFirst(t *testing.T) {
	s := newTestStore(&fakeTable{})
	ctx := context.Background()

	_, err := s.AddTest(ctx, draftTest("first"))
	require.NoError(t, err)
	_, err = s.AddTest(ctx, draftTest("second"))
	require.NoError(t, err)

	assert.Equal(t, []string{"second", "first"}, ids(s.GetAllTests()))
}

func TestAddTest_ReusedIDStaysUnique(t *testing.T) {
	table := new(MockRemoteTable)
	row := activeRow("t1")
	table.On("Insert", mock.Anything, mock.Anything).Return(row, nil).Twice()
	s := newTestStore(table)

	_, err := s.AddTest(context.Background(), draftTest("t1"))
	require.NoError(t, err)
	_, err = s.AddTest(context.Background(), draftTest("t1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, ids(s.GetAllTests()))
}

func TestMutations_FailureLeavesStateUntouched(t *testing.T) {
	remoteErr := errors.New("remote unavailable")
	table := new(MockRemoteTable)
	table.On("Select", mock.Anything, byNewestFirst).Return([]models.TestRow{activeRow("t2"), activeRow("t1")}, nil)
	table.On("Insert", mock.Anything, mock.Anything).Return(models.TestRow{}, remoteErr)
	table.On("Update", mock.Anything, "t1", mock.Anything).Return(remoteErr)
	table.On("Delete", mock.Anything, "t2").Return(remoteErr)

	s := newTestStore(table)
	require.NoError(t, s.Initialize(context.Background()))
	before := s.GetAllTests()

	notified := 0
	s.Subscribe(func() { notified++ })

	_, err := s.AddTest(context.Background(), draftTest("t3"))
	assert.Equal(t, domain.ErrRemoteStore, domain.CodeOf(err))
	assert.Equal(t, before, s.GetAllTests())

	status := domain.StatusArchived
	err = s.UpdateTest(context.Background(), "t1", domain.TestPatch{Status: &status})
	assert.Equal(t, domain.ErrRemoteStore, domain.CodeOf(err))
	assert.ErrorIs(t, err, remoteErr)
	assert.Equal(t, before, s.GetAllTests())

	err = s.DeleteTest(context.Background(), "t2")
	assert.Equal(t, domain.ErrRemoteStore, domain.CodeOf(err))
	assert.Equal(t, before, s.GetAllTests())

	assert.Equal(t, 0, notified)
}

func TestUpdateTest_MergesPatch(t *testing.T) {
	table := &fakeTable{rows: []models.TestRow{activeRow("t1")}}
	s := newTestStore(table)
	require.NoError(t, s.Initialize(context.Background()))

	title := "Coding Round 2"
	retake := true
	require.NoError(t, s.UpdateTest(context.Background(), "t1", domain.TestPatch{Title: &title, AllowRetake: &retake}))

	got, ok := s.GetTestByID("t1")
	require.True(t, ok)
	assert.Equal(t, "Coding Round 2", got.Title)
	assert.True(t, got.AllowRetake)
	assert.Equal(t, 45, got.Duration)

	require.Len(t, table.updates, 1)
	assert.Len(t, table.updates[0], 2, "only changed columns are sent")
	assert.Contains(t, table.updates[0], "title")
	assert.Contains(t, table.updates[0], "allow_retake")
	assert.NotContains(t, table.updates[0], "students_assigned")
}

func TestUpdateTest_EmptyPatch(t *testing.T) {
	table := new(MockRemoteTable)
	s := newTestStore(table)

	err := s.UpdateTest(context.Background(), "t1", domain.TestPatch{})
	assert.Equal(t, domain.ErrInvalidInput, domain.CodeOf(err))
	table.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateTest_NotCachedStillWritesRemotely(t *testing.T) {
	table := new(MockRemoteTable)
	table.On("Update", mock.Anything, "remote-only", map[string]any{"status": "active"}).Return(nil).Once()
	s := newTestStore(table)

	notified := 0
	s.Subscribe(func() { notified++ })

	status := domain.StatusActive
	require.NoError(t, s.UpdateTest(context.Background(), "remote-only", domain.TestPatch{Status: &status}))

	assert.Empty(t, s.GetAllTests())
	assert.Equal(t, 1, notified)
	table.AssertExpectations(t)
}

func TestUpdateTest_RemoteNotFound(t *testing.T) {
	s := newTestStore(&fakeTable{})
	status := domain.StatusActive

	err := s.UpdateTest(context.Background(), "missing", domain.TestPatch{Status: &status})
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
}

func TestUpdateTest_SameIDSerialized(t *testing.T) {
	table := new(MockRemoteTable)
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	table.On("Update", mock.Anything, "t1", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}).Return(nil)
	s := newTestStore(table)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := "parallel"
			assert.NoError(t, s.UpdateTest(context.Background(), "t1", domain.TestPatch{Title: &title}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	assert.Equal(t, 0, s.records.len(), "record locks are released")
}

func TestDeleteTest_RemovesAndKeepsOrder(t *testing.T) {
	table := &fakeTable{rows: []models.TestRow{activeRow("t3"), activeRow("t2"), activeRow("t1")}}
	s := newTestStore(table)
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.DeleteTest(context.Background(), "t2"))

	_, ok := s.GetTestByID("t2")
	assert.False(t, ok)
	assert.Equal(t, []string{"t3", "t1"}, ids(s.GetAllTests()))
}

func TestGetActiveTests_FiltersInOrder(t *testing.T) {
	rows := []models.TestRow{activeRow("a"), activeRow("b"), activeRow("c"), activeRow("d")}
	rows[0].Status = string(domain.StatusDraft)
	rows[3].Status = string(domain.StatusArchived)
	s := newTestStore(&fakeTable{rows: rows})
	require.NoError(t, s.Initialize(context.Background()))

	assert.Equal(t, []string{"b", "c"}, ids(s.GetActiveTests()))
}

func TestGetAllTests_DefensiveCopy(t *testing.T) {
	row := activeRow("t1")
	row.Questions = models.JSONList[models.Question]{{ID: "q1", Question: "?", Options: []string{"a", "b"}}}
	s := newTestStore(&fakeTable{rows: []models.TestRow{row}})
	require.NoError(t, s.Initialize(context.Background()))

	all := s.GetAllTests()
	all[0].Title = "mutated"
	all[0].Questions[0].Options[0] = "mutated"
	all = append(all[:0], domain.Test{ID: "injected"})

	got, ok := s.GetTestByID("t1")
	require.True(t, ok)
	assert.Equal(t, "Test t1", got.Title)
	assert.Equal(t, "a", got.Questions[0].Options[0])
	assert.Equal(t, []string{"t1"}, ids(s.GetAllTests()))
}

func TestGetTestByID_NotFound(t *testing.T) {
	s := newTestStore(&fakeTable{})
	got, ok := s.GetTestByID("nope")
	assert.False(t, ok)
	assert.Equal(t, domain.Test{}, got)
}

func TestSubscribe_FanOutAfterUpdate(t *testing.T) {
	s := newTestStore(&fakeTable{})
	var first, second int
	var seenByFirst []string
	s.Subscribe(func() {
		first++
		seenByFirst = ids(s.GetAllTests())
	})
	s.Subscribe(func() { second++ })

	_, err := s.AddTest(context.Background(), draftTest("t1"))
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, []string{"t1"}, seenByFirst, "callbacks observe the new record")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := newTestStore(&fakeTable{})
	var a, b int
	unsubA := s.Subscribe(func() { a++ })
	s.Subscribe(func() { b++ })

	s.Clear()
	unsubA()
	unsubA() // idempotent
	s.Clear()

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestSubscribe_SameCallbackTwiceIsIndependent(t *testing.T) {
	s := newTestStore(&fakeTable{})
	calls := 0
	cb := func() { calls++ }
	unsub1 := s.Subscribe(cb)
	s.Subscribe(cb)

	s.Clear()
	assert.Equal(t, 2, calls)

	unsub1()
	s.Clear()
	assert.Equal(t, 3, calls)
}

func TestNotify_OrderAndPanicIsolation(t *testing.T) {
	s := newTestStore(&fakeTable{})
	var order []int
	s.Subscribe(func() { order = append(order, 1) })
	s.Subscribe(func() { panic("subscriber bug") })
	s.Subscribe(func() { order = append(order, 3) })

	assert.NotPanics(t, s.Clear)
	assert.Equal(t, []int{1, 3}, order)
}

func TestNotify_ReentrantMutation(t *testing.T) {
	s := newTestStore(&fakeTable{})
	fired := false
	s.Subscribe(func() {
		if fired {
			return
		}
		fired = true
		status := domain.StatusActive
		assert.NoError(t, s.UpdateTest(context.Background(), "t1", domain.TestPatch{Status: &status}))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.AddTest(context.Background(), draftTest("t1"))
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant mutation from a subscriber deadlocked")
	}
	got, _ := s.GetTestByID("t1")
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestClear(t *testing.T) {
	table := &fakeTable{rows: []models.TestRow{activeRow("t1")}}
	s := newTestStore(table)
	require.NoError(t, s.Initialize(context.Background()))

	notified := 0
	s.Subscribe(func() { notified++ })
	s.Clear()

	assert.False(t, s.Hydrated())
	assert.Empty(t, s.GetAllTests())
	assert.Equal(t, 1, notified)
	assert.Len(t, table.rows, 1, "remote table is untouched")

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 2, table.selects)
}

func TestClear_DiscardsInFlightHydration(t *testing.T) {
	table := new(MockRemoteTable)
	entered, release := blockSelect(table, []models.TestRow{activeRow("t1")})
	s := newTestStore(table)

	done := make(chan error)
	go func() { done <- s.Initialize(context.Background()) }()
	<-entered
	s.Clear()
	close(release)

	assert.NoError(t, <-done)
	assert.False(t, s.Hydrated())
	assert.Empty(t, s.GetAllTests())
}

func TestReload(t *testing.T) {
	table := &fakeTable{rows: []models.TestRow{activeRow("t1")}}
	s := newTestStore(table)
	require.NoError(t, s.Initialize(context.Background()))

	table.rows = append([]models.TestRow{activeRow("t2")}, table.rows...)
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, []string{"t2", "t1"}, ids(s.GetAllTests()))
	assert.Equal(t, 2, table.selects)
}

func TestEndToEnd(t *testing.T) {
	table := &fakeTable{rows: []models.TestRow{activeRow("t1")}}
	s := newTestStore(table)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	assert.Len(t, s.GetAllTests(), 1)

	_, err := s.AddTest(ctx, draftTest("t2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, ids(s.GetAllTests()))

	status := domain.StatusActive
	require.NoError(t, s.UpdateTest(ctx, "t2", domain.TestPatch{Status: &status}))
	assert.Equal(t, []string{"t2", "t1"}, ids(s.GetActiveTests()))

	require.NoError(t, s.DeleteTest(ctx, "t1"))
	assert.Equal(t, []string{"t2"}, ids(s.GetAllTests()))
}
