package service

import (
	"context"
	"time"

	"placement-tests/internal/domain"
	"placement-tests/internal/logger"

	"go.uber.org/zap"
)

// TestCache is the part of store.TestStore the service drives.
type TestCache interface {
	Initialize(ctx context.Context) error
	Hydrated() bool
	Reload(ctx context.Context) error
	GetAllTests() []domain.Test
	GetActiveTests() []domain.Test
	GetTestByID(id string) (domain.Test, bool)
	AddTest(ctx context.Context, test domain.Test) (domain.Test, error)
	UpdateTest(ctx context.Context, id string, patch domain.TestPatch) error
	DeleteTest(ctx context.Context, id string) error
	Clear()
}

// SyncResult reports the outcome of an explicit hydration request.
type SyncResult struct {
	Hydrated bool `json:"hydrated"`
	Count    int  `json:"count"`
}

// TestService defines the operations exposed over HTTP.
type TestService interface {
	Sync(ctx context.Context) (SyncResult, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
	ListActiveTests(ctx context.Context) ([]domain.Test, error)
	GetTest(ctx context.Context, id string) (domain.Test, error)
	CreateTest(ctx context.Context, test domain.Test) (domain.Test, error)
	UpdateTest(ctx context.Context, id string, patch domain.TestPatch) (domain.Test, error)
	DeleteTest(ctx context.Context, id string) error
	ClearCache(ctx context.Context)
	Listen(ctx context.Context) error
}

type testService struct {
	store          TestCache
	bus            domain.ChangeBus      // nil when Redis is not configured
	publisher      domain.EventPublisher // nil-safe
	instanceID     string
	hydrateTimeout time.Duration
	now            func() time.Time
}

// NewTestService creates a new instance of testService. bus and publisher may be nil.
func NewTestService(store TestCache, bus domain.ChangeBus, publisher domain.EventPublisher, instanceID string, hydrateTimeout time.Duration) TestService {
	return &testService{
		store:          store,
		bus:            bus,
		publisher:      publisher,
		instanceID:     instanceID,
		hydrateTimeout: hydrateTimeout,
		now:            time.Now,
	}
}

func (s *testService) initialize(ctx context.Context) error {
	if s.store.Hydrated() {
		return nil
	}
	if s.hydrateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.hydrateTimeout)
		defer cancel()
	}
	return s.store.Initialize(ctx)
}

func (s *testService) Sync(ctx context.Context) (SyncResult, error) {
	if err := s.initialize(ctx); err != nil {
		return SyncResult{Hydrated: false}, err
	}
	return SyncResult{Hydrated: s.store.Hydrated(), Count: len(s.store.GetAllTests())}, nil
}

func (s *testService) ListTests(ctx context.Context) ([]domain.Test, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	return s.store.GetAllTests(), nil
}

func (s *testService) ListActiveTests(ctx context.Context) ([]domain.Test, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	return s.store.GetActiveTests(), nil
}

func (s *testService) GetTest(ctx context.Context, id string) (domain.Test, error) {
	if err := s.initialize(ctx); err != nil {
		return domain.Test{}, err
	}
	test, ok := s.store.GetTestByID(id)
	if !ok {
		return domain.Test{}, domain.NewTestNotFoundError(id)
	}
	return test, nil
}

// CreateTest fills derived fields, validates, and stores the test.
func (s *testService) CreateTest(ctx context.Context, test domain.Test) (domain.Test, error) {
	if test.Status == "" {
		test.Status = domain.StatusDraft
	}
	test.QuestionGroups = append([]domain.QuestionGroup(nil), test.QuestionGroups...)
	for i := range test.QuestionGroups {
		test.QuestionGroups[i].Recalculate()
	}
	if test.TotalQuestions == 0 {
		test.TotalQuestions = len(test.Questions)
	}
	if err := test.Validate(); err != nil {
		return domain.Test{}, err
	}

	created, err := s.store.AddTest(ctx, test)
	if err != nil {
		return domain.Test{}, err
	}
	s.broadcast(ctx, domain.ChangeCreated, created.ID, created.Status)
	return created, nil
}

// UpdateTest applies patch and returns the merged record.
func (s *testService) UpdateTest(ctx context.Context, id string, patch domain.TestPatch) (domain.Test, error) {
	if patch.IsEmpty() {
		return domain.Test{}, domain.NewInvalidInputError("update must change at least one field")
	}
	if patch.QuestionGroups != nil {
		groups := append([]domain.QuestionGroup(nil), (*patch.QuestionGroups)...)
		for i := range groups {
			groups[i].Recalculate()
		}
		patch.QuestionGroups = &groups
	}
	if err := patch.Validate(); err != nil {
		return domain.Test{}, err
	}
	if current, ok := s.store.GetTestByID(id); ok {
		if err := patch.ValidateAgainst(current); err != nil {
			return domain.Test{}, err
		}
	}

	if err := s.store.UpdateTest(ctx, id, patch); err != nil {
		return domain.Test{}, err
	}

	updated, ok := s.store.GetTestByID(id)
	if !ok {
		// written remotely but never cached here; pick it up from the table
		if err := s.store.Reload(ctx); err != nil {
			logger.Get().Warn("Reload after uncached update failed", zap.String("testID", id), zap.Error(err))
		}
		if updated, ok = s.store.GetTestByID(id); !ok {
			return domain.Test{}, domain.NewTestNotFoundError(id)
		}
	}
	s.broadcast(ctx, domain.ChangeUpdated, id, updated.Status)
	return updated, nil
}

func (s *testService) DeleteTest(ctx context.Context, id string) error {
	if err := s.store.DeleteTest(ctx, id); err != nil {
		return err
	}
	s.broadcast(ctx, domain.ChangeDeleted, id, "")
	return nil
}

// ClearCache drops this instance's cache only. Other instances are not told
// to clear; the broker still records the event.
func (s *testService) ClearCache(ctx context.Context) {
	s.store.Clear()
	s.publish(ctx, s.event(domain.ChangeCleared, "", ""))
}

func (s *testService) event(typ domain.ChangeType, id string, status domain.TestStatus) domain.ChangeEvent {
	return domain.ChangeEvent{
		Type:       typ,
		TestID:     id,
		Status:     status,
		Source:     s.instanceID,
		OccurredAt: s.now().UTC(),
	}
}

// broadcast tells other instances and downstream consumers about a committed
// write. Failures are logged and never fail the write.
func (s *testService) broadcast(ctx context.Context, typ domain.ChangeType, id string, status domain.TestStatus) {
	event := s.event(typ, id, status)
	if s.bus != nil {
		if err := s.bus.Publish(ctx, event); err != nil {
			logger.Get().Error("Failed to publish change event", zap.String("type", string(typ)), zap.String("testID", id), zap.Error(err))
		}
	}
	s.publish(ctx, event)
}

func (s *testService) publish(ctx context.Context, event domain.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTestEvent(ctx, event); err != nil {
		logger.Get().Error("Failed to publish lifecycle event", zap.String("type", string(event.Type)), zap.String("testID", event.TestID), zap.Error(err))
	}
}

// Listen reloads the cache whenever another instance reports a write. It
// returns when ctx is cancelled or the bus closes the subscription.
func (s *testService) Listen(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	events, closeFn, err := s.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	l := logger.Get()
	l.Info("Listening for test changes from other instances", zap.String("instanceID", s.instanceID))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Source == s.instanceID || event.Type == domain.ChangeCleared {
				continue
			}
			l.Debug("Reloading after remote change", zap.String("type", string(event.Type)), zap.String("testID", event.TestID), zap.String("source", event.Source))
			if err := s.store.Reload(ctx); err != nil {
				l.Error("Failed to reload test store after remote change", zap.Error(err))
			}
		}
	}
}
