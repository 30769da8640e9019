package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/repositories"
)

type stubStatusRepo struct {
	insertFn  func(context.Context, domain.OrderStatus) error
	updateFn  func(context.Context, domain.OrderStatus) error
	deleteFn  func(context.Context, int64) error
	findFn    func(context.Context, int64) (domain.OrderStatus, error)
	findByFn  func(context.Context, domain.StatusCode) (domain.OrderStatus, error)
	listAllFn func(context.Context) ([]domain.OrderStatus, error)
}

func (s *stubStatusRepo) Insert(ctx context.Context, status domain.OrderStatus) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, status)
	}
	return nil
}

func (s *stubStatusRepo) Update(ctx context.Context, status domain.OrderStatus) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, status)
	}
	return nil
}

func (s *stubStatusRepo) Delete(ctx context.Context, statusID int64) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, statusID)
	}
	return nil
}

func (s *stubStatusRepo) FindByID(ctx context.Context, statusID int64) (domain.OrderStatus, error) {
	if s.findFn != nil {
		return s.findFn(ctx, statusID)
	}
	return domain.OrderStatus{}, errors.New("not implemented")
}

func (s *stubStatusRepo) FindByStatus(ctx context.Context, code domain.StatusCode) (domain.OrderStatus, error) {
	if s.findByFn != nil {
		return s.findByFn(ctx, code)
	}
	return domain.OrderStatus{}, errors.New("not implemented")
}

func (s *stubStatusRepo) ListAll(ctx context.Context) ([]domain.OrderStatus, error) {
	if s.listAllFn != nil {
		return s.listAllFn(ctx)
	}
	return nil, nil
}

func newTestStatusService(t *testing.T, repo repositories.OrderStatusRepository, counters repositories.CounterRepository) StatusService {
	t.Helper()
	if counters == nil {
		counters = &stubCounterRepo{}
	}
	svc, err := NewStatusService(StatusServiceDeps{Statuses: repo, Counters: counters})
	if err != nil {
		t.Fatalf("NewStatusService returned error: %v", err)
	}
	return svc
}

func TestStatusServiceGetByStatusCachesLookups(t *testing.T) {
	calls := 0
	repo := &stubStatusRepo{
		findByFn: func(_ context.Context, code domain.StatusCode) (domain.OrderStatus, error) {
			calls++
			return domain.OrderStatus{ID: 1, Code: code, Description: domain.StatusDescriptions[code]}, nil
		},
	}
	svc := newTestStatusService(t, repo, nil)

	for i := 0; i < 3; i++ {
		status, err := svc.GetByStatus(domain.StatusPending)
		if err != nil {
			t.Fatalf("GetByStatus returned error: %v", err)
		}
		if status.Code != domain.StatusPending {
			t.Fatalf("unexpected status %q", status.Code)
		}
	}

	if calls != 1 {
		t.Fatalf("expected one repository lookup, got %d", calls)
	}
}

func TestStatusServiceGetByStatusMissing(t *testing.T) {
	repo := &stubStatusRepo{
		findByFn: func(context.Context, domain.StatusCode) (domain.OrderStatus, error) {
			return domain.OrderStatus{}, notFoundRepoError{}
		},
	}
	svc := newTestStatusService(t, repo, nil)

	_, err := svc.GetByStatus(domain.StatusCode("order_unknown"))
	if !errors.Is(err, ErrStatusNotFound) {
		t.Fatalf("expected ErrStatusNotFound, got %v", err)
	}
}

func TestStatusServiceCreateAssignsCounterID(t *testing.T) {
	var inserted domain.OrderStatus
	repo := &stubStatusRepo{
		insertFn: func(_ context.Context, status domain.OrderStatus) error {
			inserted = status
			return nil
		},
	}
	counters := &stubCounterRepo{
		nextFn: func(_ context.Context, counterID string, _ int64) (int64, error) {
			if counterID != statusCounterID {
				t.Fatalf("unexpected counter id %q", counterID)
			}
			return 13, nil
		},
	}
	svc := newTestStatusService(t, repo, counters)

	status, err := svc.Create(context.Background(), UpsertStatusCommand{
		Code:        "order_on_hold",
		Description: "Pedido em espera",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if status.ID != 13 {
		t.Fatalf("expected id 13, got %d", status.ID)
	}
	if inserted.Code != "order_on_hold" {
		t.Fatalf("unexpected inserted code %q", inserted.Code)
	}
}

func TestStatusServiceCreateRequiresCode(t *testing.T) {
	svc := newTestStatusService(t, &stubStatusRepo{}, nil)

	_, err := svc.Create(context.Background(), UpsertStatusCommand{Description: "x"})
	if !errors.Is(err, ErrStatusInvalidInput) {
		t.Fatalf("expected ErrStatusInvalidInput, got %v", err)
	}
}

func TestStatusServiceUpdateEvictsRenamedCode(t *testing.T) {
	repo := &stubStatusRepo{
		findFn: func(_ context.Context, statusID int64) (domain.OrderStatus, error) {
			return domain.OrderStatus{ID: statusID, Code: "order_old", Description: "old"}, nil
		},
		findByFn: func(context.Context, domain.StatusCode) (domain.OrderStatus, error) {
			return domain.OrderStatus{}, notFoundRepoError{}
		},
	}
	svc := newTestStatusService(t, repo, nil)

	// Warm the cache with the old code, then rename it.
	if _, err := svc.Create(context.Background(), UpsertStatusCommand{ID: 20, Code: "order_old", Description: "old"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Update(context.Background(), UpsertStatusCommand{ID: 20, Code: "order_new", Description: "new"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if _, err := svc.GetByStatus("order_old"); !errors.Is(err, ErrStatusNotFound) {
		t.Fatalf("expected stale code to be evicted, got %v", err)
	}
	status, err := svc.GetByStatus("order_new")
	if err != nil {
		t.Fatalf("GetByStatus returned error: %v", err)
	}
	if status.Description != "new" {
		t.Fatalf("expected updated description, got %q", status.Description)
	}
}

func TestStatusServiceSeedEmptyCatalog(t *testing.T) {
	inserted := make([]domain.OrderStatus, 0, len(domain.AllStatusCodes))
	configured := false
	repo := &stubStatusRepo{
		listAllFn: func(context.Context) ([]domain.OrderStatus, error) {
			return nil, nil
		},
		insertFn: func(_ context.Context, status domain.OrderStatus) error {
			inserted = append(inserted, status)
			return nil
		},
	}
	counters := &configurableCounterRepo{configureFn: func(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
		configured = true
		if counterID != statusCounterID {
			t.Fatalf("unexpected counter id %q", counterID)
		}
		if cfg.InitialValue == nil || *cfg.InitialValue != int64(len(domain.AllStatusCodes)) {
			t.Fatalf("unexpected initial value: %+v", cfg.InitialValue)
		}
		return nil
	}}

	svc := newTestStatusService(t, repo, counters)
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}

	if len(inserted) != len(domain.AllStatusCodes) {
		t.Fatalf("expected %d inserts, got %d", len(domain.AllStatusCodes), len(inserted))
	}
	if inserted[0].ID != 1 || inserted[0].Code != domain.StatusPending {
		t.Fatalf("expected pending with id 1 first, got %+v", inserted[0])
	}
	last := inserted[len(inserted)-1]
	if last.ID != int64(len(domain.AllStatusCodes)) {
		t.Fatalf("expected sequential ids, got %+v", last)
	}
	if !configured {
		t.Fatal("expected counter to be configured after seeding")
	}

	// Seeded entries back the context-free lookup immediately.
	status, err := svc.GetByStatus(domain.StatusPlaced)
	if err != nil {
		t.Fatalf("GetByStatus returned error: %v", err)
	}
	if status.Description != domain.StatusDescriptions[domain.StatusPlaced] {
		t.Fatalf("unexpected description %q", status.Description)
	}
}

func TestStatusServiceSeedIsIdempotent(t *testing.T) {
	existing := make([]domain.OrderStatus, 0, len(domain.AllStatusCodes))
	for i, code := range domain.AllStatusCodes {
		existing = append(existing, domain.OrderStatus{
			ID:          int64(i) + 1,
			Code:        code,
			Description: domain.StatusDescriptions[code],
		})
	}

	inserts := 0
	repo := &stubStatusRepo{
		listAllFn: func(context.Context) ([]domain.OrderStatus, error) {
			return existing, nil
		},
		insertFn: func(context.Context, domain.OrderStatus) error {
			inserts++
			return nil
		},
	}

	svc := newTestStatusService(t, repo, nil)
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	if inserts != 0 {
		t.Fatalf("expected no inserts on a complete catalog, got %d", inserts)
	}
}

func TestStatusServiceDeleteEvictsCache(t *testing.T) {
	repo := &stubStatusRepo{
		findFn: func(_ context.Context, statusID int64) (domain.OrderStatus, error) {
			return domain.OrderStatus{ID: statusID, Code: "order_on_hold", Description: "Pedido em espera"}, nil
		},
		findByFn: func(context.Context, domain.StatusCode) (domain.OrderStatus, error) {
			return domain.OrderStatus{}, notFoundRepoError{}
		},
	}
	svc := newTestStatusService(t, repo, nil)

	if _, err := svc.Create(context.Background(), UpsertStatusCommand{ID: 13, Code: "order_on_hold", Description: "Pedido em espera"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := svc.Delete(context.Background(), 13); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := svc.GetByStatus("order_on_hold"); !errors.Is(err, ErrStatusNotFound) {
		t.Fatalf("expected evicted code to miss, got %v", err)
	}
}

type configurableCounterRepo struct {
	stubCounterRepo
	configureFn func(context.Context, string, repositories.CounterConfig) error
}

func (c *configurableCounterRepo) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	if c.configureFn != nil {
		return c.configureFn(ctx, counterID, cfg)
	}
	return nil
}
