package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/repositories"
)

const statusCounterID = "orderStatuses"

var (
	// ErrStatusInvalidInput signals the caller provided invalid catalog data.
	ErrStatusInvalidInput = errors.New("status: invalid input")
	// ErrStatusNotFound indicates the catalog entry could not be located.
	ErrStatusNotFound = errors.New("status: not found")
	// ErrStatusConflict indicates a duplicate id or status code.
	ErrStatusConflict = errors.New("status: conflict")
)

// StatusServiceDeps bundles collaborators required to construct the status service.
type StatusServiceDeps struct {
	Statuses repositories.OrderStatusRepository
	Counters repositories.CounterRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type statusService struct {
	statuses repositories.OrderStatusRepository
	counters repositories.CounterRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)

	mu    sync.RWMutex
	cache map[domain.StatusCode]domain.OrderStatus
}

// NewStatusService wires dependencies into a concrete StatusService implementation.
func NewStatusService(deps StatusServiceDeps) (StatusService, error) {
	if deps.Statuses == nil {
		return nil, errors.New("status service: status repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("status service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &statusService{
		statuses: deps.Statuses,
		counters: deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		cache:  make(map[domain.StatusCode]domain.OrderStatus),
	}, nil
}

// GetByStatus resolves a status code for the domain layer. The lookup is
// context free, so cache misses fall through to the repository with a
// background context and refill the cache on success.
func (s *statusService) GetByStatus(code domain.StatusCode) (domain.OrderStatus, error) {
	s.mu.RLock()
	status, ok := s.cache[code]
	s.mu.RUnlock()
	if ok {
		return status, nil
	}

	status, err := s.statuses.FindByStatus(context.Background(), code)
	if err != nil {
		return domain.OrderStatus{}, s.mapRepositoryError(fmt.Errorf("status %q: %w", code, err))
	}

	s.mu.Lock()
	s.cache[status.Code] = status
	s.mu.Unlock()
	return status, nil
}

func (s *statusService) List(ctx context.Context) ([]domain.OrderStatus, error) {
	statuses, err := s.statuses.ListAll(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	s.fillCache(statuses)
	return statuses, nil
}

func (s *statusService) GetByID(ctx context.Context, statusID int64) (domain.OrderStatus, error) {
	if statusID <= 0 {
		return domain.OrderStatus{}, fmt.Errorf("%w: status id is required", ErrStatusInvalidInput)
	}
	status, err := s.statuses.FindByID(ctx, statusID)
	if err != nil {
		return domain.OrderStatus{}, s.mapRepositoryError(err)
	}
	return status, nil
}

func (s *statusService) GetByCode(ctx context.Context, code domain.StatusCode) (domain.OrderStatus, error) {
	if strings.TrimSpace(string(code)) == "" {
		return domain.OrderStatus{}, fmt.Errorf("%w: status code is required", ErrStatusInvalidInput)
	}
	status, err := s.statuses.FindByStatus(ctx, code)
	if err != nil {
		return domain.OrderStatus{}, s.mapRepositoryError(err)
	}
	return status, nil
}

func (s *statusService) Create(ctx context.Context, cmd UpsertStatusCommand) (domain.OrderStatus, error) {
	status, err := s.buildStatus(cmd)
	if err != nil {
		return domain.OrderStatus{}, err
	}

	if status.ID == 0 {
		id, err := s.counters.Next(ctx, statusCounterID, 1)
		if err != nil {
			return domain.OrderStatus{}, s.mapRepositoryError(err)
		}
		status.ID = id
	}

	if err := s.statuses.Insert(ctx, status); err != nil {
		return domain.OrderStatus{}, s.mapRepositoryError(err)
	}
	s.storeCached(status)

	s.logger(ctx, "status.created", map[string]any{
		"status": string(status.Code),
		"id":     status.ID,
	})
	return status, nil
}

func (s *statusService) Update(ctx context.Context, cmd UpsertStatusCommand) (domain.OrderStatus, error) {
	if cmd.ID <= 0 {
		return domain.OrderStatus{}, fmt.Errorf("%w: status id is required", ErrStatusInvalidInput)
	}
	status, err := s.buildStatus(cmd)
	if err != nil {
		return domain.OrderStatus{}, err
	}

	current, err := s.statuses.FindByID(ctx, cmd.ID)
	if err != nil {
		return domain.OrderStatus{}, s.mapRepositoryError(err)
	}

	if err := s.statuses.Update(ctx, status); err != nil {
		return domain.OrderStatus{}, s.mapRepositoryError(err)
	}

	s.mu.Lock()
	if current.Code != status.Code {
		delete(s.cache, current.Code)
	}
	s.cache[status.Code] = status
	s.mu.Unlock()

	return status, nil
}

func (s *statusService) Delete(ctx context.Context, statusID int64) error {
	if statusID <= 0 {
		return fmt.Errorf("%w: status id is required", ErrStatusInvalidInput)
	}

	status, err := s.statuses.FindByID(ctx, statusID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	if err := s.statuses.Delete(ctx, statusID); err != nil {
		return s.mapRepositoryError(err)
	}

	s.mu.Lock()
	delete(s.cache, status.Code)
	s.mu.Unlock()

	s.logger(ctx, "status.deleted", map[string]any{
		"status": string(status.Code),
		"id":     statusID,
	})
	return nil
}

// Seed inserts the canonical lifecycle statuses that are missing from the
// catalog. IDs follow the canonical sequence on an empty catalog; otherwise
// new entries take counter-issued ids so existing rows keep theirs.
func (s *statusService) Seed(ctx context.Context) error {
	existing, err := s.statuses.ListAll(ctx)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	known := make(map[domain.StatusCode]bool, len(existing))
	maxID := int64(0)
	for _, status := range existing {
		known[status.Code] = true
		if status.ID > maxID {
			maxID = status.ID
		}
	}

	inserted := 0
	for i, code := range domain.AllStatusCodes {
		if known[code] {
			continue
		}

		var id int64
		if len(existing) == 0 {
			id = int64(i) + 1
		} else {
			id, err = s.counters.Next(ctx, statusCounterID, 1)
			if err != nil {
				return s.mapRepositoryError(err)
			}
		}

		status := domain.OrderStatus{
			ID:          id,
			Code:        code,
			Description: domain.StatusDescriptions[code],
		}
		if err := s.statuses.Insert(ctx, status); err != nil {
			return s.mapRepositoryError(err)
		}
		s.storeCached(status)
		if id > maxID {
			maxID = id
		}
		inserted++
	}

	if inserted > 0 {
		initial := maxID
		if err := s.counters.Configure(ctx, statusCounterID, repositories.CounterConfig{
			Step:         1,
			InitialValue: &initial,
		}); err != nil {
			return s.mapRepositoryError(err)
		}
	}

	s.logger(ctx, "status.seeded", map[string]any{
		"inserted": inserted,
		"existing": len(existing),
	})
	return nil
}

func (s *statusService) buildStatus(cmd UpsertStatusCommand) (domain.OrderStatus, error) {
	code := domain.StatusCode(strings.TrimSpace(string(cmd.Code)))
	if code == "" {
		return domain.OrderStatus{}, fmt.Errorf("%w: status code is required", ErrStatusInvalidInput)
	}

	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		description = domain.StatusDescriptions[code]
	}
	if description == "" {
		return domain.OrderStatus{}, fmt.Errorf("%w: description is required", ErrStatusInvalidInput)
	}

	return domain.OrderStatus{
		ID:          cmd.ID,
		Code:        code,
		Description: description,
	}, nil
}

func (s *statusService) fillCache(statuses []domain.OrderStatus) {
	s.mu.Lock()
	for _, status := range statuses {
		s.cache[status.Code] = status
	}
	s.mu.Unlock()
}

func (s *statusService) storeCached(status domain.OrderStatus) {
	s.mu.Lock()
	s.cache[status.Code] = status
	s.mu.Unlock()
}

func (s *statusService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrStatusNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrStatusConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("status: repository unavailable: %w", err)
		}
	}
	return err
}
