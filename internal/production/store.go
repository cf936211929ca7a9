package production

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobarin/director/internal/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("production not found")

// Store persists productions. Update applies fn to a private copy and saves the
// result as a whole, atomically with respect to other updates of the same id.
type Store interface {
	Create(ctx context.Context, p *models.Production) error
	Get(ctx context.Context, id uuid.UUID) (*models.Production, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Production) (*models.Production, error)) (*models.Production, error)
	List(ctx context.Context, limit, offset int) ([]*models.Production, int, error)
}

// MemoryStore keeps productions in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Production
	order []uuid.UUID
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[uuid.UUID]*models.Production),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, p *models.Production) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[p.ID]; exists {
		return errors.New("production already exists")
	}
	stored := p.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.items[p.ID] = stored
	s.order = append(s.order, p.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Production, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, fn func(*models.Production) (*models.Production, error)) (*models.Production, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	next = next.Clone()
	next.ID = id
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now()
	s.items[id] = next
	return next.Clone(), nil
}

// List returns productions newest first.
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]*models.Production, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.order)
	out := []*models.Production{}
	for i := total - 1 - offset; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.items[s.order[i]].Clone())
	}
	return out, total, nil
}
