package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"child-health-history/internal/domain/children"
)

var ErrNotFound = errors.New("not found")

type childrenRepo struct {
	mu   sync.RWMutex
	byID map[string]children.Child
}

func NewChildrenRepo() children.Repository {
	return &childrenRepo{
		byID: make(map[string]children.Child),
	}
}

func (r *childrenRepo) Create(ctx context.Context, c children.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(c.ID) == "" {
		return errors.New("child id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("child already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *childrenRepo) Update(ctx context.Context, c children.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(c.ID) == "" {
		return errors.New("child id required")
	}
	if _, exists := r.byID[c.ID]; !exists {
		return ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *childrenRepo) GetByID(ctx context.Context, id string) (children.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return children.Child{}, ErrNotFound
	}
	return c, nil
}

func (r *childrenRepo) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]children.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]children.Child, 0)
	for _, c := range r.byID {
		if c.CaregiverUserID == caregiverUserID {
			out = append(out, c)
		}
	}

	// Orden estable por created_at asc (solo para consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}
