package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gigconnect/gigconnect/internal/models"
)

// MemoryTicketRepository keeps tickets in process memory. It applies the same
// version check as the MongoDB repository and is used for development and tests.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*models.Ticket
	now     func() time.Time
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[string]*models.Ticket),
		now:     time.Now,
	}
}

func (r *MemoryTicketRepository) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t.Clone(), nil
}

// FindByParticipant returns the user's tickets, newest first.
func (r *MemoryTicketRepository) FindByParticipant(_ context.Context, userID string) ([]*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Ticket, 0)
	for _, t := range r.tickets {
		if t.IsParticipant(userID) {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTicketRepository) Insert(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[t.ID]; exists {
		return ErrTicketExists
	}
	if t.Version == 0 {
		t.Version = 1
	}
	r.tickets[t.ID] = t.Clone()
	return nil
}

// Save replaces the stored ticket when its version equals t.Version, then
// bumps t.Version.
func (r *MemoryTicketRepository) Save(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[t.ID]
	if !ok {
		return ErrTicketNotFound
	}
	if stored.Version != t.Version {
		return ErrVersionConflict
	}
	t.Version++
	t.UpdatedAt = r.now()
	r.tickets[t.ID] = t.Clone()
	return nil
}
