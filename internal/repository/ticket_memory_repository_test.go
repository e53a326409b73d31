package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigconnect/gigconnect/internal/models"
)

func newTicket(id, seller, buyer string, created time.Time) *models.Ticket {
	return &models.Ticket{
		ID:        id,
		GigID:     "gig-1",
		SellerID:  seller,
		BuyerID:   buyer,
		Status:    models.StatusOpen,
		CreatedAt: created,
	}
}

func TestMemoryTicketRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Insert_And_FindByID", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		tk := newTicket("t1", "s1", "b1", base)

		require.NoError(t, repo.Insert(ctx, tk))
		assert.Equal(t, int64(1), tk.Version)

		got, err := repo.FindByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.SellerID)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("Insert_Duplicate", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		require.NoError(t, repo.Insert(ctx, newTicket("t1", "s1", "b1", base)))
		assert.ErrorIs(t, repo.Insert(ctx, newTicket("t1", "s1", "b1", base)), ErrTicketExists)
	})

	t.Run("FindByID_NotFound", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrTicketNotFound)
	})

	t.Run("Returned_Tickets_Are_Copies", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		require.NoError(t, repo.Insert(ctx, newTicket("t1", "s1", "b1", base)))

		got, err := repo.FindByID(ctx, "t1")
		require.NoError(t, err)
		got.Status = models.StatusClosed
		got.Messages = append(got.Messages, models.Message{Content: "x"})

		again, err := repo.FindByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpen, again.Status)
		assert.Empty(t, again.Messages)
	})

	t.Run("FindByParticipant_NewestFirst", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		require.NoError(t, repo.Insert(ctx, newTicket("old", "s1", "b1", base)))
		require.NoError(t, repo.Insert(ctx, newTicket("new", "s2", "s1", base.Add(time.Hour))))
		require.NoError(t, repo.Insert(ctx, newTicket("other", "s2", "b2", base.Add(2*time.Hour))))

		got, err := repo.FindByParticipant(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "new", got[0].ID)
		assert.Equal(t, "old", got[1].ID)

		none, err := repo.FindByParticipant(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("Save_BumpsVersion", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		repo.now = func() time.Time { return base.Add(time.Minute) }
		require.NoError(t, repo.Insert(ctx, newTicket("t1", "s1", "b1", base)))

		tk, err := repo.FindByID(ctx, "t1")
		require.NoError(t, err)
		tk.Status = models.StatusNegotiating
		require.NoError(t, repo.Save(ctx, tk))
		assert.Equal(t, int64(2), tk.Version)
		assert.Equal(t, base.Add(time.Minute), tk.UpdatedAt)

		stored, err := repo.FindByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusNegotiating, stored.Status)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("Save_StaleVersion", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		require.NoError(t, repo.Insert(ctx, newTicket("t1", "s1", "b1", base)))

		a, _ := repo.FindByID(ctx, "t1")
		b, _ := repo.FindByID(ctx, "t1")

		require.NoError(t, repo.Save(ctx, a))
		assert.ErrorIs(t, repo.Save(ctx, b), ErrVersionConflict)
	})

	t.Run("Save_Missing", func(t *testing.T) {
		repo := NewMemoryTicketRepository()
		assert.ErrorIs(t, repo.Save(ctx, newTicket("t1", "s1", "b1", base)), ErrTicketNotFound)
	})
}
