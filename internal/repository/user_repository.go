package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gigconnect/gigconnect/internal/models"
)

// Order history statuses.
const (
	OrderStatusOpen      = "open"
	OrderStatusCompleted = "completed"
)

// UserRepository is the SQL-backed user and gig directory.
type UserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// GetUser loads a user together with the ratings buyers gave them.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`
		SELECT id, name, email, credits, gigs_completed, completion_rate
		FROM users
		WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get user %s: %w", id, err)
	}

	u.Ratings = []int{}
	if err := r.db.SelectContext(ctx, &u.Ratings, r.db.Rebind(`
		SELECT rating FROM seller_ratings
		WHERE seller_id = ?
		ORDER BY create_time ASC`), id); err != nil {
		return nil, fmt.Errorf("repository: get ratings for %s: %w", id, err)
	}
	return &u, nil
}

func (r *UserRepository) GetGig(ctx context.Context, id string) (*models.Gig, error) {
	var g models.Gig
	err := r.db.GetContext(ctx, &g, r.db.Rebind(`
		SELECT id, title, price, seller_id, rating
		FROM gigs
		WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get gig %s: %w", id, err)
	}
	return &g, nil
}

// CreateUser inserts a directory entry. It is used for seeding.
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, name, email, credits, gigs_completed, completion_rate)
		VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, u.Name, u.Email, u.Credits, u.GigsCompleted, u.CompletionRate)
	if err != nil {
		return fmt.Errorf("repository: create user %s: %w", u.ID, err)
	}
	return nil
}

// CreateGig inserts a gig. It is used for seeding.
func (r *UserRepository) CreateGig(ctx context.Context, g *models.Gig) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO gigs (id, title, price, seller_id, rating)
		VALUES (?, ?, ?, ?, ?)`),
		g.ID, g.Title, g.Price, g.SellerID, g.Rating)
	if err != nil {
		return fmt.Errorf("repository: create gig %s: %w", g.ID, err)
	}
	return nil
}

// CreditSeller adds amount to the seller's credit balance.
func (r *UserRepository) CreditSeller(ctx context.Context, sellerID string, amount float64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET credits = credits + ? WHERE id = ?`), amount, sellerID)
	if err != nil {
		return fmt.Errorf("repository: credit seller %s: %w", sellerID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordOrder adds the order-history row a ticket completes against.
func (r *UserRepository) RecordOrder(ctx context.Context, t *models.Ticket) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO order_history (ticket_id, seller_id, buyer_id, gig_id, status, create_time)
		VALUES (?, ?, ?, ?, ?, ?)`),
		t.ID, t.SellerID, t.BuyerID, t.GigID, OrderStatusOpen, r.now())
	if err != nil {
		return fmt.Errorf("repository: record order %s: %w", t.ID, err)
	}
	return nil
}

// RecordCompletion marks the order completed, increments the seller's
// completed-gig counter and recomputes the completion rate against the
// seller's order history, all in one transaction.
func (r *UserRepository) RecordCompletion(ctx context.Context, sellerID, ticketID string) (stats models.SellerStats, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("repository: begin completion: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE order_history SET status = ? WHERE ticket_id = ? AND seller_id = ?`),
		OrderStatusCompleted, ticketID, sellerID); err != nil {
		return stats, fmt.Errorf("repository: complete order %s: %w", ticketID, err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE users SET gigs_completed = gigs_completed + 1 WHERE id = ?`), sellerID)
	if err != nil {
		return stats, fmt.Errorf("repository: increment completed gigs: %w", err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		err = ErrUserNotFound
		return stats, err
	}

	if err = tx.GetContext(ctx, &stats.GigsCompleted, tx.Rebind(`
		SELECT gigs_completed FROM users WHERE id = ?`), sellerID); err != nil {
		return stats, fmt.Errorf("repository: read completed gigs: %w", err)
	}
	if err = tx.GetContext(ctx, &stats.TotalOrders, tx.Rebind(`
		SELECT COUNT(*) FROM order_history WHERE seller_id = ?`), sellerID); err != nil {
		return stats, fmt.Errorf("repository: count orders: %w", err)
	}

	stats.CompletionRate = models.CompletionRate(stats.GigsCompleted, stats.TotalOrders)
	if _, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE users SET completion_rate = ? WHERE id = ?`), stats.CompletionRate, sellerID); err != nil {
		return stats, fmt.Errorf("repository: update completion rate: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return stats, fmt.Errorf("repository: commit completion: %w", err)
	}
	return stats, nil
}

// RecordRating appends a rating to the seller and sets the gig rating to the
// mean of all the seller's ratings. Both writes share one transaction.
func (r *UserRepository) RecordRating(ctx context.Context, sellerID, gigID, ticketID string, rating int) (avg float64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("repository: begin rating: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO seller_ratings (seller_id, ticket_id, gig_id, rating, create_time)
		VALUES (?, ?, ?, ?, ?)`),
		sellerID, ticketID, gigID, rating, r.now()); err != nil {
		return 0, fmt.Errorf("repository: insert rating: %w", err)
	}

	var ratings []int
	if err = tx.SelectContext(ctx, &ratings, tx.Rebind(`
		SELECT rating FROM seller_ratings WHERE seller_id = ?`), sellerID); err != nil {
		return 0, fmt.Errorf("repository: read ratings: %w", err)
	}

	avg = models.AverageRating(ratings)
	if _, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE gigs SET rating = ? WHERE id = ?`), avg, gigID); err != nil {
		return 0, fmt.Errorf("repository: update gig rating: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("repository: commit rating: %w", err)
	}
	return avg, nil
}
