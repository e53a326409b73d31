package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigconnect/gigconnect/internal/models"
)

func newMockUserRepository(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewUserRepository(sqlx.NewDb(db, "sqlmock"))
	repo.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestUserRepository_GetUser(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "credits", "gigs_completed", "completion_rate"}).
			AddRow("s1", "Sam", "sam@example.com", 120.5, 3, 75.0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating FROM seller_ratings")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(5).AddRow(4))

	u, err := repo.GetUser(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", u.Name)
	assert.Equal(t, 120.5, u.Credits)
	assert.Equal(t, []int{5, 4}, u.Ratings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetUserNotFound(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetGig(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM gigs WHERE id = ?")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "seller_id", "rating"}).
			AddRow("g1", "Logo design", 500.0, "s1", 4.5))

	g, err := repo.GetGig(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Logo design", g.Title)
	assert.Equal(t, "s1", g.SellerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreditSeller(t *testing.T) {
	t.Run("Credits", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits = credits + ? WHERE id = ?")).
			WithArgs(500.0, "s1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.CreditSeller(context.Background(), "s1", 500))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownSeller", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits")).
			WithArgs(500.0, "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.CreditSeller(context.Background(), "ghost", 500), ErrUserNotFound)
	})
}

func TestUserRepository_RecordOrder(t *testing.T) {
	repo, mock := newMockUserRepository(t)
	tk := &models.Ticket{ID: "t1", SellerID: "s1", BuyerID: "b1", GigID: "g1"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_history")).
		WithArgs("t1", "s1", "b1", "g1", OrderStatusOpen, repo.now()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordOrder(context.Background(), tk))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RecordCompletion(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE order_history SET status = ?")).
		WithArgs(OrderStatusCompleted, "t1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET gigs_completed = gigs_completed + 1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT gigs_completed FROM users")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"gigs_completed"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM order_history")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET completion_rate = ?")).
		WithArgs(66.67, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stats, err := repo.RecordCompletion(context.Background(), "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.SellerStats{GigsCompleted: 2, TotalOrders: 3, CompletionRate: 66.67}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RecordCompletionRollsBack(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE order_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET gigs_completed = gigs_completed + 1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.RecordCompletion(context.Background(), "ghost", "t1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RecordRating(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seller_ratings")).
		WithArgs("s1", "t1", "g1", 5, repo.now()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating FROM seller_ratings WHERE seller_id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(4).AddRow(4).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE gigs SET rating = ? WHERE id = ?")).
		WithArgs(4.3, "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	avg, err := repo.RecordRating(context.Background(), "s1", "g1", "t1", 5)
	require.NoError(t, err)
	assert.Equal(t, 4.3, avg)
	assert.NoError(t, mock.ExpectationsWereMet())
}
