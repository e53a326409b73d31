package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/gigconnect/gigconnect/internal/models"
)

func TestMongoTicketRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ticketDoc := func(id string, version int64) bson.D {
		return bson.D{
			{Key: "_id", Value: id},
			{Key: "gigId", Value: "g1"},
			{Key: "sellerId", Value: "s1"},
			{Key: "buyerId", Value: "b1"},
			{Key: "status", Value: "negotiating"},
			{Key: "agreedPrice", Value: 500.0},
			{Key: "messages", Value: bson.A{
				bson.D{{Key: "senderId", Value: "b1"}, {Key: "senderName", Value: "Bea"}, {Key: "content", Value: "hello"}},
			}},
			{Key: "timeline", Value: bson.A{}},
			{Key: "version", Value: version},
			{Key: "createdAt", Value: created},
		}
	}

	mt.Run("FindByID", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, ticketDoc("t1", 3)))

		tk, err := repo.FindByID(ctx, "t1")
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusNegotiating, tk.Status)
		require.NotNil(mt, tk.AgreedPrice)
		assert.Equal(mt, 500.0, *tk.AgreedPrice)
		assert.Equal(mt, int64(3), tk.Version)
		require.Len(mt, tk.Messages, 1)
		assert.Equal(mt, "hello", tk.Messages[0].Content)
	})

	mt.Run("FindByID_NotFound", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(mt, err, ErrTicketNotFound)
	})

	mt.Run("FindByParticipant", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, ticketDoc("t2", 1), ticketDoc("t1", 1)))

		got, err := repo.FindByParticipant(ctx, "s1")
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "t2", got[0].ID)
	})

	mt.Run("Insert_Duplicate", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		err := repo.Insert(ctx, &models.Ticket{ID: "t1"})
		assert.ErrorIs(mt, err, ErrTicketExists)
	})

	mt.Run("Save", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		tk := &models.Ticket{ID: "t1", Version: 4}
		require.NoError(mt, repo.Save(ctx, tk))
		assert.Equal(mt, int64(5), tk.Version)
	})

	mt.Run("Save_Conflict", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		tk := &models.Ticket{ID: "t1", Version: 4}
		assert.ErrorIs(mt, repo.Save(ctx, tk), ErrVersionConflict)
		assert.Equal(mt, int64(4), tk.Version)
	})

	mt.Run("Save_Missing", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		assert.ErrorIs(mt, repo.Save(ctx, &models.Ticket{ID: "t1", Version: 1}), ErrTicketNotFound)
	})
}
