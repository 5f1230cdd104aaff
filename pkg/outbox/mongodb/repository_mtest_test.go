package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/kanban-platform/replenishment-service/pkg/outbox"
)

func TestOutboxRepository_Constructors(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("default collection", func(mt *mtest.T) {
		repo := NewOutboxRepository(mt.DB)
		require.NotNil(t, repo)
		assert.Equal(t, DefaultCollectionName, repo.collection.Name())
	})

	mt.Run("custom collection", func(mt *mtest.T) {
		repo := NewOutboxRepositoryWithCollection(mt.DB, "order_outbox")
		require.NotNil(t, repo)
		assert.Equal(t, "order_outbox", repo.collection.Name())
	})
}

func TestOutboxRepository_MockOps(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("operations", func(mt *mtest.T) {
		repo := NewOutboxRepository(mt.DB)
		ctx := context.Background()
		ns := mt.DB.Name() + "." + DefaultCollectionName

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := repo.Save(ctx, &outbox.OutboxEvent{
			ID:          "evt-1",
			AggregateID: "order-1",
			EventType:   "kanban.order.requested",
			CreatedAt:   time.Now(),
		})
		require.NoError(t, err)

		err = repo.SaveAll(ctx, nil)
		require.NoError(t, err)

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err = repo.SaveAll(ctx, []*outbox.OutboxEvent{{ID: "evt-2", AggregateID: "order-1"}})
		require.NoError(t, err)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "evt-3"},
			{Key: "aggregateId", Value: "order-2"},
			{Key: "eventType", Value: "kanban.order.dispatched"},
		}))
		list, err := repo.FindUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "evt-3", list[0].ID)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		err = repo.MarkPublished(ctx, "evt-1")
		require.NoError(t, err)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err = repo.MarkPublished(ctx, "missing")
		require.Error(t, err)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		err = repo.IncrementRetry(ctx, "evt-1", "broker unreachable")
		require.NoError(t, err)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err = repo.IncrementRetry(ctx, "missing", "broker unreachable")
		require.Error(t, err)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))
		err = repo.DeletePublished(ctx, 3600)
		require.NoError(t, err)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "evt-1"},
			{Key: "aggregateId", Value: "order-1"},
		}))
		event, err := repo.GetByID(ctx, "evt-1")
		require.NoError(t, err)
		require.NotNil(t, event)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		event, err = repo.GetByID(ctx, "missing")
		require.NoError(t, err)
		require.Nil(t, event)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "evt-2"},
			{Key: "aggregateId", Value: "order-1"},
		}))
		list, err = repo.FindByAggregateID(ctx, "order-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}
