package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	"github.com/kanban-platform/replenishment-service/pkg/cloudevents"
	"github.com/kanban-platform/replenishment-service/pkg/kafka"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
	mongopkg "github.com/kanban-platform/replenishment-service/pkg/mongodb"
	"github.com/kanban-platform/replenishment-service/pkg/outbox"
	outboxMongo "github.com/kanban-platform/replenishment-service/pkg/outbox/mongodb"
)

const (
	activeOrdersCollection    = "active_orders"
	completedOrdersCollection = "completed_orders"
)

// OrderRepository persists the order aggregate across the active and
// completed stores, appending lifecycle events to the outbox in the same
// transaction as every state change.
type OrderRepository struct {
	client       *mongopkg.GuardedClient
	active       *mongopkg.GuardedCollection
	completed    *mongopkg.GuardedCollection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
	logger       *logging.Logger
}

// NewOrderRepository creates an OrderRepository and ensures its indexes
func NewOrderRepository(client *mongopkg.GuardedClient, eventFactory *cloudevents.EventFactory, logger *logging.Logger) *OrderRepository {
	repo := &OrderRepository{
		client:       client,
		active:       client.Collection(activeOrdersCollection),
		completed:    client.Collection(completedOrdersCollection),
		outboxRepo:   outboxMongo.NewOutboxRepository(client.Database()),
		eventFactory: eventFactory,
		logger:       logger,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *OrderRepository) ensureIndexes(ctx context.Context) {
	activeIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		// One active order per card, enforced by the server even under
		// concurrent scans. Requires MongoDB >= 6.0 for $in in the
		// partial filter expression.
		{
			Keys: bson.D{{Key: "cardId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{
						string(domain.OrderStatusPending),
						string(domain.OrderStatusInTransit),
					}},
				}),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: 1}, {Key: "status", Value: 1}}},
	}
	completedIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "deliveredAt", Value: -1}}},
		{Keys: bson.D{{Key: "partNumber", Value: 1}}},
		{Keys: bson.D{{Key: "deliveredBy", Value: 1}}},
	}

	r.active.Underlying().Indexes().CreateMany(ctx, activeIndexes)
	r.completed.Underlying().Indexes().CreateMany(ctx, completedIndexes)
	_ = r.outboxRepo.EnsureIndexes(ctx)
}

// Create inserts a new PENDING order together with its outbox events.
// A duplicate-key rejection from the partial unique index means the card
// already has an active order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.active.Underlying().InsertOne(sessCtx, order); err != nil {
			return err
		}
		return r.saveOutboxEvents(sessCtx, order)
	})
	if err != nil {
		if mongopkg.IsDuplicateKey(err) {
			return domain.ErrDuplicateActiveOrder
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.ClearDomainEvents()
	return nil
}

// Transition persists an in-place status change. The filter carries the
// expected previous status so a lost race matches nothing and nothing is
// written.
func (r *OrderRepository) Transition(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := mongopkg.BuildStatusGuard("orderId", order.OrderID, "status", string(expected))
		result, err := r.active.Underlying().UpdateOne(sessCtx, filter, bson.M{"$set": order})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return domain.ErrTransitionConflict
		}
		return r.saveOutboxEvents(sessCtx, order)
	})
	if err != nil {
		if err == domain.ErrTransitionConflict || mongopkg.IsDuplicateKey(err) {
			return domain.ErrTransitionConflict
		}
		return fmt.Errorf("failed to persist transition: %w", err)
	}

	order.ClearDomainEvents()
	return nil
}

// CompleteDelivery moves a delivered order from the active store into the
// completed store, with the outbox append, in a single transaction.
func (r *OrderRepository) CompleteDelivery(ctx context.Context, order *domain.Order) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		deleteFilter := mongopkg.BuildStatusGuard("orderId", order.OrderID, "status", string(domain.OrderStatusInTransit))
		result, err := r.active.Underlying().DeleteOne(sessCtx, deleteFilter)
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return domain.ErrTransitionConflict
		}
		if _, err := r.completed.Underlying().InsertOne(sessCtx, order); err != nil {
			return err
		}
		return r.saveOutboxEvents(sessCtx, order)
	})
	if err != nil {
		if err == domain.ErrTransitionConflict || mongopkg.IsDuplicateKey(err) {
			return domain.ErrTransitionConflict
		}
		return fmt.Errorf("failed to complete delivery: %w", err)
	}

	order.ClearDomainEvents()
	return nil
}

// FindByOrderID looks in the active store first, then the completed store
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	filter := bson.M{"orderId": orderID}

	order, err := r.decodeOne(ctx, r.active, filter)
	if err != nil || order != nil {
		return order, err
	}
	return r.decodeOne(ctx, r.completed, filter)
}

// FindActiveByCard returns the card's active orders, earliest first
func (r *OrderRepository) FindActiveByCard(ctx context.Context, cardID string) ([]*domain.Order, error) {
	filter := bson.M{
		"cardId": cardID,
		"status": mongopkg.StatusIn(string(domain.OrderStatusPending), string(domain.OrderStatusInTransit)),
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.active.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	err = cursor.All(ctx, &orders)
	return orders, err
}

// FindActive lists open orders, oldest first, with the paging total
func (r *OrderRepository) FindActive(ctx context.Context, filter domain.ActiveOrderFilter) ([]*domain.Order, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	} else {
		query["status"] = mongopkg.StatusIn(string(domain.OrderStatusPending), string(domain.OrderStatusInTransit))
	}
	if filter.Location != "" {
		query["location"] = filter.Location
	}

	total, err := r.active.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	cursor, err := r.active.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// FindCompletedSince returns deliveries in the window, oldest first
func (r *OrderRepository) FindCompletedSince(ctx context.Context, since time.Time) ([]*domain.Order, error) {
	filter := bson.M{"deliveredAt": bson.M{"$gte": since}}
	opts := options.Find().SetSort(bson.D{{Key: "deliveredAt", Value: 1}})

	cursor, err := r.completed.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	err = cursor.All(ctx, &orders)
	return orders, err
}

// Counts returns the dashboard counters
func (r *OrderRepository) Counts(ctx context.Context, now time.Time) (*domain.OrderCounts, error) {
	pending, err := r.active.CountDocuments(ctx, bson.M{"status": string(domain.OrderStatusPending)})
	if err != nil {
		return nil, err
	}
	inTransit, err := r.active.CountDocuments(ctx, bson.M{"status": string(domain.OrderStatusInTransit)})
	if err != nil {
		return nil, err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	deliveredToday, err := r.completed.CountDocuments(ctx, bson.M{"deliveredAt": bson.M{"$gte": startOfDay}})
	if err != nil {
		return nil, err
	}

	return &domain.OrderCounts{
		Pending:        pending,
		InTransit:      inTransit,
		DeliveredToday: deliveredToday,
	}, nil
}

// LocationRollup groups open orders by delivery point for the andon board
func (r *OrderRepository) LocationRollup(ctx context.Context) ([]domain.LocationCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status": mongopkg.StatusIn(string(domain.OrderStatusPending), string(domain.OrderStatusInTransit)),
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": "$location",
			"pending": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", string(domain.OrderStatusPending)}}, 1, 0,
			}}},
			"inTransit": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", string(domain.OrderStatusInTransit)}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.active.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rollup []domain.LocationCount
	err = cursor.All(ctx, &rollup)
	return rollup, err
}

// RemoveReconciled repairs the crash window where a delivery was copied to
// the completed store but the active record survived
func (r *OrderRepository) RemoveReconciled(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         completedOrdersCollection,
			"localField":   "orderId",
			"foreignField": "orderId",
			"as":           "completed",
		}}},
		{{Key: "$match", Value: bson.M{"completed": bson.M{"$ne": bson.A{}}}}},
		{{Key: "$project", Value: bson.M{"orderId": 1}}},
	}

	cursor, err := r.active.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var stale []struct {
		OrderID string `bson:"orderId"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, doc := range stale {
		ids = append(ids, doc.OrderID)
	}

	result, err := r.active.DeleteMany(ctx, bson.M{"orderId": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// GetOutboxRepository returns the outbox repository for the publisher
func (r *OrderRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}

func (r *OrderRepository) decodeOne(ctx context.Context, coll *mongopkg.GuardedCollection, filter bson.M) (*domain.Order, error) {
	result, err := coll.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}

	var order domain.Order
	if err := result.Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// saveOutboxEvents converts pending domain events to CloudEvents and appends
// them to the outbox inside the caller's transaction. Delivery events go to
// the delivery topic, everything else to the order topic.
func (r *OrderRepository) saveOutboxEvents(sessCtx mongo.SessionContext, order *domain.Order) error {
	domainEvents := order.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	correlationID, _ := sessCtx.Value(logging.CorrelationIDKey).(string)

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		cloudEvent := r.eventFactory.CreateEventWithCorrelation(sessCtx, event.EventType(), "order/"+order.OrderID, event, correlationID)
		cloudEvent.CardID = order.CardID
		cloudEvent.Location = order.Location

		topic := kafka.Topics.OrderEvents
		if _, ok := event.(*domain.OrderDeliveredEvent); ok {
			topic = kafka.Topics.DeliveryEvents
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(order.OrderID, "Order", topic, cloudEvent)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	return r.outboxRepo.SaveAll(sessCtx, outboxEvents)
}
