package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	mongopkg "github.com/kanban-platform/replenishment-service/pkg/mongodb"
)

const kanbanCardsCollection = "kanban_cards"

// CardCatalog reads the kanban card master data maintained by the
// planning system
type CardCatalog struct {
	cards *mongopkg.GuardedCollection
}

// NewCardCatalog creates a CardCatalog and ensures the cardId index
func NewCardCatalog(client *mongopkg.GuardedClient) *CardCatalog {
	catalog := &CardCatalog{
		cards: client.Collection(kanbanCardsCollection),
	}
	catalog.cards.Underlying().Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "cardId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return catalog
}

// FindByCardID returns nil when the card is not registered
func (c *CardCatalog) FindByCardID(ctx context.Context, cardID string) (*domain.CardSpec, error) {
	result, err := c.cards.FindOne(ctx, bson.M{"cardId": cardID})
	if err != nil {
		return nil, err
	}

	var card domain.CardSpec
	if err := result.Decode(&card); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}
