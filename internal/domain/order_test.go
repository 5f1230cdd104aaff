package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/kanban-platform/replenishment-service/pkg/domain"
)

// Test fixtures
func createTestCard() *CardSpec {
	return &CardSpec{
		CardID:           "KB-0042",
		PartNumber:       "PN-1138",
		Description:      "Hex bolt M8",
		Location:         "Linea 1",
		Zone:             "A",
		StandardPack:     24,
		ComplexityWeight: 3,
		TargetLeadTime:   30,
		StdOpTime:        10,
		Active:           true,
	}
}

func TestNewOrder(t *testing.T) {
	tests := []struct {
		name          string
		requestedBy   string
		wantRequester string
	}{
		{
			name:          "explicit requester",
			requestedBy:   "Montaje",
			wantRequester: "Montaje",
		},
		{
			name:          "blank requester defaults",
			requestedBy:   "",
			wantRequester: DefaultRequestedBy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := createTestCard()
			order := NewOrder("order-1", card, tt.requestedBy)

			require.NotNil(t, order)
			assert.Equal(t, "order-1", order.OrderID)
			assert.Equal(t, card.CardID, order.CardID)
			assert.Equal(t, card.PartNumber, order.PartNumber)
			assert.Equal(t, card.StandardPack, order.StandardPack)
			assert.Equal(t, OrderStatusPending, order.Status)
			assert.Equal(t, tt.wantRequester, order.RequestedBy)
			assert.NotZero(t, order.CreatedAt)
			assert.Nil(t, order.DispatchedAt)

			events := order.GetDomainEvents()
			require.Len(t, events, 1)
			event, ok := events[0].(*OrderRequestedEvent)
			require.True(t, ok)
			assert.Equal(t, "order-1", event.OrderID)
			assert.Equal(t, tt.wantRequester, event.RequestedBy)
		})
	}
}

func TestNewOrderNormalizesLocation(t *testing.T) {
	tests := []struct {
		name         string
		cardLocation string
		wantLocation string
	}{
		{
			name:         "catalog value passes through",
			cardLocation: "Linea 1",
			wantLocation: "Linea 1",
		},
		{
			name:         "internal whitespace collapses",
			cardLocation: "  Linea   1  ",
			wantLocation: "Linea 1",
		},
		{
			name:         "missing delivery point falls back",
			cardLocation: "",
			wantLocation: shared.LocationUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := createTestCard()
			card.Location = tt.cardLocation
			order := NewOrder("order-1", card, "")

			assert.Equal(t, tt.wantLocation, order.Location)

			events := order.GetDomainEvents()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantLocation, events[0].(*OrderRequestedEvent).Location)
		})
	}
}

func TestOrderDispatch(t *testing.T) {
	tests := []struct {
		name       string
		setupOrder func() *Order
		wantErr    error
	}{
		{
			name: "dispatch pending order",
			setupOrder: func() *Order {
				return NewOrder("order-1", createTestCard(), "")
			},
		},
		{
			name: "dispatch order already in transit",
			setupOrder: func() *Order {
				order := NewOrder("order-1", createTestCard(), "")
				require.NoError(t, order.Dispatch("Luis"))
				return order
			},
			wantErr: ErrOrderNotPending,
		},
		{
			name: "dispatch delivered order",
			setupOrder: func() *Order {
				order := NewOrder("order-1", createTestCard(), "")
				require.NoError(t, order.Dispatch("Luis"))
				require.NoError(t, order.Deliver("Luis"))
				return order
			},
			wantErr: ErrOrderTerminal,
		},
		{
			name: "dispatch cancelled order",
			setupOrder: func() *Order {
				order := NewOrder("order-1", createTestCard(), "")
				require.NoError(t, order.Cancel("line stop"))
				return order
			},
			wantErr: ErrOrderTerminal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := tt.setupOrder()
			err := order.Dispatch("Maria")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, OrderStatusInTransit, order.Status)
			assert.Equal(t, "Maria", order.TakenBy)
			require.NotNil(t, order.DispatchedAt)

			events := order.GetDomainEvents()
			require.Len(t, events, 2)
			event, ok := events[1].(*OrderDispatchedEvent)
			require.True(t, ok)
			assert.Equal(t, "Maria", event.TakenBy)
		})
	}
}

func TestOrderDeliver(t *testing.T) {
	tests := []struct {
		name       string
		setupOrder func() *Order
		wantErr    error
	}{
		{
			name: "deliver order in transit",
			setupOrder: func() *Order {
				order := NewOrder("order-1", createTestCard(), "")
				require.NoError(t, order.Dispatch("Luis"))
				return order
			},
		},
		{
			name: "deliver pending order",
			setupOrder: func() *Order {
				return NewOrder("order-1", createTestCard(), "")
			},
			wantErr: ErrOrderNotInTransit,
		},
		{
			name: "deliver already delivered order",
			setupOrder: func() *Order {
				order := NewOrder("order-1", createTestCard(), "")
				require.NoError(t, order.Dispatch("Luis"))
				require.NoError(t, order.Deliver("Luis"))
				return order
			},
			wantErr: ErrOrderTerminal,
		},
		{
			name: "deliver order missing dispatch timestamp",
			setupOrder: func() *Order {
				order := NewOrder("order-1", createTestCard(), "")
				// Simulate a record corrupted in the store
				order.Status = OrderStatusInTransit
				order.DispatchedAt = nil
				return order
			},
			wantErr: ErrMissingTimestamps,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := tt.setupOrder()
			err := order.Deliver("Luis")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, OrderStatusDelivered, order.Status)
			assert.Equal(t, "Luis", order.DeliveredBy)
			require.NotNil(t, order.DeliveredAt)
			require.NotNil(t, order.Metrics)
			// Sub-minute phases floor to the 1-minute minimum
			assert.Equal(t, 1, order.Metrics.ReactionTime)
			assert.Equal(t, 1, order.Metrics.ExecutionTime)
			assert.True(t, order.Metrics.OnTimeDelivery)

			events := order.GetDomainEvents()
			event, ok := events[len(events)-1].(*OrderDeliveredEvent)
			require.True(t, ok)
			assert.Equal(t, "Luis", event.DeliveredBy)
			assert.Equal(t, order.Metrics.EffortPoints, event.EffortPoints)
		})
	}
}

func TestOrderCancel(t *testing.T) {
	t.Run("cancel pending order", func(t *testing.T) {
		order := NewOrder("order-1", createTestCard(), "")
		require.NoError(t, order.Cancel("duplicate scan"))

		assert.Equal(t, OrderStatusCancelled, order.Status)
		assert.Equal(t, OrderStatusPending, order.LastStatus)
		require.NotNil(t, order.CancelledAt)
	})

	t.Run("cancel order in transit keeps last status", func(t *testing.T) {
		order := NewOrder("order-1", createTestCard(), "")
		require.NoError(t, order.Dispatch("Luis"))
		require.NoError(t, order.Cancel("line stop"))

		assert.Equal(t, OrderStatusCancelled, order.Status)
		assert.Equal(t, OrderStatusInTransit, order.LastStatus)
	})

	t.Run("cancel delivered order fails", func(t *testing.T) {
		order := NewOrder("order-1", createTestCard(), "")
		require.NoError(t, order.Dispatch("Luis"))
		require.NoError(t, order.Deliver("Luis"))

		assert.ErrorIs(t, order.Cancel(""), ErrOrderTerminal)
	})

	t.Run("cancel cancelled order fails", func(t *testing.T) {
		order := NewOrder("order-1", createTestCard(), "")
		require.NoError(t, order.Cancel(""))

		assert.ErrorIs(t, order.Cancel(""), ErrOrderTerminal)
	})
}

func TestOrderIsUrgent(t *testing.T) {
	now := time.Now()

	order := NewOrder("order-1", createTestCard(), "")
	order.CreatedAt = now.Add(-10 * time.Minute)
	assert.False(t, order.IsUrgent(now))

	order.CreatedAt = now.Add(-16 * time.Minute)
	assert.True(t, order.IsUrgent(now))

	// Only pending orders can be urgent
	require.NoError(t, order.Dispatch("Luis"))
	assert.False(t, order.IsUrgent(now))
}

func TestOrderStatusHelpers(t *testing.T) {
	assert.True(t, OrderStatusPending.IsActive())
	assert.True(t, OrderStatusInTransit.IsActive())
	assert.False(t, OrderStatusDelivered.IsActive())
	assert.False(t, OrderStatusCancelled.IsActive())

	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusInTransit.IsTerminal())
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
}
