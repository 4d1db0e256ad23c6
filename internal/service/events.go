package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CartEventType string

const (
	EventItemAdded   CartEventType = "cart.item_added"
	EventItemUpdated CartEventType = "cart.item_updated"
	EventItemRemoved CartEventType = "cart.item_removed"
	EventCleared     CartEventType = "cart.cleared"
	EventReleased    CartEventType = "cart.released"
)

type CartEvent struct {
	Type       CartEventType `json:"type"`
	UserID     uuid.UUID     `json:"user_id"`
	ItemID     *uuid.UUID    `json:"item_id,omitempty"`
	ProductID  *uuid.UUID    `json:"product_id,omitempty"`
	Quantity   int32         `json:"quantity,omitempty"`
	Delta      int64         `json:"delta,omitempty"` // изменение резерва: >0 взяли со склада, <0 вернули
	StockLeft  *int32        `json:"stock_left,omitempty"`
	Items      int           `json:"items,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// EventBus публикует события корзины после коммита. nil: публикация выключена.
type EventBus interface {
	PublishCartEvent(ctx context.Context, e CartEvent) error
}
