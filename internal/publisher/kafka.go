package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	OrderConfirmedTopic = "order-confirmed"
	EventOrderConfirmed = "OrderConfirmed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher announces confirmed orders to downstream consumers.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OrderConfirmedTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

type orderConfirmedItem struct {
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderConfirmed struct {
	Reference   string               `json:"reference"`
	AttemptID   string               `json:"attempt_id"`
	Account     string               `json:"account"`
	Method      string               `json:"payment_method"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	ItemCount   int                  `json:"item_count"`
	TxHash      string               `json:"tx_hash"`
	Items       []orderConfirmedItem `json:"items"`
	ConfirmedAt time.Time            `json:"confirmed_at"`
}

func (p *KafkaPublisher) PublishOrderConfirmed(ctx context.Context, o domain.Order) error {
	event := orderConfirmed{
		Reference:   o.Reference,
		AttemptID:   o.AttemptID,
		Account:     o.Account,
		Method:      o.Method.String(),
		TotalAmount: o.Amount,
		ItemCount:   o.ItemCount,
		TxHash:      o.TxHash,
		Items:       make([]orderConfirmedItem, 0, len(o.Lines)),
		ConfirmedAt: o.CreatedAt,
	}
	for _, l := range o.Lines {
		event.Items = append(event.Items, orderConfirmedItem{
			ProductID: l.ProductID,
			SellerID:  l.SellerID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order confirmed event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(o.Reference), // payment reference for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderConfirmed)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order %s: %w", o.Reference, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderConfirmed(context.Context, domain.Order) error { return nil }

func (NoopPublisher) Close() error { return nil }
