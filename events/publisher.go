package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

const publishTimeout = 3 * time.Second

// PointsChanged is the JSON body published for every committed change.
type PointsChanged struct {
	Event          string    `json:"event"`
	TableID        uint      `json:"tableId,omitempty"`
	TableNumber    int       `json:"tableNumber,omitempty"`
	QRCode         string    `json:"qrCode,omitempty"`
	Points         int       `json:"points"`
	TransactionID  uint      `json:"transactionId,omitempty"`
	Type           string    `json:"type,omitempty"`
	Delta          int       `json:"delta,omitempty"`
	PreviousPoints int       `json:"previousPoints,omitempty"`
	AssignedBy     uint      `json:"assignedBy,omitempty"`
	Affected       int64     `json:"affected,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends PointsChanged messages to a durable queue on the default
// exchange.
type Publisher struct {
	conn  *amqp.Connection
	ch    Channel
	queue string
	mu    sync.Mutex // amqp channels are not safe for concurrent publishing
}

// Dial connects to the broker and declares queue.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	p := NewPublisher(ch, queue)
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

func (p *Publisher) Publish(ctx context.Context, ev PointsChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Event,
		Body:         body,
	})
}

// OnChange publishes ev. Broker failures are logged; the change itself is
// already committed.
func (p *Publisher) OnChange(ctx context.Context, ev services.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := FromChange(ev)
	if err := p.Publish(ctx, msg); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event": msg.Event,
			"queue": p.queue,
			"table": msg.QRCode,
		}).Errorf("publish points event: %v", err)
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FromChange flattens a ChangeEvent into the published shape.
func FromChange(ev services.ChangeEvent) PointsChanged {
	msg := PointsChanged{Event: ev.Type, Affected: ev.Affected, OccurredAt: ev.At}
	if ev.Table != nil {
		msg.TableID = ev.Table.ID
		msg.TableNumber = ev.Table.TableNumber
		msg.QRCode = ev.Table.QRCode
		msg.Points = ev.Table.Points
	}
	if tx := ev.Transaction; tx != nil {
		msg.TransactionID = tx.ID
		msg.Type = tx.Type
		msg.Delta = tx.SignedPoints()
		msg.PreviousPoints = tx.Metadata.PreviousPoints
		msg.AssignedBy = tx.AssignedBy
	}
	return msg
}
