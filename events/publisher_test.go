package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/services"
)

type fakeChannel struct {
	keys      []string
	published []amqp.Publishing
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestOnChangePublishesRedemption(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "points.changed")
	at := time.Date(2026, 4, 2, 20, 15, 0, 0, time.UTC)

	table := models.Table{ID: 3, TableNumber: 3, QRCode: "TABLE_3", Points: 15}
	tx := models.PointTransaction{
		ID: 9, TableID: 3, AssignedBy: 2, Points: 10, Type: models.TransactionRedeemed,
		Metadata: models.TransactionMetadata{PreviousPoints: 25, NewPoints: 15},
	}
	pub.OnChange(context.Background(), services.ChangeEvent{
		Type: services.EventPointsUpdate, Table: &table, Transaction: &tx, At: at,
	})

	require.Len(t, ch.published, 1)
	assert.Equal(t, "points.changed", ch.keys[0])
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var body PointsChanged
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "TABLE_3", body.QRCode)
	assert.Equal(t, -10, body.Delta)
	assert.Equal(t, 25, body.PreviousPoints)
	assert.Equal(t, 15, body.Points)
	assert.True(t, at.Equal(body.OccurredAt))
}

func TestOnChangeSwallowsBrokerErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	pub := NewPublisher(ch, "points.changed")

	assert.NotPanics(t, func() {
		pub.OnChange(context.Background(), services.ChangeEvent{Type: services.EventPointsReset, Affected: 4})
	})
	assert.NoError(t, pub.Close())
	assert.True(t, ch.closed)
}
