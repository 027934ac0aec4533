package rabbitmq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopilent/pkg/logger"
)

type publishing struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	published []publishing
	err       error
	closed    bool
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, publishing{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestClient_Publish(t *testing.T) {
	logger.Discard()
	ch := &fakeChannel{}
	client := &Client{channel: ch, exchange: "shopilent.events"}

	err := client.Publish(context.Background(), "msg-1", "payment.succeeded", "payment-7", []byte(`{}`))
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	p := ch.published[0]
	assert.Equal(t, "shopilent.events", p.exchange)
	assert.Equal(t, "payment.succeeded", p.key)
	assert.Equal(t, "msg-1", p.msg.MessageId)
	assert.Equal(t, "payment-7", p.msg.CorrelationId)
	assert.Equal(t, "payment.succeeded", p.msg.Type)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.Equal(t, "application/json", p.msg.ContentType)

	ch.err = errors.New("channel closed")
	assert.Error(t, client.Publish(context.Background(), "msg-2", "payment.succeeded", "payment-7", nil))

	require.NoError(t, client.Close())
	assert.True(t, ch.closed)
}

func TestClient_PublishWithoutChannel(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Publish(context.Background(), "msg-1", "order.created", "order-1", nil))
}
