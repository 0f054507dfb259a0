package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	assert.Nil(t, ParseBrokers(""))
	assert.Nil(t, ParseBrokers(" , "))
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers("a:9092, b:9092,"))
}

func TestNew_NoBrokers(t *testing.T) {
	p := New(nil, "tokyo.orders")
	_, ok := p.(Nop)
	require.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), Message{Key: "1", Type: OrderCreated}))
	assert.NoError(t, p.Close())
}

func TestKafka_Encode(t *testing.T) {
	k := NewKafka([]string{"localhost:9092"}, "tokyo.orders")
	k.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { _ = k.Close() })

	m, err := k.Encode(Message{
		Key:     "order-1",
		Type:    OrderStatusChanged,
		Payload: map[string]string{"id": "order-1", "from": "new", "to": "accepted"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", string(m.Key))
	assert.JSONEq(t, `{"id":"order-1","from":"new","to":"accepted"}`, string(m.Value))
	require.Len(t, m.Headers, 1)
	assert.Equal(t, "type", m.Headers[0].Key)
	assert.Equal(t, OrderStatusChanged, string(m.Headers[0].Value))
	assert.Equal(t, 2026, m.Time.Year())
}

func TestKafka_EncodeUnsupportedPayload(t *testing.T) {
	k := NewKafka([]string{"localhost:9092"}, "tokyo.orders")
	t.Cleanup(func() { _ = k.Close() })

	_, err := k.Encode(Message{Key: "x", Type: OrderCreated, Payload: make(chan int)})
	assert.Error(t, err)
}
