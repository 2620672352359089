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

	"toonify/internal/domain"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishRoutesByStatus(t *testing.T) {
	ch := &fakeChannel{}
	pub := newPublisher(ch, "toonify.transforms", nil)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &domain.TransformJob{
		ID:            "row-1",
		UserID:        "user-1",
		Type:          domain.TransformTypeImage,
		ProviderJobID: "pred-1",
		Status:        domain.StatusCompleted,
		ResultURL:     "https://cdn.test/a.jpg",
		CreditsUsed:   1,
	}

	require.NoError(t, pub.Publish(context.Background(), FromJob(job, at)))
	assert.Equal(t, "toonify.transforms", ch.exchange)
	assert.Equal(t, "transform.completed", ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "row-1", ch.msg.MessageId)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "pred-1", decoded["predictionId"])
	assert.Equal(t, "https://cdn.test/a.jpg", decoded["resultUrl"])
	assert.NotContains(t, decoded, "error")

	require.NoError(t, pub.Close())
	assert.True(t, ch.closed)
}

func TestPublishWrapsChannelErrors(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	pub := newPublisher(ch, "x", nil)
	err := pub.Publish(context.Background(), TransformEvent{Status: domain.StatusFailed})
	assert.True(t, errors.Is(err, amqp.ErrClosed))
	assert.Contains(t, err.Error(), "transform.failed")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), TransformEvent{}))
}
