package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return amqp.Queue{Name: name}, a.Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *mockChannel) Close() error { return m.Called().Error(0) }

func sampleEvent() Event {
	return NewEvent(EventSceneChanged, "story", "scene", map[string]any{"from": "a"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestRabbitMQPublisher(t *testing.T) {
	ch := new(mockChannel)
	ch.On("QueueDeclare", "engine_events", true, false, false, false, amqp.Table(nil)).Return(nil)

	var published amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, "", "engine_events", false, false, mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) { published = args.Get(5).(amqp.Publishing) }).
		Return(nil).Once()

	p, err := NewRabbitMQPublisherWithChannel(ch, "engine_events", zap.NewNop())
	require.NoError(t, err)

	ev := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), ev))
	ch.AssertExpectations(t)

	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.Equal(t, ev.ID.String(), published.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(published.Body, &decoded))
	assert.Equal(t, ev.Type, decoded.Type)
	assert.Equal(t, "scene", decoded.SceneID)
}

func TestRabbitMQPublisherRetries(t *testing.T) {
	ch := new(mockChannel)
	ch.On("QueueDeclare", mock.Anything, true, false, false, false, mock.Anything).Return(nil)
	boom := errors.New("channel closed")
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).Return(boom)

	p, err := NewRabbitMQPublisherWithChannel(ch, "q", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	ch.AssertNumberOfCalls(t, "PublishWithContext", 3)
}

func TestRabbitMQPublisherDeclareFailure(t *testing.T) {
	ch := new(mockChannel)
	ch.On("QueueDeclare", mock.Anything, true, false, false, false, mock.Anything).Return(errors.New("access refused"))
	_, err := NewRabbitMQPublisherWithChannel(ch, "q", nil)
	assert.Error(t, err)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestFanOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	boom := errors.New("down")
	fan := FanOut{a, nil, failing{boom}, b, NoopPublisher{}}

	err := fan.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Events(), 1)
	assert.Equal(t, []EventType{EventSceneChanged}, b.Types())

	b.Reset()
	assert.Empty(t, b.Events())
	assert.NoError(t, FanOut{}.Publish(context.Background(), sampleEvent()))
}
