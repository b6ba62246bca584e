package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

func TestMessage_RoundTripsThroughJSON(t *testing.T) {
	msg := Message{
		JobID:      "11111111-1111-1111-1111-111111111111",
		JobType:    model.TypeSendEmail,
		Priority:   model.PriorityHigh,
		Payload:    model.Payload(`{"to":"a@example.com"}`),
		RetryCount: 2,
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, msg, got)
}

type fakeAcknowledger struct {
	acked, nacked bool
	nackRequeue   bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.nackRequeue = requeue
	return nil
}
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

func TestDispatch_UnparseableBodyIsNackedWithoutRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}

	dispatch(context.Background(), delivery, func(ctx context.Context, msg Message) error {
		t.Fatal("handler must not run for an unparseable body")
		return nil
	})

	require.True(t, ack.nacked)
	require.False(t, ack.nackRequeue)
	require.False(t, ack.acked)
}

func TestDispatch_HandlerSuccessAcks(t *testing.T) {
	ack := &fakeAcknowledger{}
	body, _ := json.Marshal(Message{JobID: "x"})
	delivery := amqp.Delivery{Acknowledger: ack, Body: body}

	dispatch(context.Background(), delivery, func(ctx context.Context, msg Message) error {
		return nil
	})

	require.True(t, ack.acked)
	require.False(t, ack.nacked)
}

func TestDispatch_HandlerErrorNacksWithoutRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	body, _ := json.Marshal(Message{JobID: "x"})
	delivery := amqp.Delivery{Acknowledger: ack, Body: body}

	dispatch(context.Background(), delivery, func(ctx context.Context, msg Message) error {
		return errors.New("handler failed")
	})

	require.True(t, ack.nacked)
	require.False(t, ack.nackRequeue)
	require.False(t, ack.acked)
}
