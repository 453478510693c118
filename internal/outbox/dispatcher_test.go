package outbox

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	messages []kafka.Message
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestDeliverMapsRowsToKafkaMessages(t *testing.T) {
	writer := &captureWriter{}
	d := &Dispatcher{producer: writer}

	err := d.deliver(context.Background(), []Message{
		{
			EventID:       1,
			AggregateType: "activity",
			AggregateID:   "act-1",
			EventType:     EventActivityPublished,
			PartitionKey:  "club-1",
			Payload:       []byte(`{"activity_id":"act-1"}`),
		},
		{
			EventID:       2,
			AggregateType: "registration",
			AggregateID:   "reg-1",
			EventType:     EventRegistrationCreated,
			PartitionKey:  "act-1",
			Payload:       []byte(`{"registration_id":"reg-1"}`),
		},
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 2)

	first := writer.messages[0]
	require.Equal(t, []byte("club-1"), first.Key)
	require.JSONEq(t, `{"activity_id":"act-1"}`, string(first.Value))

	headers := map[string]string{}
	for _, h := range first.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, EventActivityPublished, headers["event_type"])
	require.Equal(t, "activity", headers["aggregate_type"])
	require.Equal(t, "act-1", headers["aggregate_id"])

	require.Equal(t, []byte("act-1"), writer.messages[1].Key)
}
