package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func framed(schemaID int, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func workoutMessage(offset int64, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     "workout_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("workout.created")},
			{Key: "user_id", Value: []byte("user-1")},
			{Key: "schema_subject", Value: []byte("workout_events-value")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"workout_id":"abc"}`
	reader := &stubReader{messages: []kafka.Message{workoutMessage(10, framed(42, payload))}}
	handler := &stubHandler{}
	logger, _ := test.NewNullLogger()

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "workout.created", handler.last.EventType)
	require.Equal(t, "user-1", handler.last.UserID)
	require.Equal(t, "workout_events-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{workoutMessage(20, framed(99, `{"workout_id":"def"}`))}}
	handler := &stubHandler{err: errors.New("boom")}
	logger, hook := test.NewNullLogger()

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "handle message", hook.LastEntry().Message)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	noUser := workoutMessage(3, framed(1, `{}`))
	noUser.Headers = noUser.Headers[:1]

	reader := &stubReader{messages: []kafka.Message{
		workoutMessage(1, []byte{0, 1}),
		workoutMessage(2, framed(1, `not-json`)),
		noUser,
	}}
	handler := &stubHandler{}
	logger, hook := test.NewNullLogger()

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
	require.Len(t, hook.AllEntries(), 3)
}

func TestDecodeMessageRejectsUnknownMagicByte(t *testing.T) {
	value := framed(1, `{}`)
	value[0] = 1
	_, err := decodeMessage(workoutMessage(1, value))
	require.ErrorContains(t, err, "magic byte")
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls += len(msgs)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
