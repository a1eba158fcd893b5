package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Key: []byte("ok"), Value: []byte(`{"id":"X.1"}`)},
		{Offset: 2, Key: []byte("bad"), Value: []byte(`{`)},
		{Offset: 3, Key: []byte("ok"), Value: []byte(`{"id":"X.2"}`)},
	}}
	var seen []string
	c := NewConsumerWithReader(reader, "fragment-updates", func(ctx context.Context, key, value []byte) error {
		ev, err := DecodeJSON[struct {
			ID string `json:"id"`
		}](value)
		if err != nil {
			return err
		}
		seen = append(seen, ev.ID)
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []string{"X.1", "X.2"}, seen)
	assert.Equal(t, []int64{1, 3}, reader.committed)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "match-events")

	require.NoError(t, p.Publish(context.Background(), Event{Key: "BM.11", Value: map[string]int{"score": 3}}))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "BM.11", string(w.messages[0].Key))
	assert.JSONEq(t, `{"score":3}`, string(w.messages[0].Value))

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Len(t, w.messages, 1)

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), Event{Key: "k", Value: 1}))
}
