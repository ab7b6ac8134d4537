package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader hands out msgs in order and then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[payload]([]byte(`{"type":"search","count":3}`))
	require.NoError(t, err)
	assert.Equal(t, payload{Type: "search", Count: 3}, got)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestNewProducer(t *testing.T) {
	cfg := config.Default().Kafka
	p := NewProducer(cfg, cfg.Topics.SearchEvents)
	assert.Equal(t, "search-events", p.Topic())
	require.NoError(t, p.Close())
}

func TestPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer("events", w)

	require.NoError(t, p.PublishBatch(context.Background(), []Event{
		{Key: "search", Value: payload{Type: "search", Count: 1}},
		{Key: "suggest", Value: payload{Type: "suggest", Count: 2}},
	}))
	require.NoError(t, p.Publish(context.Background(), Event{Key: "index", Value: payload{Type: "index"}}))

	require.Len(t, w.written, 3)
	assert.Equal(t, "search", string(w.written[0].Key))
	assert.JSONEq(t, `{"type":"suggest","count":2}`, string(w.written[1].Value))
	assert.Equal(t, "content-type", w.written[2].Headers[0].Key)

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Len(t, w.written, 3)
}

func TestPublishBatchEncodeFailureWritesNothing(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer("events", w)
	err := p.PublishBatch(context.Background(), []Event{
		{Key: "ok", Value: payload{}},
		{Key: "bad", Value: make(chan int)},
	})
	assert.ErrorContains(t, err, `encoding event "bad"`)
	assert.Empty(t, w.written)
}

func TestPublishWriteFailure(t *testing.T) {
	p := newProducer("events", &fakeWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorContains(t, err, "publishing 1 events to events")
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"count":1}`)},
			{Offset: 2, Value: []byte(`{"count":-1}`)},
			{Offset: 3, Value: []byte(`{"count":3}`)},
		},
		fetchErrs: []error{errors.New("rebalance")},
	}
	var (
		mu   sync.Mutex
		seen []int
	)
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer("events", r, func(_ context.Context, _ []byte, value []byte) error {
		p, err := DecodeJSON[payload](value)
		if err != nil {
			return err
		}
		if p.Count < 0 {
			return errors.New("negative count")
		}
		mu.Lock()
		seen = append(seen, p.Count)
		done := len(seen) == 2
		mu.Unlock()
		if done {
			cancel()
		}
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []int{1, 3}, seen)
	assert.Equal(t, []int64{1, 3}, r.committed)
	assert.True(t, r.closed)
	processed, failed := c.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(1), failed)
}
