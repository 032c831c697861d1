package topic_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/shmbroker/core/topic"
)

func subscribe(t *testing.T, r *topic.Registry, name string, ids ...topic.SubscriberID) {
	t.Helper()
	for _, id := range ids {
		_, err := r.Subscribe(context.Background(), topic.SubscribeRequest{Topic: name, Subscriber: id})
		require.NoError(t, err)
	}
}

func TestTopic_Publish(t *testing.T) {
	t.Parallel()

	t.Run("fans out to every subscriber with a single retain", func(t *testing.T) {
		t.Parallel()

		r := topic.NewRegistry()
		tp, _, err := r.Register("frames")
		require.NoError(t, err)
		subscribe(t, r, "frames", "a", "b")

		var calls, retained int
		res, err := tp.Publish(topic.Record{BufferID: "buf-1", Metadata: []byte("m"), Timestamp: 7}, func(n int) error {
			calls++
			retained += n
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 2, retained)
		assert.Equal(t, 2, res.Delivered)
		assert.Empty(t, res.Dropped)

		for _, id := range []topic.SubscriberID{"a", "b"} {
			got, err := tp.Pull(context.Background(), id, 0)
			require.NoError(t, err)
			assert.Equal(t, "buf-1", got.BufferID)
			assert.Equal(t, []byte("m"), got.Metadata)
			assert.Equal(t, uint64(7), got.Timestamp)
		}
	})

	t.Run("no subscribers retains nothing", func(t *testing.T) {
		t.Parallel()

		r := topic.NewRegistry()
		tp, _, err := r.Register("empty")
		require.NoError(t, err)

		var calls, retained int
		res, err := tp.Publish(topic.Record{BufferID: "x"}, func(n int) error {
			calls++
			retained += n
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, res.Delivered)
		assert.Equal(t, 1, calls)
		assert.Zero(t, retained)
	})

	t.Run("no subscribers still reports retain failure", func(t *testing.T) {
		t.Parallel()

		r := topic.NewRegistry()
		tp, _, err := r.Register("empty")
		require.NoError(t, err)

		missing := errors.New("missing")
		_, err = tp.Publish(topic.Record{BufferID: "x"}, func(int) error { return missing })
		require.ErrorIs(t, err, missing)
	})

	t.Run("retain failure enqueues nothing", func(t *testing.T) {
		t.Parallel()

		r := topic.NewRegistry()
		tp, _, err := r.Register("frames")
		require.NoError(t, err)
		subscribe(t, r, "frames", "a")

		boom := errors.New("boom")
		_, err = tp.Publish(topic.Record{BufferID: "x"}, func(int) error { return boom })
		require.ErrorIs(t, err, boom)

		_, err = tp.Pull(context.Background(), "a", 0)
		assert.ErrorIs(t, err, topic.ErrTimeout)
	})

	t.Run("overflow reports dropped records", func(t *testing.T) {
		t.Parallel()

		r := topic.NewRegistry(topic.WithDefaultQueueSize(1))
		tp, _, err := r.Register("frames")
		require.NoError(t, err)
		subscribe(t, r, "frames", "a")

		_, err = tp.Publish(topic.Record{BufferID: "1"}, nil)
		require.NoError(t, err)
		res, err := tp.Publish(topic.Record{BufferID: "2"}, nil)
		require.NoError(t, err)

		require.Len(t, res.Dropped, 1)
		assert.Equal(t, "1", res.Dropped[0].BufferID)
	})

	t.Run("concurrent publishers keep a consistent order across subscribers", func(t *testing.T) {
		t.Parallel()

		r := topic.NewRegistry(topic.WithDefaultQueueSize(0))
		tp, _, err := r.Register("frames")
		require.NoError(t, err)
		subscribe(t, r, "frames", "a", "b")

		var wg sync.WaitGroup
		for p := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 50 {
					_, err := tp.Publish(topic.Record{BufferID: fmt.Sprintf("%d-%d", p, i)}, nil)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		drain := func(id topic.SubscriberID) []string {
			var out []string
			for {
				rec, err := tp.Pull(context.Background(), id, 0)
				if err != nil {
					return out
				}
				out = append(out, rec.BufferID)
			}
		}
		a, b := drain("a"), drain("b")
		assert.Len(t, a, 200)
		assert.Equal(t, a, b)
	})
}

func TestTopic_Pull(t *testing.T) {
	t.Parallel()

	r := topic.NewRegistry()
	tp, _, err := r.Register("frames")
	require.NoError(t, err)

	_, err = tp.Pull(context.Background(), "ghost", 0)
	assert.ErrorIs(t, err, topic.ErrSubscriberNotFound)

	subscribe(t, r, "frames", "a")
	_, err = tp.Publish(topic.Record{BufferID: "1"}, nil)
	require.NoError(t, err)

	rec, err := tp.Pull(context.Background(), "a", 0)
	require.NoError(t, err)

	dropped, err := tp.Requeue("a", rec)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	again, err := tp.Pull(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Equal(t, "1", again.BufferID)

	dropped, err = tp.Requeue("ghost", rec)
	assert.ErrorIs(t, err, topic.ErrSubscriberNotFound)
	assert.Equal(t, []topic.Record{rec}, dropped)
}

func TestTopic_Subscribers(t *testing.T) {
	t.Parallel()

	r := topic.NewRegistry()
	tp, _, err := r.Register("frames")
	require.NoError(t, err)

	_, err = r.Subscribe(context.Background(), topic.SubscribeRequest{
		Topic:      "frames",
		Subscriber: "render",
		Depends:    []topic.SubscriberID{"decode", "scale"},
	})
	require.NoError(t, err)
	subscribe(t, r, "frames", "audit")

	assert.Equal(t, []topic.SubscriberID{"render", "audit"}, tp.Subscribers())

	s, ok := tp.Subscriber("render")
	require.True(t, ok)
	assert.Equal(t, []topic.SubscriberID{"decode", "scale"}, s.Depends())
	assert.Equal(t, topic.DefaultQueueSize, s.Queue().Max())
}
