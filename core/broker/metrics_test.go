package broker_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/shmbroker/core/broker"
	"github.com/dmitrymomot/shmbroker/core/shm"
	"github.com/dmitrymomot/shmbroker/core/topic"
)

func TestCollector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewPedanticRegistry()
	svc, err := broker.NewFromConfig(broker.DefaultConfig(), shm.NewMemoryAllocator(), broker.WithRegisterer(reg))
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.RegisterTopic(ctx, "t"))
	require.NoError(t, svc.Subscribe(ctx, topic.SubscribeRequest{Topic: "t", Subscriber: "s1"}))
	name, err := svc.CreateBuffer(ctx, 128)
	require.NoError(t, err)
	_, err = svc.Publish(ctx, "t", topic.Record{BufferID: name})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		if len(mf.GetMetric()) != 1 {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		}
	}

	assert.Equal(t, float64(1), values["shmbroker_buffers_live"])
	assert.Equal(t, float64(128), values["shmbroker_buffers_live_bytes"])
	assert.Equal(t, float64(1), values["shmbroker_topics_registered"])
	assert.Equal(t, float64(1), values["shmbroker_topics_subscribers"])
	assert.Equal(t, float64(1), values["shmbroker_topics_queued_records"])
	assert.Equal(t, float64(1), values["shmbroker_publish_deliveries_total"])

	assert.Equal(t, 18, testutil.CollectAndCount(broker.NewCollector(svc)))

	_, err = broker.NewFromConfig(broker.DefaultConfig(), shm.NewMemoryAllocator(), broker.WithRegisterer(reg))
	assert.Error(t, err)
}
