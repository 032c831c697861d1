package broker

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shmbroker"

var (
	descBuffersLive = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "buffers", "live"),
		"Number of buffers with a positive reference count.",
		nil, nil,
	)
	descBuffersLiveBytes = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "buffers", "live_bytes"),
		"Total size of live buffers in bytes.",
		nil, nil,
	)
	descBuffersCreated = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "buffers", "created_total"),
		"Buffers allocated.",
		nil, nil,
	)
	descBuffersFreed = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "buffers", "freed_total"),
		"Buffers whose regions were freed.",
		nil, nil,
	)
	descBufferFailures = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "buffers", "failures_total"),
		"Buffer operations that failed, by kind.",
		[]string{"kind"}, nil,
	)
	descTopics = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "topics", "registered"),
		"Registered topics.",
		nil, nil,
	)
	descSubscribers = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "topics", "subscribers"),
		"Subscribers across all topics.",
		nil, nil,
	)
	descQueued = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "topics", "queued_records"),
		"Records waiting in subscriber queues.",
		nil, nil,
	)
	descPublishes = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "total"),
		"Publish calls, by outcome.",
		[]string{"outcome"}, nil,
	)
	descDelivered = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "deliveries_total"),
		"Records enqueued to subscribers.",
		nil, nil,
	)
	descDropped = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "publish", "dropped_total"),
		"Records removed by queue overflow, by policy.",
		[]string{"policy"}, nil,
	)
	descPulls = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pull", "total"),
		"Pull calls, by result.",
		[]string{"result"}, nil,
	)
	descInconsistent = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "internal_errors_total"),
		"Requests that hit an internal inconsistency.",
		nil, nil,
	)
)

type collector struct {
	svc *Service
}

var _ prometheus.Collector = (*collector)(nil)

// NewCollector returns a prometheus collector reading the broker's Stats on
// every scrape.
func NewCollector(svc *Service) prometheus.Collector {
	return &collector{svc: svc}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descBuffersLive, descBuffersLiveBytes, descBuffersCreated, descBuffersFreed,
		descBufferFailures, descTopics, descSubscribers, descQueued, descPublishes,
		descDelivered, descDropped, descPulls, descInconsistent,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.svc.Stats()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(descBuffersLive, float64(st.Buffers.Live))
	gauge(descBuffersLiveBytes, float64(st.Buffers.LiveBytes))
	counter(descBuffersCreated, float64(st.Buffers.Created))
	counter(descBuffersFreed, float64(st.Buffers.Freed))
	counter(descBufferFailures, float64(st.Buffers.AllocFailures), "allocate")
	counter(descBufferFailures, float64(st.Buffers.FreeErrors), "free")
	counter(descBufferFailures, float64(st.Buffers.DoubleReleases), "double_release")

	gauge(descTopics, float64(st.Topics.Topics))
	gauge(descSubscribers, float64(st.Topics.Subscribers))
	gauge(descQueued, float64(st.Topics.Queued))

	counter(descPublishes, float64(st.Published), "delivered")
	counter(descPublishes, float64(st.Discarded), "no_subscribers")
	counter(descDelivered, float64(st.Delivered))
	counter(descDropped, float64(st.Dropped), st.Policy.String())

	counter(descPulls, float64(st.Pulled), "ok")
	counter(descPulls, float64(st.PullTimeouts), "timeout")
	counter(descPulls, float64(st.PullCanceled), "canceled")

	counter(descInconsistent, float64(st.Inconsistent))
}

func (s *Service) register() error {
	if s.registerer == nil {
		return nil
	}
	if err := s.registerer.Register(NewCollector(s)); err != nil {
		return fmt.Errorf("failed to register broker metrics: %w", err)
	}
	return nil
}
