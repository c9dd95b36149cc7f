// Package security publishes audit events asynchronously: Emit never blocks,
// a background loop drains the buffer to a sink in batches.
package security

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "siaga/pkg/platform/audit"
	"siaga/pkg/requestcontext"
)

const (
	defaultCapacity      = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
)

type Publisher struct {
	sink          audit.Sink
	buffer        *RingBuffer
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	emitted prometheus.Counter
	dropped prometheus.Counter
	failed  prometheus.Counter

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithCapacity(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithRegisterer registers the publisher's counters.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Publisher) {
		f := promauto.With(reg)
		p.emitted = f.NewCounter(prometheus.CounterOpts{
			Name: "siaga_audit_events_emitted_total",
			Help: "Audit events accepted by the publisher",
		})
		p.dropped = f.NewCounter(prometheus.CounterOpts{
			Name: "siaga_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full or the sink failed",
		})
		p.failed = f.NewCounter(prometheus.CounterOpts{
			Name: "siaga_audit_sink_failures_total",
			Help: "Failed batch writes to the audit sink",
		})
	}
}

// New starts the drain loop. Close must be called to flush and stop it.
func New(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:          sink,
		buffer:        NewRingBuffer(defaultCapacity),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit stamps and buffers the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Severity == "" {
		event.Severity = audit.AuditEvent(event.Action).Severity()
	}
	if p.buffer.Enqueue(event) {
		inc(p.dropped)
	}
	inc(p.emitted)

	if p.buffer.Len() >= p.batchSize {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

func (p *Publisher) run() {
	defer close(p.stopped)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.flush(context.Background())
		case <-p.wake:
			p.flush(context.Background())
		}
	}
}

func (p *Publisher) flush(ctx context.Context) {
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := p.sink.Write(ctx, batch); err != nil {
			inc(p.failed)
			if p.dropped != nil {
				p.dropped.Add(float64(len(batch)))
			}
			p.logger.WarnContext(ctx, "audit sink write failed",
				"error", err,
				"events", len(batch),
			)
			return
		}
	}
}

// Close stops the loop and drains whatever is buffered, bounded by ctx.
func (p *Publisher) Close(ctx context.Context) error {
	p.once.Do(func() { close(p.done) })
	select {
	case <-p.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.flush(ctx)
	return nil
}

// Len is the number of buffered events.
func (p *Publisher) Len() int { return p.buffer.Len() }

// Dropped is the number of events lost to overflow.
func (p *Publisher) Dropped() int64 { return p.buffer.Dropped() }

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
