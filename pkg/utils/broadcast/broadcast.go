package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/racesim-engine/log"
)

//nolint:lll // by design
// see https://betterprogramming.pub/how-to-broadcast-messages-in-go-using-channels-b68f42bdf32e

type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	mu             sync.Mutex
	numRcv         int
	numSnd         int
	numSkip        int
	key            string
	sendTimeout    time.Duration
	bufferSize     int
	l              *log.Logger
}

type Option[T any] func(*broadcastServer[T])

// WithSendTimeout sets how long a message waits for a slow listener before it is skipped
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

// WithBufferSize sets the channel buffer of each listener
func WithBufferSize[T any](n int) Option[T] {
	return func(b *broadcastServer[T]) {
		b.bufferSize = n
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) {
		b.l = l
	}
}

func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufferSize)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.mu.Lock()
	b.l.Debug("Closing broadcast server",
		log.String("name", b.name),
		log.Int("rcv", b.numRcv), log.Int("snd", b.numSnd), log.Int("skip", b.numSkip))
	b.mu.Unlock()
	b.cancel()
}

// NewBroadcastServer distributes every message of source to all current subscribers.
// The key identifies the race in metrics.
//
//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	key, name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		key:            key,
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    50 * time.Millisecond,
		l:              log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

func (b *broadcastServer[T]) counter(v *int) func() int64 {
	return func() int64 {
		b.mu.Lock()
		defer b.mu.Unlock()
		return int64(*v)
	}
}

//nolint:lll,funlen // readability
func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("rse.broadcast.%s", b.name))
	register := func(metricName, desc, unit string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit(unit),

			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider(),
					metric.WithAttributes(
						attribute.String("name", b.name),
						attribute.String("race", b.key),
					),
				)
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	type data struct {
		name  string
		desc  string
		unit  string
		value func() int64
	}
	for _, d := range []*data{
		{"rse.broadcast.rcv", "Number of received messages", "{count}", b.counter(&b.numRcv)},
		{"rse.broadcast.snd", "Number of sent messages", "{count}", b.counter(&b.numSnd)},
		{"rse.broadcast.skip", "Number of skipped messages", "{count}", b.counter(&b.numSkip)},
		{
			"rse.broadcast.listener", "Number of listeners", "{count}",
			func() int64 {
				b.mu.Lock()
				defer b.mu.Unlock()
				return int64(len(b.listeners))
			},
		},
	} {
		register(d.name, d.desc, d.unit, d.value)
	}
}

//nolint:funlen,cyclop,gocognit // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.cancel()
		b.l.Debug("Closing listeners", log.String("name", b.name))
		b.mu.Lock()
		for _, listener := range b.listeners {
			if listener != nil {
				close(listener)
			}
		}
		b.listeners = nil
		b.mu.Unlock()
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.mu.Lock()
			b.listeners = append(b.listeners, ch)
			b.mu.Unlock()
		case ch := <-b.removeListener:
			b.mu.Lock()
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					b.l.Debug("removed listener",
						log.String("name", b.name), log.Int("len", len(b.listeners)))
					break
				}
			}
			b.mu.Unlock()
		case msg, ok := <-b.source:
			if !ok {
				b.l.Debug("source closed", log.String("name", b.name))
				return
			}
			b.mu.Lock()
			b.numRcv++
			listeners := append([]chan T(nil), b.listeners...)
			b.mu.Unlock()

			snd, skip := 0, 0
			for _, listener := range listeners {
				select {
				case listener <- msg:
					snd++
				// don't wait too long for a slow listener
				case <-time.After(b.sendTimeout):
					skip++
				}
			}
			b.mu.Lock()
			b.numSnd += snd
			b.numSkip += skip
			b.mu.Unlock()
		}
	}
}
