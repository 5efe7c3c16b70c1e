package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/participant-core-go/log"
)

// BroadcastServer fans out every message of a source channel to all
// subscribers. Slow subscribers miss messages instead of blocking the source.
type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

const defaultSendTimeout = 50 * time.Millisecond

type (
	Option[T any]          func(*broadcastServer[T])
	broadcastServer[T any] struct {
		name           string
		source         <-chan T
		listeners      []chan T
		addListener    chan chan T
		removeListener chan (<-chan T)
		ctx            context.Context
		cancel         context.CancelFunc
		sendTimeout    time.Duration
		mu             sync.Mutex
		numRcv         int
		numSnd         int
		numSkip        int
		log            *log.Logger
	}
)

func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) {
		b.log = l
	}
}

//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    defaultSendTimeout,
		log:            log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns nil once the server is closed.
func (b *broadcastServer[T]) Subscribe() <-chan T {
	if b.ctx.Err() != nil {
		return nil
	}
	ch := make(chan T, 8)
	select {
	case b.addListener <- ch:
		return ch
	case <-b.ctx.Done():
		return nil
	}
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.mu.Lock()
	b.log.Debug("Closing broadcast server",
		log.String("name", b.name),
		log.Int("rcv", b.numRcv), log.Int("snd", b.numSnd), log.Int("skip", b.numSkip))
	b.mu.Unlock()
	b.cancel()
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("pcc.broadcast.%s", b.name))
	register := func(metricName, desc string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				b.mu.Lock()
				defer b.mu.Unlock()
				o.Observe(valueProvider(),
					metric.WithAttributes(attribute.String("name", b.name)))
				return nil
			})); err != nil {
			b.log.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("pcc.broadcast.rcv", "Number of received messages",
		func() int64 { return int64(b.numRcv) })
	register("pcc.broadcast.snd", "Number of sent messages",
		func() int64 { return int64(b.numSnd) })
	register("pcc.broadcast.skip", "Number of skipped messages",
		func() int64 { return int64(b.numSkip) })
	register("pcc.broadcast.listener", "Number of listeners",
		func() int64 { return int64(len(b.listeners)) })
}

//nolint:cyclop // select loop
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.cancel()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
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
					break
				}
			}
			b.mu.Unlock()
		case msg, ok := <-b.source:
			if !ok {
				return
			}
			b.mu.Lock()
			b.numRcv++
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd++
				case <-time.After(b.sendTimeout):
					b.numSkip++
				}
			}
			b.mu.Unlock()
		}
	}
}
