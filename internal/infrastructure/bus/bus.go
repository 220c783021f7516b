package bus

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	domevent "github.com/TLF1607916/loopbuy-trade/internal/domain/event"
	"go.uber.org/zap"
)

const handlerTimeout = 30 * time.Second

// Bus is an in-memory event bus used for fire-and-forget fanout of trade
// events to audit and notification subscribers. It is not durable; events
// published while the queue is full block until there is room or the caller
// gives up via its context.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domevent.Handler
	queue       chan domevent.Event
	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	concurrency int
	log         *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:        make(map[string][]domevent.Handler),
		queue:       make(chan domevent.Event, 1024),
		concurrency: 8,
		log:         logger.With(zap.String("component", "event_bus")),
	}
}

func (b *Bus) Subscribe(eventName string, h domevent.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		b.cancel = cancel
		go b.dispatchLoop(bg)
		b.log.Info("event_bus_started")
	})
}

func (b *Bus) Stop(ctx context.Context) {
	_ = ctx
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		close(b.queue)
		b.log.Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domevent.Event) error {
	if e == nil {
		return nil
	}
	select {
	case b.queue <- e:
		return nil
	case <-ctx.Done():
		b.log.Warn("event_enqueue_aborted",
			zap.String("event", e.EventName()),
			zap.Error(ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domevent.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domevent.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", zap.String("event", name))
		return
	}

	// Handlers keep running during shutdown drain.
	ctx = context.WithoutCancel(ctx)

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		h := h
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event_handler_panic",
						zap.String("event", name),
						zap.Any("panic", r),
						zap.String("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
			err := h(hctx, e)
			cancel()
			if err != nil {
				b.log.Warn("event_handler_error",
					zap.String("event", name),
					zap.Error(err),
				)
			}
		}()
	}

	wg.Wait()
}
