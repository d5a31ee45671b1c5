package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"panotrack/internal/logging"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

const (
	defaultHistorySize      = 256
	defaultDeliveryAttempts = 5
	defaultRetryDelay       = 200 * time.Millisecond
	maxRetryDelay           = 10 * time.Second
)

// Event is one published signal.
type Event struct {
	Sequence  uint64          `json:"seq"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Topic, err)
	}
	return nil
}

// Handler processes one event. A non-nil error triggers redelivery.
type Handler func(ctx context.Context, evt Event) error

// Options configures a Bus.
type Options struct {
	HistorySize      int
	DeliveryAttempts int
	RetryDelay       time.Duration
	Logger           *slog.Logger
	// OnDrop runs after an event exhausts its delivery attempts for a subscriber.
	OnDrop func(subscriber string, evt Event)
}

// Bus fans published events out to subscriptions and keeps a bounded history.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	subs     map[*subscription]struct{}
	closed   bool

	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
	onDrop     func(string, Event)

	ctx     context.Context
	cancel  context.CancelFunc
	closing chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Bus.
func New(opts Options) *Bus {
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.DeliveryAttempts <= 0 {
		opts.DeliveryAttempts = defaultDeliveryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		capacity:   opts.HistorySize,
		subs:       make(map[*subscription]struct{}),
		attempts:   opts.DeliveryAttempts,
		retryDelay: opts.RetryDelay,
		logger:     logging.NewComponentLogger(opts.Logger, "events"),
		onDrop:     opts.OnDrop,
		ctx:        ctx,
		cancel:     cancel,
		closing:    make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish records payload under topic and queues it for every matching
// subscription. The returned event carries the assigned sequence number.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) (Event, error) {
	if b == nil {
		return Event{}, ErrClosed
	}
	topic = strings.TrimSpace(topic)
	if topic == "" || topic == TopicAll {
		return Event{}, fmt.Errorf("invalid topic %q", topic)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Event{}, ErrClosed
	}
	b.nextSeq++
	evt := Event{
		Sequence:  b.nextSeq,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}
	if len(b.buffer) == b.capacity {
		copy(b.buffer, b.buffer[1:])
		b.buffer = b.buffer[:b.capacity-1]
	}
	b.buffer = append(b.buffer, evt)
	targets := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		if sub.matches(topic) {
			targets = append(targets, sub)
		}
	}
	b.cond.Broadcast()
	b.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(evt)
	}
	logging.WithContext(ctx, b.logger).Debug("event published",
		logging.String("topic", topic),
		logging.Any("seq", evt.Sequence),
		logging.Int("subscribers", len(targets)),
	)
	return evt, nil
}

// Subscribe registers handler for topic (or TopicAll). name identifies the
// subscriber in logs. The returned function cancels the subscription; events
// already queued for it are dropped.
func (b *Bus) Subscribe(topic, name string, handler Handler) func() {
	if b == nil || handler == nil {
		return func() {}
	}
	sub := &subscription{
		bus:     b,
		topic:   strings.TrimSpace(topic),
		name:    strings.TrimSpace(name),
		handler: handler,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if sub.name == "" {
		sub.name = sub.topic
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.subs[sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Since returns buffered events with a sequence greater than seq.
func (b *Bus) Since(seq uint64, limit int) ([]Event, uint64) {
	if b == nil {
		return nil, seq
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(seq, limit)
}

// Fetch behaves like Since but, when wait is true, blocks until at least one
// event is available or ctx ends.
func (b *Bus) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if b == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				b.mu.Lock()
				b.cond.Broadcast()
				b.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		events, next := b.snapshotLocked(since, limit)
		if len(events) > 0 || !wait || b.closed {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		b.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// LastSequence reports the most recently assigned sequence number.
func (b *Bus) LastSequence() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}

// Close stops accepting events and waits for subscriptions to drain their
// queues. Events waiting for a retry are dropped.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = map[*subscription]struct{}{}
	b.cond.Broadcast()
	b.mu.Unlock()

	close(b.closing)
	for _, sub := range subs {
		sub.stop()
	}
	b.wg.Wait()
	b.cancel()
}

func (b *Bus) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(b.buffer) == 0 {
		return nil, b.nextSeq
	}
	startIdx := -1
	for i, evt := range b.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, b.nextSeq
	}
	end := startIdx + limit
	if end > len(b.buffer) {
		end = len(b.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, b.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
