package events

import (
	"fmt"
	"sync"
	"time"

	"panotrack/internal/logging"
)

type subscription struct {
	bus     *Bus
	topic   string
	name    string
	handler Handler

	mu       sync.Mutex
	pending  []Event
	draining bool
	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) matches(topic string) bool {
	return s.topic == TopicAll || s.topic == topic
}

func (s *subscription) enqueue(evt Event) {
	s.mu.Lock()
	s.pending = append(s.pending, evt)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// stop asks the subscription to deliver what is queued and exit.
func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.draining = true
		s.mu.Unlock()
		select {
		case s.notify <- struct{}{}:
		default:
		}
	})
}

// next pops the oldest queued event. When the queue is empty it reports
// whether the subscription is draining and should exit.
func (s *subscription) next() (evt Event, ok bool, draining bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return Event{}, false, s.draining
	}
	evt = s.pending[0]
	s.pending[0] = Event{}
	s.pending = s.pending[1:]
	return evt, true, false
}

func (s *subscription) run() {
	defer s.bus.wg.Done()
	for {
		evt, ok, draining := s.next()
		if ok {
			select {
			case <-s.done:
				return
			default:
			}
			s.deliver(evt)
			continue
		}
		if draining {
			return
		}
		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) deliver(evt Event) {
	logger := s.bus.logger.With(
		logging.String("subscriber", s.name),
		logging.String("topic", evt.Topic),
		logging.Any("seq", evt.Sequence),
	)
	delay := s.bus.retryDelay
	for attempt := 1; ; attempt++ {
		err := s.invoke(evt)
		if err == nil {
			return
		}
		if attempt >= s.bus.attempts {
			logging.ErrorWithContext(logger, "event delivery abandoned", "event_dropped",
				logging.Int("attempts", attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the subscriber error; the event will not be redelivered"),
			)
			if s.bus.onDrop != nil {
				s.bus.onDrop(s.name, evt)
			}
			return
		}
		logging.WarnWithContext(logger, "event delivery failed; retrying", "event_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "subscriber side effect delayed"),
		)
		select {
		case <-time.After(delay):
		case <-s.done:
			return
		case <-s.bus.closing:
			return
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (s *subscription) invoke(evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return s.handler(s.bus.ctx, evt)
}

type panicError struct{ value any }

func (p *panicError) Error() string {
	return fmt.Sprintf("subscriber panic: %v", p.value)
}
