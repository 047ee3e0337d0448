// Package events is a small, typed, in-process event bus used to notify
// presentation collaborators of session changes.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/stargazer/internal/foundation/errors"
)

// Bus delivers events to typed subscriptions.
//
// Two delivery modes exist:
//   - Publish blocks until every subscriber accepted the event or ctx is done
//   - Offer never blocks; a full subscriber has its oldest pending event dropped
//
// Close closes all subscription channels. The bus is not durable.
type Bus struct {
	mu        sync.RWMutex
	subs      map[reflect.Type]map[uint64]*subscriber
	nextID    atomic.Uint64
	isClosed  atomic.Bool
	closeOnce sync.Once
}

type subscriber struct {
	send  func(ctx context.Context, evt any) error
	offer func(evt any) bool
	close func()
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[reflect.Type]map[uint64]*subscriber),
	}
}

// Subscribe registers a subscription for events of type T.
//
// If T is an interface, published events whose concrete type implements T will be delivered.
// For concrete T, events are delivered only when the concrete type matches exactly.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeOf((*T)(nil)).Elem()
	ch := make(chan T, buffer)

	if b.isClosed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)

	// sendMu serializes senders against close so a send never hits a closed channel.
	var (
		sendMu    sync.Mutex
		closed    bool
		closeOnce sync.Once
		done      = make(chan struct{})
	)
	closeChannel := func() {
		closeOnce.Do(func() {
			close(done)
			sendMu.Lock()
			closed = true
			close(ch)
			sendMu.Unlock()
		})
	}

	var unsubOnce sync.Once
	unsubscribe := func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()

			closeChannel()
		})
	}

	sub := &subscriber{
		send: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.InternalError("event type mismatch").
					WithContext("expected", eventType.String()).
					WithContext("actual", reflect.TypeOf(evt).String()).
					Build()
			}

			sendMu.Lock()
			defer sendMu.Unlock()
			if closed {
				return nil
			}
			select {
			case ch <- v:
				return nil
			case <-done:
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
					WithContext("event_type", eventType.String()).
					Build()
			}
		},
		offer: func(evt any) bool {
			v, ok := evt.(T)
			if !ok {
				return false
			}

			sendMu.Lock()
			defer sendMu.Unlock()
			if closed {
				return false
			}
			select {
			case ch <- v:
				return false
			default:
			}
			if cap(ch) == 0 {
				return true
			}
			// Full: replace the oldest pending event with this one.
			dropped := false
			select {
			case <-ch:
				dropped = true
			default:
			}
			select {
			case ch <- v:
			default:
				dropped = true
			}
			return dropped
		},
		close: closeChannel,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed.Load() {
		closeChannel()
		return ch, func() {}
	}

	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][id] = sub

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers for events of type T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}

	eventType := reflect.TypeOf((*T)(nil)).Elem()

	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[eventType])
}

// Publish delivers an event to all matching subscribers, blocking until
// each accepted it or ctx is canceled.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	if b.isClosed.Load() {
		return ferrors.NewError(ferrors.CategoryRuntime, "event bus is closed").Build()
	}

	for _, s := range b.targets(reflect.TypeOf(evt)) {
		if err := s.send(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Offer delivers evt without blocking and returns how many subscribers had
// to drop an older pending event to make room.
func (b *Bus) Offer(evt any) int {
	if evt == nil || b.isClosed.Load() {
		return 0
	}
	dropped := 0
	for _, s := range b.targets(reflect.TypeOf(evt)) {
		if s.offer(evt) {
			dropped++
		}
	}
	return dropped
}

func (b *Bus) targets(evtType reflect.Type) []*subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var targets []*subscriber
	for subType, typeSubs := range b.subs {
		match := subType == evtType
		if !match && subType.Kind() == reflect.Interface {
			match = evtType.Implements(subType)
		}
		if !match {
			continue
		}
		for _, s := range typeSubs {
			targets = append(targets, s)
		}
	}
	return targets
}

// Close closes the bus and all subscription channels.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.isClosed.Store(true)

		b.mu.Lock()
		var toClose []*subscriber
		for _, typeSubs := range b.subs {
			for _, s := range typeSubs {
				toClose = append(toClose, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range toClose {
			s.close()
		}
	})
}
