// Package events is a typed publish/subscribe stream of store change
// events. A single Dispatch goroutine owns the subscriber list, so
// subscribe, unsubscribe and fan-out never race.
package events

import (
	"context"

	"bitbucket.org/kleinnic74/pinboard/domain"
)

type Stream struct {
	channel chan domain.Change

	subscriptions chan *subscription
	unsubscribes  chan *subscription
}

type subscription struct {
	events chan domain.Change
}

func NewStream() *Stream {
	return &Stream{
		channel:       make(chan domain.Change),
		subscriptions: make(chan *subscription),
		unsubscribes:  make(chan *subscription),
	}
}

// Publish hands the event to the dispatcher. Delivery to subscribers is
// at-most-once, in publish order, with no replay for late subscribers.
func (s *Stream) Publish(e domain.Change) {
	s.channel <- e
}

// Listen subscribes and invokes f for every event until ctx is done
func (s *Stream) Listen(ctx context.Context, f func(e domain.Change)) {
	sub := s.subscribe()
	for {
		select {
		case e := <-sub.events:
			f(e)
		case <-ctx.Done():
			for {
				select {
				case s.unsubscribes <- sub:
					return
				case <-sub.events:
					// drop events until the dispatcher handles the unsubscribe
				}
			}
		}
	}
}

func (s *Stream) subscribe() *subscription {
	sub := &subscription{
		events: make(chan domain.Change),
	}
	s.subscriptions <- sub
	return sub
}

// Dispatch runs the fan-out loop until ctx is done. Publish and Listen
// block until Dispatch is running.
func (s *Stream) Dispatch(ctx context.Context) {
	var subscribers []*subscription
	for {
		select {
		case sub := <-s.subscriptions:
			subscribers = append(subscribers, sub)
		case sub := <-s.unsubscribes:
			idx := -1
			for i := range subscribers {
				if subscribers[i] == sub {
					idx = i
					break
				}
			}
			if idx != -1 {
				close(subscribers[idx].events)
				subscribers = append(subscribers[:idx], subscribers[idx+1:]...)
			}
		case e := <-s.channel:
			for _, sub := range subscribers {
				sub.events <- e
			}
		case <-ctx.Done():
			return
		}
	}
}
