package app

import (
	"livequiz-service/internal/domain"
)

// subscriber is one connected client channel. Slow subscribers have their
// oldest pending event dropped rather than being allowed to stall the game.
type subscriber struct {
	audience domain.Audience
	player   string // set once a contestant connection completes its join
	ch       chan domain.Event
}

// broadcaster fans events out to the three channel classes. It is not
// goroutine-safe on its own; the owning session serializes access.
type broadcaster struct {
	subs map[*subscriber]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscriber]struct{})}
}

func (b *broadcaster) add(audience domain.Audience) *subscriber {
	sub := &subscriber{
		audience: audience,
		ch:       make(chan domain.Event, 32),
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broadcaster) remove(sub *subscriber) {
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// send delivers to every subscriber whose audience intersects the target.
func (b *broadcaster) send(to domain.Audience, evt domain.Event) {
	for sub := range b.subs {
		if sub.audience&to == 0 {
			continue
		}
		deliver(sub.ch, evt)
	}
}

// sendToPlayer delivers to every contestant connection joined as the player.
func (b *broadcaster) sendToPlayer(name string, evt domain.Event) {
	for sub := range b.subs {
		if sub.player == name {
			deliver(sub.ch, evt)
		}
	}
}

// sendTo delivers to a single subscriber, used for replies and resync bursts.
func (b *broadcaster) sendTo(sub *subscriber, evt domain.Event) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	deliver(sub.ch, evt)
}

func deliver(ch chan domain.Event, evt domain.Event) {
	select {
	case ch <- evt:
	default:
		// drop the oldest pending event so a slow client never blocks fan-out
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- evt:
		default:
		}
	}
}
