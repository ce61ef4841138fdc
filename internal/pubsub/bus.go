package pubsub

import (
	"fmt"
	"sync"
	"time"

	"tickerflow/logger"
	"tickerflow/models"
)

// Standard engine topics. Market data additionally fans out on
// market.data.<venue> and market.data.<venue>.<symbol>.
const (
	TopicVenueConnected = "venue.connected"
	TopicVenueError     = "venue.error"
	TopicMarketData     = "market.data"
	TopicRawFrame       = "market.raw"
	TopicAnomaly        = "anomaly"
	TopicArbitrage      = "arbitrage"
)

// Event is one published message.
type Event struct {
	Topic   string
	Time    time.Time
	Payload interface{}
}

// Subscription is a receiver handle. Slow consumers do not block
// publishers: events beyond the buffer are dropped and counted.
type Subscription struct {
	C      chan Event
	topics map[string]struct{}
	bus    *Bus
}

// Dropped reports how many events this subscriber missed.
func (s *Subscription) Dropped() int64 {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	return s.bus.dropped[s]
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
}

// Bus is a topic-keyed fan-out used to decouple the engine from its
// consumers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped map[*Subscription]int64
	buffer  int
	closed  bool
	log     *logger.Log
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		dropped: make(map[*Subscription]int64),
		buffer:  buffer,
		log:     logger.GetLogger(),
	}
}

// Subscribe registers interest in the given topics. With no topics the
// subscription receives everything.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		C:   make(chan Event, b.buffer),
		bus: b,
	}
	if len(topics) > 0 {
		sub.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers an event to every matching subscriber without blocking.
func (b *Bus) Publish(topic string, payload interface{}) {
	ev := Event{Topic: topic, Time: time.Now().UTC(), Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		if sub.topics != nil {
			if _, ok := sub.topics[topic]; !ok {
				continue
			}
		}
		select {
		case sub.C <- ev:
		default:
			b.dropped[sub]++
			if b.dropped[sub]%1000 == 1 {
				b.log.WithComponent("pubsub").WithFields(logger.Fields{
					"topic":   topic,
					"dropped": b.dropped[sub],
				}).Warn("slow subscriber, dropping events")
			}
		}
	}
}

// PublishMarketData publishes a tick on the market data topic and its
// venue and symbol scoped variants. A subscriber matching more than one of
// the variants still receives the tick once.
func (b *Bus) PublishMarketData(tick models.MarketData) {
	topics := [3]string{
		TopicMarketData,
		fmt.Sprintf("%s.%s", TopicMarketData, tick.Venue),
		fmt.Sprintf("%s.%s.%s", TopicMarketData, tick.Venue, tick.Symbol),
	}
	ev := Event{Topic: TopicMarketData, Time: time.Now().UTC(), Payload: tick}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		if sub.topics != nil {
			matched := false
			for _, t := range topics {
				if _, ok := sub.topics[t]; ok {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		select {
		case sub.C <- ev:
		default:
			b.dropped[sub]++
			if b.dropped[sub]%1000 == 1 {
				b.log.WithComponent("pubsub").WithFields(logger.Fields{
					"topic":   TopicMarketData,
					"dropped": b.dropped[sub],
				}).Warn("slow subscriber, dropping events")
			}
		}
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	delete(b.dropped, sub)
	close(sub.C)
}

// Close detaches every subscriber and closes their channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.C)
	}
}
