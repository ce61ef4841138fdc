package pubsub

import (
	"testing"

	"tickerflow/models"
)

func TestSubscribeTopicFilter(t *testing.T) {
	b := NewBus(8)
	arb := b.Subscribe(TopicArbitrage)
	all := b.Subscribe()

	b.Publish(TopicVenueConnected, "binance")
	b.Publish(TopicArbitrage, "opp")

	ev := <-arb.C
	if ev.Topic != TopicArbitrage {
		t.Errorf("filtered subscriber received %s", ev.Topic)
	}
	if len(arb.C) != 0 {
		t.Error("filtered subscriber should only see its topic")
	}

	if got := len(all.C); got != 2 {
		t.Errorf("unfiltered subscriber should see both events, got %d", got)
	}
}

func TestPublishMarketDataScopedTopics(t *testing.T) {
	b := NewBus(8)
	venueScoped := b.Subscribe("market.data.binance")
	symbolScoped := b.Subscribe("market.data.binance.BTCUSDT")
	otherVenue := b.Subscribe("market.data.kraken")

	b.PublishMarketData(models.MarketData{Venue: "binance", Symbol: "BTCUSDT", LastPrice: 1})

	if len(venueScoped.C) != 1 {
		t.Error("venue-scoped subscriber should receive the tick")
	}
	if len(symbolScoped.C) != 1 {
		t.Error("symbol-scoped subscriber should receive the tick")
	}
	if len(otherVenue.C) != 0 {
		t.Error("other venues should not receive the tick")
	}
}

func TestPublishMarketDataDeliversOnce(t *testing.T) {
	b := NewBus(8)
	sub := b.Subscribe(TopicMarketData, "market.data.binance")

	b.PublishMarketData(models.MarketData{Venue: "binance", Symbol: "BTCUSDT"})

	if got := len(sub.C); got != 1 {
		t.Errorf("overlapping topics should deliver once, got %d", got)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := NewBus(1)
	sub := b.Subscribe(TopicArbitrage)

	b.Publish(TopicArbitrage, 1)
	b.Publish(TopicArbitrage, 2)
	b.Publish(TopicArbitrage, 3)

	if got := sub.Dropped(); got != 2 {
		t.Errorf("expected 2 dropped events, got %d", got)
	}
	if len(sub.C) != 1 {
		t.Errorf("buffer should hold 1 event, got %d", len(sub.C))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(8)
	sub := b.Subscribe()
	sub.Unsubscribe()

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// publishing after unsubscribe must not panic
	b.Publish(TopicArbitrage, 1)
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBus(8)
	sub := b.Subscribe()
	b.Close()
	b.Close()

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after bus close")
	}

	// late subscribers get a closed channel rather than a leak
	late := b.Subscribe()
	if _, ok := <-late.C; ok {
		t.Error("late subscription should be closed immediately")
	}
}
