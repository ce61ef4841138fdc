package connection

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tickerflow/adapter"
	appconfig "tickerflow/config"
	"tickerflow/internal/channel"
	"tickerflow/internal/pubsub"
	"tickerflow/models"
	"tickerflow/venue"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte

	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.inbound:
		return 1, b, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) lastWrite() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return ""
	}
	return string(c.writes[len(c.writes)-1])
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  bool
}

func (d *fakeDialer) Dial(url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func testConfig() *appconfig.Config {
	cfg := appconfig.Default()
	cfg.Engine.DefaultSubscriptions = 2
	cfg.Reconnect.MinDelay = appconfig.Duration(10 * time.Millisecond)
	cfg.Reconnect.MaxDelay = appconfig.Duration(50 * time.Millisecond)
	cfg.Reconnect.Jitter = false
	return cfg
}

func testCatalog(t *testing.T) *venue.Catalog {
	t.Helper()
	c, err := venue.NewCatalog([]*venue.Config{{
		ID:            "testmart",
		Name:          "Test Marketplace",
		AssetClasses:  []venue.AssetClass{venue.AssetCrypto},
		StreamBaseURL: "wss://stream.testmart.example/ws",
		Symbols:       []string{"AAA-USD", "BBB-USD", "CCC-USD"},
		Status:        venue.StatusActive,
		Capabilities:  venue.Capabilities{RealtimeData: true},
	}})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return c
}

func newTestManager(t *testing.T) (*Manager, *fakeDialer, *channel.Channels, *pubsub.Bus) {
	t.Helper()
	cfg := testConfig()
	catalog := testCatalog(t)
	ch := channel.NewChannels(16, 16)
	bus := pubsub.NewBus(16)
	m := NewManager(cfg, catalog, adapter.NewRegistry(catalog), ch, bus)
	d := &fakeDialer{}
	m.SetDialer(d)
	return m, d, ch, bus
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartConnectsAndSubscribesDefaults(t *testing.T) {
	m, d, _, bus := newTestManager(t)
	defer m.Close()

	sub := bus.Subscribe(pubsub.TopicVenueConnected)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case ev := <-sub.C:
		if ev.Payload.(string) != "testmart" {
			t.Errorf("unexpected venue %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no connected event")
	}

	conn := d.conn(0)
	if conn == nil {
		t.Fatal("no connection dialed")
	}
	waitFor(t, "default subscription", func() bool { return conn.writeCount() > 0 })
	// first two catalog symbols only
	msg := conn.lastWrite()
	if !strings.Contains(msg, "AAA-USD") || !strings.Contains(msg, "BBB-USD") {
		t.Errorf("default subscribe missing symbols: %s", msg)
	}
	if strings.Contains(msg, "CCC-USD") {
		t.Errorf("third symbol should not be auto-subscribed: %s", msg)
	}

	status, err := m.Status("testmart")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != models.ConnStreaming {
		t.Errorf("unexpected state %s", status.State)
	}
	if len(status.Subscriptions) != 2 {
		t.Errorf("unexpected subscriptions %v", status.Subscriptions)
	}

	if got := m.ConnectedVenues(); len(got) != 1 || got[0] != "testmart" {
		t.Errorf("unexpected connected venues %v", got)
	}
}

func TestInboundTicksReachTheHub(t *testing.T) {
	m, d, ch, _ := newTestManager(t)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "dial", func() bool { return d.dials() == 1 })

	d.conn(0).inbound <- []byte(`{"type":"ticker","symbol":"AAA-USD","price":12.5}`)

	select {
	case tick := <-ch.Ticks:
		if tick.Venue != "testmart" || tick.Symbol != "AAAUSD" || tick.LastPrice != 12.5 {
			t.Errorf("unexpected tick %+v", tick)
		}
	case <-time.After(time.Second):
		t.Fatal("tick never arrived")
	}
}

func TestBadMessageDoesNotKillConnection(t *testing.T) {
	m, d, ch, _ := newTestManager(t)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "dial", func() bool { return d.dials() == 1 })

	d.conn(0).inbound <- []byte(`{"type":"ticker","price":1}`) // missing symbol
	d.conn(0).inbound <- []byte(`{"type":"ticker","symbol":"AAA-USD","price":1}`)

	select {
	case tick := <-ch.Ticks:
		if tick.Symbol != "AAAUSD" {
			t.Errorf("unexpected tick %+v", tick)
		}
	case <-time.After(time.Second):
		t.Fatal("good tick after bad one never arrived")
	}
}

func TestReconnectAfterClose(t *testing.T) {
	m, d, _, bus := newTestManager(t)
	defer m.Close()

	errSub := bus.Subscribe(pubsub.TopicVenueError)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "dial", func() bool { return d.dials() == 1 })

	d.conn(0).Close()

	select {
	case ev := <-errSub.C:
		vee, ok := ev.Payload.(VenueErrorEvent)
		if !ok || vee.Venue != "testmart" {
			t.Errorf("unexpected error event %+v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no venue error event")
	}

	waitFor(t, "reconnect", func() bool { return d.dials() >= 2 })

	// the replacement connection re-establishes the default subscriptions
	waitFor(t, "resubscribe", func() bool {
		c := d.conn(1)
		return c != nil && c.writeCount() > 0
	})

	if m.PendingTimers() != 0 {
		t.Errorf("reconnect timer should be consumed, %d pending", m.PendingTimers())
	}
}

func TestDialFailureSchedulesRetry(t *testing.T) {
	m, d, _, _ := newTestManager(t)
	defer m.Close()

	d.mu.Lock()
	d.fail = true
	d.mu.Unlock()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.PendingTimers() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", m.PendingTimers())
	}

	d.mu.Lock()
	d.fail = false
	d.mu.Unlock()

	waitFor(t, "retry dial", func() bool { return d.dials() >= 1 })
	waitFor(t, "streaming", func() bool {
		s, err := m.Status("testmart")
		return err == nil && s.State == models.ConnStreaming
	})
}

func TestRepeatedSchedulesKeepOnlyLatestTimer(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect.MinDelay = appconfig.Duration(time.Hour)
	cfg.Reconnect.MaxDelay = appconfig.Duration(2 * time.Hour)
	catalog := testCatalog(t)
	ch := channel.NewChannels(16, 16)
	bus := pubsub.NewBus(16)
	m := NewManager(cfg, catalog, adapter.NewRegistry(catalog), ch, bus)
	d := &fakeDialer{fail: true}
	m.SetDialer(d)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.PendingTimers() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", m.PendingTimers())
	}

	// a second failure in quick succession must replace the pending timer,
	// not stack a duplicate reconnect
	if err := m.Connect("testmart"); err == nil {
		t.Fatal("connect with a refusing dialer should fail")
	}
	if m.PendingTimers() != 1 {
		t.Fatalf("expected the replacement timer only, got %d", m.PendingTimers())
	}
	if got := d.dials(); got != 2 {
		t.Fatalf("expected 2 explicit dials, got %d", got)
	}

	// neither hour-scale timer may fire during the test window
	time.Sleep(50 * time.Millisecond)
	if got := d.dials(); got != 2 {
		t.Fatalf("a stale timer fired: %d dials", got)
	}
}

func TestStatusReportsNextRetry(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect.MinDelay = appconfig.Duration(time.Hour)
	cfg.Reconnect.MaxDelay = appconfig.Duration(2 * time.Hour)
	catalog := testCatalog(t)
	ch := channel.NewChannels(16, 16)
	bus := pubsub.NewBus(16)
	m := NewManager(cfg, catalog, adapter.NewRegistry(catalog), ch, bus)
	d := &fakeDialer{fail: true}
	m.SetDialer(d)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	s, err := m.Status("testmart")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if s.State != models.ConnReconnecting {
		t.Fatalf("expected reconnecting state, got %s", s.State)
	}
	if s.NextRetryIn == "" {
		t.Fatal("a pending reconnect should expose the next retry delay")
	}

	d.mu.Lock()
	d.fail = false
	d.mu.Unlock()
	if err := m.Connect("testmart"); err != nil {
		t.Fatalf("manual connect: %v", err)
	}

	s, err = m.Status("testmart")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if s.NextRetryIn != "" {
		t.Errorf("a connected venue should not report a retry delay, got %q", s.NextRetryIn)
	}
	if m.PendingTimers() != 0 {
		t.Errorf("manual connect should cancel the pending retry, %d timers left", m.PendingTimers())
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	m, d, _, _ := newTestManager(t)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "streaming", func() bool {
		s, err := m.Status("testmart")
		return err == nil && s.State == models.ConnStreaming
	})

	before := d.conn(0).writeCount()
	if err := m.Subscribe("testmart", "CCC-USD"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if d.conn(0).writeCount() != before+1 {
		t.Error("subscribe should write a control message")
	}

	status, _ := m.Status("testmart")
	if len(status.Subscriptions) != 3 {
		t.Errorf("unexpected subscriptions %v", status.Subscriptions)
	}

	// re-subscribing an already-subscribed symbol still hits the wire
	if err := m.Subscribe("testmart", "CCC-USD"); err != nil {
		t.Fatalf("repeat subscribe: %v", err)
	}
	if d.conn(0).writeCount() != before+2 {
		t.Error("repeat subscribe should write a control message")
	}
	status, _ = m.Status("testmart")
	if len(status.Subscriptions) != 3 {
		t.Errorf("subscription record should be idempotent: %v", status.Subscriptions)
	}

	if err := m.Unsubscribe("testmart", "CCC-USD"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	status, _ = m.Status("testmart")
	if len(status.Subscriptions) != 2 {
		t.Errorf("unexpected subscriptions after unsubscribe %v", status.Subscriptions)
	}

	if err := m.Subscribe("nope", "X"); err == nil {
		t.Error("subscribe on unknown venue should fail")
	}
}

func TestCloseIsIdempotentAndCancelsTimers(t *testing.T) {
	m, d, _, _ := newTestManager(t)

	d.mu.Lock()
	d.fail = true
	d.mu.Unlock()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.PendingTimers() != 1 {
		t.Fatalf("expected pending timer, got %d", m.PendingTimers())
	}

	m.Close()
	m.Close()

	if m.PendingTimers() != 0 {
		t.Errorf("timers should be cancelled, %d pending", m.PendingTimers())
	}
	if got := m.ConnectedVenues(); len(got) != 0 {
		t.Errorf("no venues should remain, got %v", got)
	}
	if err := m.Connect("testmart"); err == nil {
		t.Error("connect after close should fail")
	}
}
