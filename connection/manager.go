package connection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"tickerflow/adapter"
	appconfig "tickerflow/config"
	"tickerflow/internal/channel"
	"tickerflow/internal/pubsub"
	"tickerflow/logger"
	"tickerflow/models"
	"tickerflow/venue"
)

// Conn is the subset of a websocket connection the manager needs. Satisfied
// by *websocket.Conn; tests substitute fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a stream connection to a venue endpoint.
type Dialer interface {
	Dial(url string) (Conn, error)
}

type wsDialer struct{}

func (wsDialer) Dial(url string) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// venueConn holds the live state for one venue connection.
type venueConn struct {
	venue   *venue.Config
	adapter adapter.VenueAdapter

	conn          Conn
	state         models.ConnState
	connectedAt   time.Time
	lastMessageAt time.Time
	writeMu       sync.Mutex
}

// VenueErrorEvent is the payload published on venue error events.
type VenueErrorEvent struct {
	Venue string
	Err   error
}

// Manager owns one persistent streaming connection per active venue and
// drives the connect, subscribe-defaults, receive, reconnect lifecycle.
// Inbound messages on one connection are handled strictly in arrival order;
// there is no ordering across venues.
type Manager struct {
	config   *appconfig.Config
	catalog  *venue.Catalog
	adapters *adapter.Registry
	channels *channel.Channels
	bus      *pubsub.Bus
	dialer   Dialer
	log      *logger.Log

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	conns    map[string]*venueConn
	timers   map[string]*time.Timer
	retryAt  map[string]time.Time
	backoffs map[string]*backoff.Backoff
	subs     map[string]map[string]struct{}
	closed   bool
}

func NewManager(cfg *appconfig.Config, catalog *venue.Catalog, adapters *adapter.Registry, ch *channel.Channels, bus *pubsub.Bus) *Manager {
	return &Manager{
		config:   cfg,
		catalog:  catalog,
		adapters: adapters,
		channels: ch,
		bus:      bus,
		dialer:   wsDialer{},
		log:      logger.GetLogger(),
		conns:    make(map[string]*venueConn),
		timers:   make(map[string]*time.Timer),
		retryAt:  make(map[string]time.Time),
		backoffs: make(map[string]*backoff.Backoff),
		subs:     make(map[string]map[string]struct{}),
	}
}

// SetDialer replaces the websocket dialer. Must be called before Start.
func (m *Manager) SetDialer(d Dialer) { m.dialer = d }

// Start connects every active realtime-capable venue from the catalog.
// Individual connect failures schedule a reconnect rather than failing the
// whole engine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return fmt.Errorf("connection manager already running")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	venues := m.catalog.RealtimeCapable()
	m.log.WithComponent("connection_manager").WithFields(logger.Fields{
		"venues": len(venues),
	}).Info("starting connection manager")

	for _, v := range venues {
		if err := m.Connect(v.ID); err != nil {
			m.log.WithComponent("connection_manager").WithError(err).WithFields(logger.Fields{
				"venue": v.ID,
			}).Warn("initial connect failed, reconnect scheduled")
		}
	}
	return nil
}

// Connect opens the venue's streaming endpoint, announces the connection,
// subscribes the default symbol set and starts the read loop. On failure a
// reconnect is scheduled and the dial error returned.
func (m *Manager) Connect(venueID string) error {
	v, ok := m.catalog.Get(venueID)
	if !ok {
		return fmt.Errorf("unknown venue %q", venueID)
	}
	if !v.Capabilities.RealtimeData || v.StreamBaseURL == "" {
		return fmt.Errorf("venue %q does not support realtime streaming", venueID)
	}

	ad, err := m.adapters.Get(venueID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("connection manager is closed")
	}
	if existing, ok := m.conns[venueID]; ok && existing.state != models.ConnDisconnected && existing.state != models.ConnReconnecting {
		m.mu.Unlock()
		return fmt.Errorf("venue %q already connected", venueID)
	}
	vc := &venueConn{venue: v, adapter: ad, state: models.ConnConnecting}
	m.conns[venueID] = vc
	m.mu.Unlock()

	log := m.log.WithComponent("connection_manager").WithFields(logger.Fields{"venue": venueID})

	conn, err := m.dialer.Dial(v.StreamBaseURL)
	if err != nil {
		log.WithError(err).Warn("stream dial failed")
		m.mu.Lock()
		vc.state = models.ConnDisconnected
		m.scheduleReconnectLocked(venueID)
		m.mu.Unlock()
		return fmt.Errorf("dial %s: %w", venueID, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return fmt.Errorf("connection manager is closed")
	}
	vc.conn = conn
	vc.state = models.ConnConnected
	vc.connectedAt = time.Now().UTC()
	// a pending retry is moot once a manual connect lands
	if t, ok := m.timers[venueID]; ok {
		t.Stop()
		delete(m.timers, venueID)
	}
	delete(m.retryAt, venueID)
	if b, ok := m.backoffs[venueID]; ok {
		b.Reset()
	}
	m.mu.Unlock()

	log.Info("venue connected")
	m.bus.Publish(pubsub.TopicVenueConnected, venueID)

	// default subscriptions guarantee consumers see data without an
	// explicit subscribe call
	if err := m.subscribeDefaults(vc); err != nil {
		log.WithError(err).Warn("default subscription failed")
	}

	m.mu.Lock()
	vc.state = models.ConnStreaming
	m.mu.Unlock()

	m.wg.Add(1)
	go m.readLoop(vc)
	return nil
}

// subscribeDefaults subscribes the first N supported symbols plus any
// symbols recorded before a reconnect.
func (m *Manager) subscribeDefaults(vc *venueConn) error {
	n := m.config.Engine.DefaultSubscriptions
	if n > len(vc.venue.Symbols) {
		n = len(vc.venue.Symbols)
	}
	want := append([]string(nil), vc.venue.Symbols[:n]...)

	m.mu.Lock()
	for s := range m.subs[vc.venue.ID] {
		found := false
		for _, w := range want {
			if w == s {
				found = true
				break
			}
		}
		if !found {
			want = append(want, s)
		}
	}
	m.mu.Unlock()

	sort.Strings(want)
	return m.subscribe(vc, want, nil)
}

func (m *Manager) subscribe(vc *venueConn, symbols, channels []string) error {
	if len(symbols) == 0 {
		return nil
	}
	msg, err := vc.adapter.BuildSubscribe(symbols, channels)
	if err != nil {
		return fmt.Errorf("build subscribe for %s: %w", vc.venue.ID, err)
	}

	vc.writeMu.Lock()
	err = vc.conn.WriteMessage(websocket.TextMessage, msg)
	vc.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send subscribe to %s: %w", vc.venue.ID, err)
	}

	m.mu.Lock()
	if m.subs[vc.venue.ID] == nil {
		m.subs[vc.venue.ID] = make(map[string]struct{})
	}
	for _, s := range symbols {
		m.subs[vc.venue.ID][s] = struct{}{}
	}
	m.mu.Unlock()

	m.log.WithComponent("connection_manager").WithFields(logger.Fields{
		"venue":   vc.venue.ID,
		"symbols": symbols,
	}).Info("subscribed to symbols")
	return nil
}

// Subscribe sends a subscribe control message for the symbols. Subscribing
// an already-subscribed symbol still sends the wire message, matching venue
// semantics; the subscription record itself is idempotent.
func (m *Manager) Subscribe(venueID string, symbols ...string) error {
	vc, err := m.streamingConn(venueID)
	if err != nil {
		return err
	}
	return m.subscribe(vc, symbols, nil)
}

// Unsubscribe sends an unsubscribe control message and drops the
// subscription records.
func (m *Manager) Unsubscribe(venueID string, symbols ...string) error {
	vc, err := m.streamingConn(venueID)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	msg, err := vc.adapter.BuildUnsubscribe(symbols, nil)
	if err != nil {
		return fmt.Errorf("build unsubscribe for %s: %w", venueID, err)
	}

	vc.writeMu.Lock()
	err = vc.conn.WriteMessage(websocket.TextMessage, msg)
	vc.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send unsubscribe to %s: %w", venueID, err)
	}

	m.mu.Lock()
	for _, s := range symbols {
		delete(m.subs[venueID], s)
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) streamingConn(venueID string) (*venueConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vc, ok := m.conns[venueID]
	if !ok || vc.conn == nil || (vc.state != models.ConnStreaming && vc.state != models.ConnConnected) {
		return nil, fmt.Errorf("venue %q is not connected", venueID)
	}
	return vc, nil
}

// readLoop consumes inbound messages until the socket closes. One bad
// message never terminates the connection.
func (m *Manager) readLoop(vc *venueConn) {
	defer m.wg.Done()

	log := m.log.WithComponent("connection_manager").WithFields(logger.Fields{
		"venue":  vc.venue.ID,
		"worker": "read_loop",
	})

	for {
		_, raw, err := vc.conn.ReadMessage()
		if err != nil {
			m.handleClose(vc, err)
			return
		}

		logger.IncrementStreamRead(len(raw))

		m.mu.Lock()
		vc.lastMessageAt = time.Now().UTC()
		m.mu.Unlock()

		m.channels.SendRaw(m.ctx, models.RawMessage{
			Venue:     vc.venue.ID,
			Data:      raw,
			Timestamp: time.Now().UTC(),
		})

		tick, err := vc.adapter.ParseMessage(raw)
		if err != nil {
			log.WithError(err).Warn("dropping unparseable message")
			continue
		}
		if tick == nil {
			continue
		}

		if !m.channels.SendTick(m.ctx, *tick) && m.ctx.Err() != nil {
			return
		}
	}
}

// handleClose transitions the venue to disconnected, publishes the error
// event and schedules a reconnect. During shutdown it only marks the state.
func (m *Manager) handleClose(vc *venueConn, err error) {
	m.mu.Lock()
	wasClosed := m.closed || m.ctx.Err() != nil
	vc.state = models.ConnDisconnected
	vc.conn = nil
	// subscription records survive the connection so the replacement
	// socket re-establishes them
	if !wasClosed {
		m.scheduleReconnectLocked(vc.venue.ID)
	}
	m.mu.Unlock()

	if wasClosed {
		return
	}

	m.log.WithComponent("connection_manager").WithError(err).WithFields(logger.Fields{
		"venue": vc.venue.ID,
	}).Warn("venue connection closed")
	m.bus.Publish(pubsub.TopicVenueError, VenueErrorEvent{Venue: vc.venue.ID, Err: err})
}

// scheduleReconnectLocked arms the reconnect timer for a venue, replacing
// any timer already pending so repeated closes cannot stack reconnects.
// Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked(venueID string) {
	if m.closed {
		return
	}

	if t, ok := m.timers[venueID]; ok {
		t.Stop()
	}

	b, ok := m.backoffs[venueID]
	if !ok {
		b = &backoff.Backoff{
			Min:    m.config.Reconnect.MinDelay.Std(),
			Max:    m.config.Reconnect.MaxDelay.Std(),
			Factor: m.config.Reconnect.Factor,
			Jitter: m.config.Reconnect.Jitter,
		}
		m.backoffs[venueID] = b
	}
	delay := b.Duration()

	if vc, ok := m.conns[venueID]; ok {
		vc.state = models.ConnReconnecting
	}

	m.log.WithComponent("connection_manager").WithFields(logger.Fields{
		"venue": venueID,
		"delay": delay.String(),
	}).Info("reconnect scheduled")

	m.retryAt[venueID] = time.Now().Add(delay)
	m.timers[venueID] = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, venueID)
		delete(m.retryAt, venueID)
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		if err := m.Connect(venueID); err != nil {
			m.log.WithComponent("connection_manager").WithError(err).WithFields(logger.Fields{
				"venue": venueID,
			}).Warn("reconnect attempt failed")
		}
	})
}

// Disconnect closes one venue connection and cancels its reconnect timer
// and subscriptions. Other venues are unaffected.
func (m *Manager) Disconnect(venueID string) {
	m.mu.Lock()
	if t, ok := m.timers[venueID]; ok {
		t.Stop()
		delete(m.timers, venueID)
	}
	delete(m.retryAt, venueID)
	delete(m.backoffs, venueID)
	delete(m.subs, venueID)
	vc, ok := m.conns[venueID]
	var conn Conn
	if ok {
		conn = vc.conn
		vc.conn = nil
		vc.state = models.ConnDisconnected
	}
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// ConnectedVenues returns the ids of venues currently connected or
// streaming, sorted.
func (m *Manager) ConnectedVenues() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, vc := range m.conns {
		if vc.state == models.ConnConnected || vc.state == models.ConnStreaming {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Status reports the connection status for one venue. Venues known to the
// catalog but never connected report disconnected.
func (m *Manager) Status(venueID string) (models.VenueStatus, error) {
	if _, ok := m.catalog.Get(venueID); !ok {
		return models.VenueStatus{}, fmt.Errorf("unknown venue %q", venueID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status := models.VenueStatus{Venue: venueID, State: models.ConnDisconnected}
	if vc, ok := m.conns[venueID]; ok {
		status.State = vc.state
		status.ConnectedAt = vc.connectedAt
		status.LastMessageAt = vc.lastMessageAt
	}
	for s := range m.subs[venueID] {
		status.Subscriptions = append(status.Subscriptions, s)
	}
	sort.Strings(status.Subscriptions)
	if at, ok := m.retryAt[venueID]; ok {
		if d := time.Until(at); d > 0 {
			status.NextRetryIn = d.Round(time.Millisecond).String()
		}
	}
	return status, nil
}

// PendingTimers reports how many reconnect timers are armed.
func (m *Manager) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Close shuts down every connection, cancels every pending reconnect timer
// and clears all internal maps. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	for id := range m.retryAt {
		delete(m.retryAt, id)
	}
	var open []Conn
	for id, vc := range m.conns {
		if vc.conn != nil {
			open = append(open, vc.conn)
		}
		vc.conn = nil
		vc.state = models.ConnDisconnected
		delete(m.conns, id)
	}
	for id := range m.subs {
		delete(m.subs, id)
	}
	for id := range m.backoffs {
		delete(m.backoffs, id)
	}
	m.mu.Unlock()

	for _, c := range open {
		c.Close()
	}
	m.wg.Wait()

	m.log.WithComponent("connection_manager").Info("connection manager closed")
}
