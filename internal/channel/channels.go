package channel

import (
	"context"
	"sync"
	"time"

	"tickerflow/logger"
	"tickerflow/models"
)

// ChannelStats counts messages moved through or dropped by the hub.
type ChannelStats struct {
	RawSent     int64
	TickSent    int64
	RawDropped  int64
	TickDropped int64
}

// Channels is the typed hub between the connection manager and the engine
// tick pump. Raw carries unparsed venue payloads for observability taps;
// Ticks carries normalized market data.
type Channels struct {
	Raw   chan models.RawMessage
	Ticks chan models.MarketData

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(rawBufferSize, tickBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw:   make(chan models.RawMessage, rawBufferSize),
		Ticks: make(chan models.MarketData, tickBufferSize),
		log:   log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size":  rawBufferSize,
		"tick_buffer_size": tickBufferSize,
	}).Info("channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Raw)
	close(c.Ticks)
	c.log.WithComponent("channels").Info("channels closed")
}

// SendRaw offers a raw payload without blocking. Full buffers drop the
// message and count it.
func (c *Channels) SendRaw(ctx context.Context, msg models.RawMessage) bool {
	select {
	case c.Raw <- msg:
		c.statsMutex.Lock()
		c.stats.RawSent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.RawDropped++
		c.statsMutex.Unlock()
		return false
	}
}

// SendTick offers a normalized tick without blocking.
func (c *Channels) SendTick(ctx context.Context, tick models.MarketData) bool {
	select {
	case c.Ticks <- tick:
		c.statsMutex.Lock()
		c.stats.TickSent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.TickDropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting logs channel throughput and backlog periodically
// until the context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.GetStats()
			c.log.WithComponent("channels").WithFields(logger.Fields{
				"raw_sent":     stats.RawSent,
				"tick_sent":    stats.TickSent,
				"raw_dropped":  stats.RawDropped,
				"tick_dropped": stats.TickDropped,
				"raw_backlog":  len(c.Raw),
				"tick_backlog": len(c.Ticks),
			}).Info("channel metrics")

			logger.RecordChannelMessage("raw", int(stats.RawSent))
			logger.RecordChannelMessage("ticks", int(stats.TickSent))
		}
	}
}
