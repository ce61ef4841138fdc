package models

import "time"

// ConnState tracks where a venue connection sits in its lifecycle.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnStreaming    ConnState = "streaming"
	ConnReconnecting ConnState = "reconnecting"
)

// VenueStatus is the externally visible connection status for one venue.
type VenueStatus struct {
	Venue         string    `json:"venue"`
	State         ConnState `json:"state"`
	ConnectedAt   time.Time `json:"connected_at,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	Subscriptions []string  `json:"subscriptions,omitempty"`
	NextRetryIn   string    `json:"next_retry_in,omitempty"`
}
