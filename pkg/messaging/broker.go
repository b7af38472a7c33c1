package messaging

import (
	"context"
)

// Broker defines the interface for message brokers. The engine publishes
// alert and block events so external dashboards can subscribe live.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels used by the engine.
const (
	ChannelAlerts = "engine:alerts"
	ChannelBlocks = "engine:blocks"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
