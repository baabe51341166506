// Package peermsg announces marketplace activity to other Agora nodes
// over NATS. Announcements are best-effort: a node with no broker
// configured runs standalone and every announce is a no-op.
package peermsg

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/agora-network/agora/internal/domain"
)

// subjectPrefix namespaces all Agora subjects on a shared broker.
const subjectPrefix = "agora"

// Channel publishes announcements to a NATS broker. A nil Channel is a
// valid no-op channel. Implements domain.PeerChannel.
type Channel struct {
	conn *nats.Conn
}

// Connect dials the broker. An empty URL returns a nil channel, which
// silently drops every announcement.
func Connect(url string) (*Channel, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("agora-node"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Channel{conn: conn}, nil
}

// Announce publishes a JSON payload on agora.<topic>. Best-effort; errors
// are logged, never returned to the caller's hot path.
func (c *Channel) Announce(topic string, payload any) {
	if c == nil || c.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[peermsg] marshal %s: %v", topic, err)
		return
	}
	subject := subjectPrefix + "." + topic
	if err := c.conn.Publish(subject, data); err != nil {
		log.Printf("[peermsg] publish %s: %v", subject, err)
	}
}

// Close drains in-flight messages and disconnects.
func (c *Channel) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// ─── Event forwarding ───────────────────────────────────────────────────────

// announced are the event types other nodes care about: open work and
// reputation movements. Internal bookkeeping events stay local.
var announced = map[domain.EventType]string{
	domain.EvTaskCreated:       "tasks.created",
	domain.EvTaskAssigned:      "tasks.assigned",
	domain.EvTaskCompleted:     "tasks.completed",
	domain.EvBiddingOpened:     "auctions.opened",
	domain.EvBiddingClosed:     "auctions.closed",
	domain.EvReputationUpdated: "agents.reputation",
}

// Forward pumps bus events onto the wire until the channel is closed by
// the bus. Run it in its own goroutine.
func (c *Channel) Forward(events <-chan domain.Event) {
	for ev := range events {
		topic, ok := announced[ev.Type]
		if !ok {
			continue
		}
		c.Announce(topic, ev)
	}
}
