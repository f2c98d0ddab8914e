package feed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
)

// publisher is the slice of nats.Conn the bridge needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge mirrors every broker event onto a NATS subject as JSON so
// tracker instances on other hosts can follow the same change feed.
type NATSBridge struct {
	conn    *nats.Conn
	pub     publisher
	broker  *Broker
	subject string
}

// NewNATSBridge connects to the given NATS URL.
func NewNATSBridge(url, subject string, broker *Broker) (*NATSBridge, error) {
	conn, err := nats.Connect(url, nats.Name("yurts-laundry-tracker"))
	if err != nil {
		return nil, err
	}
	return &NATSBridge{conn: conn, pub: conn, broker: broker, subject: subject}, nil
}

func newBridge(pub publisher, subject string, broker *Broker) *NATSBridge {
	return &NATSBridge{pub: pub, broker: broker, subject: subject}
}

// Run forwards broker events until the context is cancelled.
func (b *NATSBridge) Run(ctx context.Context) {
	events, cancel := b.broker.Subscribe()
	defer cancel()
	if b.conn != nil {
		defer b.conn.Drain()
	}

	log.Printf("nats bridge publishing machine events on %q", b.subject)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("nats bridge: marshal event %s: %v", ev.ID, err)
				continue
			}
			if err := b.pub.Publish(b.subject, data); err != nil {
				log.Printf("nats bridge: publish event %s: %v", ev.ID, err)
			}
		}
	}
}
