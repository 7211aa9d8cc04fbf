package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/regiorail/horaires/internal/logger"
	"github.com/regiorail/horaires/internal/perturbation"
)

// SinkName labels NATS in publish metrics
const SinkName = "nats"

// Metrics receives publish outcomes
type Metrics interface {
	PublishedInc(sink string)
	PublishErrInc(sink string)
}

// conn is the part of *nats.Conn the publisher needs
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher forwards perturbation events to NATS subjects of the form
// <prefix>.<scheduleId>.<type>
type NATSPublisher struct {
	nc      conn
	close   func()
	prefix  string
	log     logger.Logger
	metrics Metrics
}

// NewNATSPublisher connects to url. m may be nil.
func NewNATSPublisher(url, prefix string, log logger.Logger, m Metrics) (*NATSPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	nc, err := nats.Connect(url,
		nats.Name("horaires-api"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p := newPublisher(nc, prefix, log, m)
	p.close = func() {
		nc.Drain()
		nc.Close()
	}
	return p, nil
}

func newPublisher(nc conn, prefix string, log logger.Logger, m Metrics) *NATSPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, log: log, metrics: m}
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}

// Subject returns the subject an event is published on
func (p *NATSPublisher) Subject(ev perturbation.Event) string {
	return fmt.Sprintf("%s.%s.%s", subjectToken(p.prefix), subjectToken(ev.ScheduleID), subjectToken(string(ev.Type)))
}

// Publish implements perturbation.Publisher
func (p *NATSPublisher) Publish(_ context.Context, ev perturbation.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	subject := p.Subject(ev)
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.PublishErrInc(SinkName)
		} else {
			p.metrics.PublishedInc(SinkName)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish on %s: %w", subject, err)
	}
	p.log.Debug("Published perturbation event", "subject", subject)
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*' or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
