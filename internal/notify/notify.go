// Package notify publishes sync progress to NATS so other services can follow
// a running sync.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scrim-review/internal/syncer"
)

const (
	DefaultSubject = "scrims.sync"
	flushTimeout   = 5 * time.Second
)

// Event is the JSON body of every published message.
type Event struct {
	Source string        `json:"source"`
	At     time.Time     `json:"at"`
	Status syncer.Status `json:"status"`
}

// Publisher is a syncer.Reporter backed by a NATS connection.
type Publisher struct {
	nc      *nats.Conn
	subject string
	source  string
	log     *zap.Logger
}

func Connect(url, subject, source string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("scrim-review"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect %s: %w", url, err)
	}
	log.Info("nats connected", zap.String("url", nc.ConnectedUrl()), zap.String("subject", subject))
	return &Publisher{nc: nc, subject: subject, source: source, log: log}, nil
}

// Report publishes st. Failures are logged, never returned; a sync must not
// stop because nobody is listening.
func (p *Publisher) Report(st syncer.Status) {
	data, err := json.Marshal(Event{Source: p.source, At: time.Now().UTC(), Status: st})
	if err != nil {
		p.log.Error("encode sync status", zap.Error(err))
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		p.log.Warn("publish sync status", zap.String("subject", p.subject), zap.Error(err))
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	defer p.nc.Close()
	if err := p.nc.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("notify: flush: %w", err)
	}
	return nil
}
