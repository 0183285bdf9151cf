package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// EventAnalysisCreated is the type field of every published event.
const EventAnalysisCreated = "analysis.created"

// Event is the JSON payload published after an analysis is archived.
type Event struct {
	Type         string         `json:"type"`
	ID           domain.ID      `json:"id"`
	FileName     string         `json:"fileName"`
	OverallScore int            `json:"overallScore"`
	Verdict      domain.Verdict `json:"verdict"`
	CreatedAt    time.Time      `json:"createdAt"`
}

const flushTimeout = 5 * time.Second

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Publisher implements domain.Notifier on top of core NATS.
type Publisher struct {
	conn    conn
	subject string
	close   func()
}

// Connect dials NATS and returns a publisher for subject.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("mediatrust"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: nc, subject: subject, close: nc.Close}, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(c conn, subject string) *Publisher {
	return &Publisher{conn: c, subject: subject}
}

func (p *Publisher) AnalysisCreated(ctx context.Context, a *domain.Analysis) error {
	data, err := json.Marshal(Event{
		Type:         EventAnalysisCreated,
		ID:           a.ID,
		FileName:     a.FileName,
		OverallScore: a.OverallScore,
		Verdict:      a.Verdict,
		CreatedAt:    a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	// FlushWithContext menolak context tanpa deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	return nil
}

// Close closes the connection opened by Connect.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
