package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectLogSubmitted carries raw transcript logs to be parsed.
	SubjectLogSubmitted = "chatlog.log.submitted"
	// SubjectReportGenerated announces a finished report.
	SubjectReportGenerated = "chatlog.report.generated"
)

// LogSubmittedEvent asks chatlog to parse a log. Year 0 means the current year.
type LogSubmittedEvent struct {
	SourceRef string `json:"source_ref"`
	Log       string `json:"log"`
	Year      int    `json:"year,omitempty"`
}

// ReportGeneratedEvent summarises a report for downstream consumers.
type ReportGeneratedEvent struct {
	ReportID    string    `json:"report_id"`
	SourceRef   string    `json:"source_ref"`
	Users       int       `json:"users"`
	Exchanges   int       `json:"exchanges"`
	Fallbacks   int       `json:"fallbacks"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("chatlog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
