package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatlog/internal/hermes"
	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
	"github.com/MikeSquared-Agency/chatlog/internal/observe"
	"github.com/MikeSquared-Agency/chatlog/internal/source"
)

// Publisher announces finished reports. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs the transcript pipeline: read, parse, record, announce.
// Each call to Run is an independent synchronous pass over one log.
type Processor struct {
	cfg       logparse.Config
	loc       *time.Location
	metrics   *observe.Metrics
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a Processor.
type Option func(*Processor)

// WithLocation sets the zone timestamps are resolved in.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) { p.loc = loc }
}

// WithMetrics records every run on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithPublisher announces every successful run on pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Processor) { p.publisher = pub }
}

// WithClock replaces the clock that supplies the default year.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func New(cfg logparse.Config, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		cfg:    cfg,
		loc:    time.Local,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the log conventions this processor parses with.
func (p *Processor) Config() logparse.Config {
	return p.cfg
}

// Request describes one run.
type Request struct {
	Source source.Source
	// Year resolves the log's year-less timestamps; 0 means the current year.
	Year int
	// NoErrors drops exchanges answered with the fallback response.
	NoErrors bool
}

// Result is the outcome of a successful run.
type Result struct {
	ID        uuid.UUID
	SourceRef string
	Report    *logparse.Report
}

// Run reads the source and parses it. Any failure aborts the run and no
// report is returned.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	raw, err := req.Source.Read(ctx)
	if err != nil {
		return nil, err
	}

	year := req.Year
	if year == 0 {
		year = p.now().Year()
	}
	parser := logparse.New(p.cfg, year)
	parser.Location = p.loc

	start := time.Now()
	report, err := parser.Parse(raw)
	if p.metrics != nil {
		p.metrics.RecordReport(ctx, report, p.cfg, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.Source.Ref(), err)
	}
	if req.NoErrors {
		report = report.WithoutFallbacks()
	}

	res := &Result{ID: uuid.New(), SourceRef: req.Source.Ref(), Report: report}
	p.logger.Info("report generated",
		"report_id", res.ID,
		"source", res.SourceRef,
		"year", year,
		"users", len(report.Users),
		"exchanges", report.Len(),
		"fallbacks", report.Fallbacks(),
	)

	if p.publisher != nil {
		if err := p.publisher.Publish(hermes.SubjectReportGenerated, hermes.ReportGeneratedEvent{
			ReportID:    res.ID.String(),
			SourceRef:   res.SourceRef,
			Users:       len(report.Users),
			Exchanges:   report.Len(),
			Fallbacks:   report.Fallbacks(),
			GeneratedAt: p.now().UTC(),
		}); err != nil {
			p.logger.Warn("failed to publish report event", "report_id", res.ID, "error", err)
		}
	}
	return res, nil
}

// HandleLogSubmitted is the NATS handler for chatlog.log.submitted.
func (p *Processor) HandleLogSubmitted(subject string, data []byte) {
	var evt hermes.LogSubmittedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse log event", "subject", subject, "error", err)
		return
	}

	ref := evt.SourceRef
	if ref == "" {
		ref = subject
	}
	_, err := p.Run(context.Background(), Request{
		Source: source.Text{Name: ref, Body: evt.Log},
		Year:   evt.Year,
	})
	if err != nil {
		p.logger.Error("log processing failed", "source", ref, "error", err)
	}
}
