package report

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/firstprinciples/internal/domain"
	"github.com/oklog/ulid/v2"
)

// Owner identifies the session handle a report belongs to.
type Owner struct {
	UserID    string
	SessionID string
}

// Receipt describes one emitted report. Content and Filename are always
// set so the report can be downloaded even when saving failed.
type Receipt struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content"`
	SaveError string    `json:"save_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Saved reports whether the file was written.
func (r Receipt) Saved() bool {
	return r.SaveError == ""
}

// Catalog records emitted reports.
type Catalog interface {
	SaveReport(ctx context.Context, report *domain.Report) error
}

// Observer is told whether each report reached disk.
type Observer interface {
	ObserveReport(saved bool)
}

// Publisher writes reports to the sink and records them in the catalog.
type Publisher struct {
	sink     *FileSink
	catalog  Catalog
	observer Observer
	logger   *slog.Logger

	entropyMu sync.Mutex
	entropy   io.Reader
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithCatalog records every report in c.
func WithCatalog(c Catalog) PublisherOption {
	return func(p *Publisher) { p.catalog = c }
}

// WithObserver reports save outcomes to o.
func WithObserver(o Observer) PublisherOption {
	return func(p *Publisher) { p.observer = o }
}

// WithLogger sets the publisher's logger.
func WithLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a Publisher writing through sink.
func NewPublisher(sink *FileSink, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:    sink,
		logger:  slog.Default(),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish renders doc, writes it and records it. It never fails: a write
// error is returned in Receipt.SaveError.
func (p *Publisher) Publish(ctx context.Context, owner Owner, doc Document) Receipt {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	receipt := Receipt{
		ID:        p.newID(doc.CreatedAt),
		Filename:  doc.Filename(),
		Content:   doc.Render(),
		CreatedAt: doc.CreatedAt,
	}

	path, err := p.sink.Write(receipt.Filename, receipt.Content)
	if err != nil {
		receipt.SaveError = err.Error()
		p.logger.Warn("Could not save report file",
			"user_id", owner.UserID,
			"session_id", owner.SessionID,
			"filename", receipt.Filename,
			"error", err)
	} else {
		receipt.Path = path
		p.logger.Info("Report saved",
			"user_id", owner.UserID,
			"session_id", owner.SessionID,
			"path", path)
	}

	if p.observer != nil {
		p.observer.ObserveReport(receipt.Saved())
	}

	if p.catalog != nil {
		entry := &domain.Report{
			ID:        receipt.ID,
			UserID:    owner.UserID,
			SessionID: owner.SessionID,
			Filename:  receipt.Filename,
			Path:      receipt.Path,
			Content:   receipt.Content,
			Degraded:  doc.Degraded,
			SaveError: receipt.SaveError,
			CreatedAt: receipt.CreatedAt,
		}
		if err := p.catalog.SaveReport(ctx, entry); err != nil {
			p.logger.Warn("Failed to record report in catalog",
				"report_id", receipt.ID,
				"user_id", owner.UserID,
				"error", err)
		}
	}

	return receipt
}

// For binds the publisher to one session handle.
func (p *Publisher) For(owner Owner) *Emitter {
	return &Emitter{publisher: p, owner: owner}
}

func (p *Publisher) newID(at time.Time) string {
	p.entropyMu.Lock()
	defer p.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), p.entropy).String()
}

// Emitter publishes reports for a fixed owner.
type Emitter struct {
	publisher *Publisher
	owner     Owner
}

// Emit publishes doc on behalf of the bound owner.
func (e *Emitter) Emit(ctx context.Context, doc Document) Receipt {
	return e.publisher.Publish(ctx, e.owner, doc)
}
