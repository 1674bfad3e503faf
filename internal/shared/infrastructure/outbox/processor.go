package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// ProcessorConfig holds configuration for the outbox relay.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// RetentionDays bounds how long published rows are kept; zero keeps them.
	RetentionDays int
	// CleanupInterval is how often published rows past retention are pruned.
	CleanupInterval time.Duration
}

// DefaultProcessorConfig returns the worker defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		RetentionDays:    7,
		CleanupInterval:  time.Hour,
	}
}

// Processor relays outbox messages to the broker as envelopes. Delivery is at
// least once: a crash between publish and MarkPublished resends the message,
// and consumers deduplicate on event ID.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates an outbox relay.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   observability.NoopMetrics{},
		stopChan:  make(chan struct{}),
	}
}

// WithMetrics reports publish counts and lag to m.
func (p *Processor) WithMetrics(m observability.Metrics) *Processor {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Start begins the polling loop in a goroutine.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)

	return nil
}

// Stop gracefully stops the processor.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

// IsRunning returns true if the processor is running.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if p.config.RetentionDays > 0 && p.config.CleanupInterval > 0 {
		cleanupTicker := time.NewTicker(p.config.CleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		case <-cleanup:
			if _, err := p.Cleanup(ctx); err != nil {
				p.logger.Error("failed to prune outbox", "error", err)
			}
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.record(outcomeReadFailed, err)
		return err
	}
	p.observeLag(messages)

	for _, msg := range messages {
		p.relay(ctx, msg)
	}
	return nil
}

// relay publishes one message and settles its row. Failures never abort the
// batch; the row is rescheduled or dead-lettered instead.
func (p *Processor) relay(ctx context.Context, msg *Message) {
	envelope := msg.Envelope()
	body, err := json.Marshal(envelope)
	if err == nil {
		err = p.publisher.Publish(ctx, envelope.RoutingKey, body)
	}
	if err == nil {
		if markErr := p.repo.MarkPublished(ctx, msg.ID); markErr != nil {
			p.logger.Error("outbox row published but not marked",
				"id", msg.ID, "event_id", msg.EventID, "error", markErr)
			return
		}
		p.record(outcomePublished, nil)
		return
	}

	attempt := msg.RetryCount + 1
	p.logger.Warn("outbox publish failed",
		"id", msg.ID,
		"event_id", msg.EventID,
		"routing_key", msg.RoutingKey,
		"correlation_id", envelope.Metadata.CorrelationID,
		"attempt", attempt,
		"error", err,
	)

	var markErr error
	if p.config.MaxRetries <= 0 || attempt >= p.config.MaxRetries {
		p.record(outcomeDead, err)
		markErr = p.repo.MarkDead(ctx, msg.ID, err.Error())
	} else {
		p.record(outcomeRetry, err)
		markErr = p.repo.MarkFailed(ctx, msg.ID, err.Error(), time.Now().Add(p.backoff(attempt)))
	}
	if markErr != nil {
		p.logger.Error("outbox row not settled", "id", msg.ID, "error", markErr)
	}
}

// Cleanup prunes published messages past the retention period.
func (p *Processor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}
	deleted, err := p.repo.DeleteOld(ctx, p.config.RetentionDays)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info("pruned outbox", "deleted", deleted, "retention_days", p.config.RetentionDays)
	}
	return deleted, nil
}

// backoff doubles from RetryBackoffBase per attempt, capped at RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base, ceiling := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	attempt = min(max(attempt, 1), 32)

	d := base * time.Duration(1<<convert.Shift(attempt-1))
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// ProcessOnce relays one batch synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.processBatch(ctx)
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// GetStats returns a copy of the relay's counters.
func (p *Processor) GetStats() Stats {
	running := p.IsRunning()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.IsRunning = running
	return s
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDead
	outcomeReadFailed
)

func (p *Processor) record(o outcome, err error) {
	switch o {
	case outcomePublished:
		p.metrics.Counter(MetricPublished, 1)
	case outcomeRetry:
		p.metrics.Counter(MetricFailed, 1)
	case outcomeDead:
		p.metrics.Counter(MetricDeadLettered, 1)
	}

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	switch o {
	case outcomePublished:
		p.stats.PublishedCount++
	case outcomeRetry:
		p.stats.FailedCount++
	case outcomeDead:
		p.stats.DeadCount++
	}
	if err != nil {
		now := time.Now()
		p.stats.LastError = err.Error()
		p.stats.LastErrorAt = &now
	}
}

// observeLag tracks the age of the oldest pending message in the batch.
func (p *Processor) observeLag(messages []*Message) {
	now := time.Now()
	var oldest *time.Time
	for _, msg := range messages {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			created := msg.CreatedAt
			oldest = &created
		}
	}

	lag := 0.0
	if oldest != nil {
		lag = now.Sub(*oldest).Seconds()
	}
	p.metrics.Gauge(MetricLagSeconds, lag)

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.LastProcessedAt = &now
	p.stats.OldestMessageAt = oldest
	p.stats.LagSeconds = lag
}

// Metric names reported by the relay.
const (
	MetricPublished    = "outbox.published"
	MetricFailed       = "outbox.failed"
	MetricDeadLettered = "outbox.dead_lettered"
	MetricLagSeconds   = "outbox.lag_seconds"
)
