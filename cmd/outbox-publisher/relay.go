package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/db/models"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
	"github.com/freshbulk/freshbulk-backend/pkg/metrics"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	maxRetryDelay       = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeTerminal  outcome = "terminal"
)

var jitterRand = rand.New(rand.NewSource(time.Now().UnixNano()))

type txRunner interface {
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher sends one message and waits for the server ack.
type topicPublisher interface {
	Send(ctx context.Context, msg *gcppubsub.Message) (string, error)
}

type publisherLookup func(topic string) topicPublisher

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

type RelayDeps struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	Tx         txRunner
	Store      eventStore
	Resolver   eventResolver
	Publishers publisherLookup
	Metrics    *metrics.OutboxMetrics
	Readiness  []readinessCheck
}

// Relay moves committed outbox rows to Pub/Sub. Each batch is claimed with
// row locks and settled in the claiming transaction.
type Relay struct {
	logg        *logger.Logger
	tx          txRunner
	store       eventStore
	resolver    eventResolver
	publishers  publisherLookup
	metrics     *metrics.OutboxMetrics
	readiness   []readinessCheck
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(deps RelayDeps) (*Relay, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Tx == nil:
		return nil, errors.New("transaction runner is required")
	case deps.Store == nil:
		return nil, errors.New("outbox store is required")
	case deps.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case deps.Publishers == nil:
		return nil, errors.New("publisher lookup is required")
	}

	r := &Relay{
		logg:        deps.Logger,
		tx:          deps.Tx,
		store:       deps.Store,
		resolver:    deps.Resolver,
		publishers:  deps.Publishers,
		metrics:     deps.Metrics,
		readiness:   deps.Readiness,
		batchSize:   deps.Outbox.BatchSize,
		maxAttempts: deps.Outbox.MaxAttempts,
		poll:        time.Duration(deps.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = fallbackBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = fallbackMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	return r, nil
}

// Run drains the outbox until ctx is cancelled. A non-empty batch is followed
// immediately by the next one; batch errors back off up to maxRetryDelay.
func (r *Relay) Run(ctx context.Context) error {
	for _, dep := range r.readiness {
		if err := dep.check(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", dep.name, err)
		}
	}

	retry := backoff{base: r.poll, limit: maxRetryDelay}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := r.drainOnce(ctx)
		wait := r.poll
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.relay.batch_failed", err)
			wait = retry.next()
		case claimed > 0:
			retry.reset()
			wait = 0
		default:
			retry.reset()
		}

		if err := pause(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// drainOnce claims one batch and settles every row in it. It returns the
// number of rows claimed.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	claimed := 0
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events)

		for _, event := range events {
			result, resolved, cause := r.deliver(ctx, event)
			if err := r.record(tx, event, result, cause); err != nil {
				return err
			}
			r.metrics.IncProcessed(string(event.EventType), string(result))
			r.logOutcome(ctx, event, resolved, result, cause)
		}
		return nil
	})
	return claimed, err
}

// deliver resolves and publishes one row without touching the database.
func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent) (outcome, *registry.ResolvedEvent, error) {
	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		return outcomeTerminal, nil, err
	}

	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return outcomeTerminal, resolved, fmt.Errorf("no publisher for topic %q", topic)
	}

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := pub.Send(sendCtx, buildMessage(event, resolved)); err != nil {
		var permanent registry.NonRetryableError
		if errors.As(err, &permanent) {
			return outcomeTerminal, resolved, err
		}
		if attempt := event.AttemptCount + 1; attempt >= r.maxAttempts {
			return outcomeTerminal, resolved, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		return outcomeRetry, resolved, err
	}
	return outcomePublished, resolved, nil
}

func (r *Relay) record(tx *gorm.DB, event models.OutboxEvent, result outcome, cause error) error {
	var err error
	switch result {
	case outcomePublished:
		err = r.store.MarkPublishedTx(tx, event.ID)
	case outcomeRetry:
		err = r.store.MarkFailedTx(tx, event.ID, cause)
	default:
		err = r.store.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts)
	}
	if err != nil {
		return fmt.Errorf("record %s for outbox row %s: %w", result, event.ID, err)
	}
	return nil
}

func (r *Relay) logOutcome(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent, result outcome, cause error) {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"outcome":       result,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}

	logCtx := r.logg.WithFields(ctx, fields)
	if result == outcomePublished {
		r.logg.Info(logCtx, "outbox.event.published")
		return
	}
	r.logg.Warn(logCtx, "outbox.event.not_published")
}

// buildMessage keys messages by aggregate so events for one order keep their
// commit order on ordered subscriptions.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

type backoff struct {
	base    time.Duration
	limit   time.Duration
	current time.Duration
}

func (b *backoff) next() time.Duration {
	if b.current < b.base {
		b.current = b.base
	}
	b.current *= 2
	if b.current > b.limit {
		b.current = b.limit
	}
	return b.current
}

func (b *backoff) reset() {
	b.current = 0
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterRand.Int63n(int64(jitterWindow)))
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// topicCache hands out one ordered publisher per topic for the process
// lifetime.
type topicCache struct {
	mu     sync.Mutex
	source topicSource
	topics map[string]*gcpTopic
}

func newTopicCache(source topicSource) *topicCache {
	return &topicCache{source: source, topics: map[string]*gcpTopic{}}
}

func (c *topicCache) lookup(topic string) topicPublisher {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.topics[topic]; ok {
		return t
	}
	pub := c.source.Publisher(topic)
	if pub == nil {
		return nil
	}
	pub.EnableMessageOrdering = true
	t := &gcpTopic{pub: pub}
	c.topics[topic] = t
	return t
}

// stop flushes and releases every publisher handed out so far.
func (c *topicCache) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, t := range c.topics {
		t.pub.Stop()
		delete(c.topics, name)
	}
}

type gcpTopic struct {
	pub *gcppubsub.Publisher
}

// Send publishes and waits for the ack. A failed ordered publish pauses its
// ordering key until ResumePublish.
func (t *gcpTopic) Send(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	id, err := t.pub.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		t.pub.ResumePublish(msg.OrderingKey)
	}
	return id, err
}
