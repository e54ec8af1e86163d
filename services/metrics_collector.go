package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg/metrics"
	"github.com/akinalp/parley/repository"
)

// LiveCounter reports live socket state; the ws hub implements it.
type LiveCounter interface {
	OnlineUserIDs() []string
	ConnectionCount() int
}

// MetricsCollector periodically samples stored totals into the
// parley_stored_entities gauges and answers GET /api/stats.
type MetricsCollector interface {
	// Start samples once immediately, then every interval.
	Start()
	// Stop ends the sampling goroutine and waits for it. Safe to call twice.
	Stop()
	// Snapshot reads fresh totals from storage.
	Snapshot(ctx context.Context) (*models.Stats, error)
}

type metricsCollector struct {
	userRepo    repository.UserRepository
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	live        LiveCounter
	metrics     *metrics.Metrics
	interval    time.Duration
	log         *zap.Logger

	stopCh   chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// NewMetricsCollector, constructor.
func NewMetricsCollector(
	userRepo repository.UserRepository,
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	live LiveCounter,
	m *metrics.Metrics,
	interval time.Duration,
	log *zap.Logger,
) MetricsCollector {
	return &metricsCollector{
		userRepo:    userRepo,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		live:        live,
		metrics:     m,
		interval:    interval,
		log:         log,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (c *metricsCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	c.log.Info("metrics collector starting", zap.Duration("interval", c.interval))

	go func() {
		defer close(c.done)
		c.collect()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				c.log.Info("metrics collector stopped")
				return
			}
		}
	}()
}

func (c *metricsCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

func (c *metricsCollector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := c.Snapshot(ctx)
	if err != nil {
		c.log.Warn("metrics sample failed", zap.Error(err))
		return
	}

	c.metrics.StoredTotals.WithLabelValues("users").Set(float64(stats.Users))
	c.metrics.StoredTotals.WithLabelValues("conversations").Set(float64(stats.Conversations))
	c.metrics.StoredTotals.WithLabelValues("messages").Set(float64(stats.Messages))
}

func (c *metricsCollector) Snapshot(ctx context.Context) (*models.Stats, error) {
	users, err := c.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	convs, err := c.convRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	msgs, err := c.messageRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Stats{
		Users:         users,
		Conversations: convs,
		Messages:      msgs,
		OnlineUsers:   len(c.live.OnlineUserIDs()),
		Connections:   c.live.ConnectionCount(),
		SampledAt:     time.Now().UTC(),
	}, nil
}
