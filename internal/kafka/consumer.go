package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/puzzle-leaderboard/internal/config"
	"github.com/puzzle-leaderboard/internal/domain"
	"github.com/puzzle-leaderboard/internal/service"
)

const batchProcessTimeout = 30 * time.Second

// ShareHandler ingests batches of forwarded share messages
type ShareHandler interface {
	SubmitTextBatch(ctx context.Context, messages []domain.ShareMessage) service.BatchResult
}

// Consumer reads share messages from Kafka and submits them in batches
type Consumer struct {
	config        *config.KafkaConfig
	handler       ShareHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan struct{}
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ShareHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return newConsumer(cfg, handler, consumerGroup, logger), nil
}

func newConsumer(cfg *config.KafkaConfig, handler ShareHandler, group sarama.ConsumerGroup, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan struct{}),
	}
}

// Start joins the consumer group and returns once the first session is set up
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	var once sync.Once
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &shareGroupHandler{consumer: c, onSetup: func() { once.Do(func() { close(c.ready) }) }}
			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-c.ready:
		c.logger.Info("Kafka consumer ready")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// shareGroupHandler implements sarama.ConsumerGroupHandler
type shareGroupHandler struct {
	consumer *Consumer
	onSetup  func()
}

// Setup is called at the beginning of a new session
func (h *shareGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	if h.onSetup != nil {
		h.onSetup()
	}
	return nil
}

// Cleanup is called at the end of a session
func (h *shareGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim batches the messages of one partition. Offsets are marked
// only after the batch holding them was handed to the service, so a crash
// replays at most one batch; replays are rejected as duplicates.
func (h *shareGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	logger := h.consumer.logger

	batch := make([]domain.ShareMessage, 0, cfg.BatchSize)
	var pending []*sarama.ConsumerMessage
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	flush := func() {
		if len(batch) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), batchProcessTimeout)
			result := h.consumer.handler.SubmitTextBatch(ctx, batch)
			cancel()
			logger.Debug("processed share batch",
				"batch_size", len(batch),
				"accepted", result.Accepted,
				"rejected", result.Rejected,
			)
		}
		for _, msg := range pending {
			session.MarkMessage(msg, "")
		}
		batch = batch[:0]
		pending = pending[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			flush()
			return nil

		case <-batchTimer.C:
			flush()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			pending = append(pending, message)

			share, err := DecodeShare(message)
			if err != nil {
				logger.Warn("skipping share message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				continue
			}
			batch = append(batch, share)

			if len(batch) >= cfg.BatchSize {
				flush()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// DecodeShare decodes a share message. The record key stands in for a
// missing player id and the record timestamp for a missing sent_at.
func DecodeShare(msg *sarama.ConsumerMessage) (domain.ShareMessage, error) {
	var share domain.ShareMessage
	if err := json.Unmarshal(msg.Value, &share); err != nil {
		return domain.ShareMessage{}, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}

	share.PlayerID = strings.TrimSpace(share.PlayerID)
	if share.PlayerID == "" {
		share.PlayerID = strings.TrimSpace(string(msg.Key))
	}
	if share.PlayerID == "" {
		return domain.ShareMessage{}, fmt.Errorf("%w: player_id is required", domain.ErrInvalidSubmission)
	}
	if strings.TrimSpace(share.Text) == "" {
		return domain.ShareMessage{}, fmt.Errorf("%w: text is required", domain.ErrInvalidSubmission)
	}
	if share.SentAt.IsZero() {
		share.SentAt = msg.Timestamp
	}
	return share, nil
}
