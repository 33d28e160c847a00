package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
)

// GuessHandler records guess submissions
type GuessHandler interface {
	SubmitGuess(ctx context.Context, sub domain.GuessSubmission) (domain.Guess, error)
}

// Consumer consumes guess messages from Kafka. Buzzer boxes and other
// bridges publish guesses here instead of calling the HTTP API.
type Consumer struct {
	config        *config.KafkaConfig
	handler       GuessHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler GuessHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
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

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]domain.GuessSubmission, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		accepted := processSubmissions(ctx, h.consumer.handler, batch, cfg, h.consumer.logger)
		h.consumer.logger.Debug("processed batch", "batch_size", len(batch), "accepted", accepted)

		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			// Process remaining batch before exit
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			submission, err := decodeSubmission(message.Value)
			if err != nil {
				h.consumer.logger.Warn("invalid guess message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, submission)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

func decodeSubmission(value []byte) (domain.GuessSubmission, error) {
	var sub domain.GuessSubmission
	if err := json.Unmarshal(value, &sub); err != nil {
		return domain.GuessSubmission{}, fmt.Errorf("unmarshaling message: %w", err)
	}
	if sub.RoundID <= 0 || sub.PlayerID <= 0 {
		return domain.GuessSubmission{}, errors.New("round_id and player_id are required")
	}
	return sub, nil
}

// processSubmissions submits each guess in order. Rejections by the game are
// logged and dropped; other failures are retried. It returns the number of
// accepted guesses.
func processSubmissions(ctx context.Context, handler GuessHandler, batch []domain.GuessSubmission, cfg *config.KafkaConfig, logger *slog.Logger) int {
	attempts := max(cfg.RetryAttempts, 1)
	accepted := 0
	for _, sub := range batch {
		var err error
		for attempt := 1; attempt <= attempts; attempt++ {
			_, err = handler.SubmitGuess(ctx, sub)
			if err == nil || isRejection(err) {
				break
			}
			if attempt < attempts {
				select {
				case <-ctx.Done():
					return accepted
				case <-time.After(cfg.RetryDelay):
				}
			}
		}

		switch {
		case err == nil:
			accepted++
		case isRejection(err):
			logger.Info("guess rejected",
				"round_id", sub.RoundID,
				"player_id", sub.PlayerID,
				"error", err,
			)
		default:
			logger.Error("failed to submit guess",
				"round_id", sub.RoundID,
				"player_id", sub.PlayerID,
				"error", err,
			)
		}
	}
	return accepted
}

func isRejection(err error) bool {
	return domain.IsValidationError(err) ||
		domain.IsStateError(err) ||
		domain.IsConflictError(err) ||
		domain.IsNotFoundError(err)
}
