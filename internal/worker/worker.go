package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-node-prompt/internal/config"
	"github.com/aescanero/dago-node-prompt/internal/renderer"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Renderer renders prompt requests
type Renderer interface {
	Render(ctx context.Context, req *renderer.Request) (*renderer.Result, error)
}

// Worker consumes render requests from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	renderer      Renderer
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	r Renderer,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		renderer:      r,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// ErrorStream is the stream failed requests are reported to
func (w *Worker) ErrorStream() string {
	return w.resultStream + ".errors"
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting prompt worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	go w.processWork()

	w.logger.Info("prompt worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the in-flight message, up to timeout
func (w *Worker) Stop(timeout time.Duration) error {
	w.logger.Info("stopping prompt worker", zap.String("worker_id", w.id))

	w.cancel()

	select {
	case <-w.done:
	case <-time.After(timeout):
		return fmt.Errorf("worker %s did not stop within %s", w.id, timeout)
	}

	w.logger.Info("prompt worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads the stream until the worker is stopped
func (w *Worker) processWork() {
	defer close(w.done)
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.streamKey, ">"},
				Count:    1,
				Block:    w.config.BlockTime,
			}).Result()

			if err != nil {
				if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
					continue
				}
				w.logger.Error("failed to read from stream",
					zap.Error(err),
				)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// handleMessage renders one request, publishes the outcome and acks the message
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing render request",
		zap.String("message_id", messageID),
	)

	request, err := parseRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse render request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(&renderer.Request{RequestID: messageID}, err)
		w.acknowledgeMessage(messageID)
		return
	}
	if request.RequestID == "" {
		request.RequestID = messageID
	}

	result, err := w.renderer.Render(w.ctx, request)
	if err != nil {
		w.logger.Error("failed to render prompt",
			zap.String("message_id", messageID),
			zap.String("request_id", request.RequestID),
			zap.String("template", request.Template),
			zap.Error(err),
		)
		w.publishError(request, err)
	} else if err := w.publishResult(result); err != nil {
		w.logger.Error("failed to publish result",
			zap.String("request_id", request.RequestID),
			zap.Error(err),
		)
	}

	w.acknowledgeMessage(messageID)
}

// parseRequest decodes the JSON request carried in the message's data field
func parseRequest(values map[string]interface{}) (*renderer.Request, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request renderer.Request
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render request: %w", err)
	}

	return &request, nil
}

// resultEvent is the payload published for a rendered prompt
func resultEvent(result *renderer.Result, now time.Time) map[string]interface{} {
	event := map[string]interface{}{
		"request_id": result.RequestID,
		"template":   result.Template,
		"prompt":     result.Prompt,
		"timestamp":  now.UTC(),
	}
	if result.Completion != "" {
		event["completion"] = result.Completion
		event["model"] = result.Model
	}
	return event
}

// errorEvent is the payload published for a failed request
func errorEvent(request *renderer.Request, err error, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"request_id": request.RequestID,
		"template":   request.Template,
		"error":      err.Error(),
		"kind":       renderer.ErrorKind(err),
		"timestamp":  now.UTC(),
	}
}

// publishResult publishes the rendered prompt
func (w *Worker) publishResult(result *renderer.Result) error {
	if err := w.publish(w.resultStream, resultEvent(result, time.Now())); err != nil {
		return err
	}

	w.logger.Info("published rendered prompt",
		zap.String("request_id", result.RequestID),
		zap.String("template", result.Template),
	)
	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(request *renderer.Request, err error) {
	if publishErr := w.publish(w.ErrorStream(), errorEvent(request, err, time.Now())); publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

func (w *Worker) publish(stream string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// a stopped worker still reports the message it was handling
	_, err = w.redisClient.XAdd(context.Background(), &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	return nil
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(context.Background(), w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
