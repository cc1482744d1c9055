package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// Channels consumed by external collaborators.
const (
	ChannelState   = "poly:state"
	ChannelSignals = "poly:signals"
	ChannelTrades  = "poly:trades"
	ChannelErrors  = "poly:errors"
)

// redisPublisher is the go-redis surface the publisher needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher fans engine events out over Redis Pub/Sub. Publishing is fire and
// forget: messages are queued to a dedicated goroutine and dropped, counted,
// when the queue is full. The trading pipeline never blocks on telemetry.
// With no Redis URL configured the publisher is a no-op.
type Publisher struct {
	client redisPublisher
	queue  chan envelope
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type envelope struct {
	channel string
	payload []byte
}

// Config holds telemetry configuration.
type Config struct {
	RedisURL  string // empty disables telemetry
	QueueSize int
	Logger    *zap.Logger
}

// NewPublisher creates the publisher. The Redis connection is verified with a
// short ping so a bad URL fails at startup, not on the first trade.
func NewPublisher(ctx context.Context, cfg *Config) (*Publisher, error) {
	p := &Publisher{
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}

	if cfg.RedisURL == "" {
		cfg.Logger.Info("telemetry-disabled")
		return p, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	p.client = client
	p.queue = make(chan envelope, queueSize)
	return p, nil
}

// Start launches the drain goroutine. No-op when telemetry is disabled.
func (p *Publisher) Start(ctx context.Context) error {
	if p.client == nil {
		return nil
	}

	p.logger.Info("telemetry-starting", zap.Int("queue-size", cap(p.queue)))
	p.wg.Add(1)
	go p.drain(ctx)
	return nil
}

func (p *Publisher) drain(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case env := <-p.queue:
			if err := p.client.Publish(ctx, env.channel, env.payload).Err(); err != nil {
				PublishErrorsTotal.WithLabelValues(env.channel).Inc()
				p.logger.Warn("telemetry-publish-failed",
					zap.String("channel", env.channel),
					zap.Error(err))
				continue
			}
			MessagesPublished.WithLabelValues(env.channel).Inc()
		}
	}
}

// PublishState emits an engine state snapshot.
func (p *Publisher) PublishState(state interface{}) {
	p.publish(ChannelState, state)
}

// PublishSignal emits a trade signal as it is accepted by the engine.
func (p *Publisher) PublishSignal(signal types.TradeSignal) {
	p.publish(ChannelSignals, signal)
}

// PublishTrade emits an execution result.
func (p *Publisher) PublishTrade(result *types.ExecutionResult) {
	type legPayload struct {
		TokenID string      `json:"token_id"`
		Outcome string      `json:"outcome"`
		Status  string      `json:"status"`
		Fill    *types.Fill `json:"fill,omitempty"`
		Error   string      `json:"error,omitempty"`
	}
	payload := struct {
		SignalID   string       `json:"signal_id"`
		Strategy   string       `json:"strategy"`
		Market     string       `json:"market"`
		Mode       string       `json:"mode"`
		Success    bool         `json:"success"`
		ExecutedAt time.Time    `json:"executed_at"`
		Legs       []legPayload `json:"legs"`
		Error      string       `json:"error,omitempty"`
	}{
		SignalID:   result.SignalID,
		Strategy:   result.Strategy,
		Market:     result.Market,
		Mode:       result.Mode,
		Success:    result.Success,
		ExecutedAt: result.ExecutedAt,
	}
	for _, leg := range result.Legs {
		lp := legPayload{
			TokenID: leg.Intent.TokenID,
			Outcome: leg.Intent.Outcome,
			Status:  string(leg.Status),
			Fill:    leg.Fill,
		}
		if leg.Err != nil {
			lp.Error = leg.Err.Error()
		}
		payload.Legs = append(payload.Legs, lp)
	}
	if result.Err != nil {
		payload.Error = result.Err.Error()
	}
	p.publish(ChannelTrades, payload)

	if result.Err != nil {
		p.PublishError(result.Err)
	}
}

// PublishError emits a classified error.
func (p *Publisher) PublishError(err error) {
	p.publish(ChannelErrors, struct {
		Class   string    `json:"class"`
		Message string    `json:"message"`
		At      time.Time `json:"at"`
	}{
		Class:   string(types.Classify(err)),
		Message: err.Error(),
		At:      time.Now(),
	})
}

// publish marshals and enqueues without blocking. A full queue drops the
// message and bumps the drop counter.
func (p *Publisher) publish(channel string, payload interface{}) {
	if p.client == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("telemetry-marshal-failed",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}

	select {
	case p.queue <- envelope{channel: channel, payload: data}:
	default:
		MessagesDropped.WithLabelValues(channel).Inc()
	}
}

// Close stops the drain goroutine and closes the connection. Queued messages
// not yet sent are discarded.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		if p.client != nil {
			err = p.client.Close()
			p.logger.Info("telemetry-closed")
		}
	})
	return err
}
