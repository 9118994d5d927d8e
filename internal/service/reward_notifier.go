package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/observability"
)

// Reward event types pushed to live clients.
const (
	EventRewardUnlocked      = "reward.unlocked"
	EventLevelUp             = "level.up"
	EventSubmissionFinalized = "submission.finalized"
)

const (
	rewardBufferSize = 16
	// Events seen on any transport within this window are not delivered again.
	rewardDedupeWindow = 2 * time.Minute
	rewardDedupePrune  = 256
)

// RewardNotifier fans reward events out to websocket subscribers on every node.
type RewardNotifier interface {
	Publish(ctx context.Context, event dto.RewardEvent)
	Subscribe(userID uint) (<-chan dto.RewardEvent, func())
	Start(ctx context.Context)
}

type rewardNotifier struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	transports   []rewardTransport
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *rewardBroker
	nodeID       string
	now          func() time.Time

	seenMu sync.Mutex
	seen   map[string]time.Time
}

type rewardEnvelope struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Event  dto.RewardEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

// rewardTransport carries encoded envelopes to the other nodes.
type rewardTransport interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
}

type redisRewardTransport struct {
	client  *redis.Client
	channel string
}

func (t redisRewardTransport) Name() string { return "redis" }

func (t redisRewardTransport) Publish(ctx context.Context, payload []byte) error {
	return t.client.Publish(ctx, t.channel, payload).Err()
}

type natsRewardTransport struct {
	conn    *nats.Conn
	subject string
}

func (t natsRewardTransport) Name() string { return "nats" }

func (t natsRewardTransport) Publish(_ context.Context, payload []byte) error {
	return t.conn.Publish(t.subject, payload)
}

type rewardBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.RewardEvent]struct{}
}

// NewRewardNotifier constructs the notifier. Redis and NATS are optional.
func NewRewardNotifier(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RewardNotifier {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":rewards"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".rewards"
	}

	var transports []rewardTransport
	if redisClient != nil && channel != "" {
		transports = append(transports, redisRewardTransport{client: redisClient, channel: channel})
	}
	if natsConn != nil && subject != "" {
		transports = append(transports, natsRewardTransport{conn: natsConn, subject: subject})
	}

	return &rewardNotifier{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		transports:   transports,
		logger:       logger.With().Str("component", "reward_notifier").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/levelup-api/internal/service/rewards"),
		broker: &rewardBroker{
			subscribers: make(map[uint]map[chan dto.RewardEvent]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (n *rewardNotifier) Start(ctx context.Context) {
	if n.redis != nil && n.redisChannel != "" {
		go n.consumeRedis(ctx)
	}
	if n.nats != nil && n.natsSubject != "" {
		go n.consumeNATS(ctx)
	}
}

func (n *rewardNotifier) Publish(ctx context.Context, event dto.RewardEvent) {
	if event.UserID == 0 || event.Type == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = n.now().UTC()
	}

	spanCtx, span := n.tracer.Start(ctx, "rewards.publish", trace.WithAttributes(
		attribute.Int64("reward.user_id", int64(event.UserID)),
		attribute.String("reward.type", event.Type),
	))
	defer span.End()

	n.deliver(event, "local")
	if err := n.publish(spanCtx, event); err != nil {
		span.RecordError(err)
	}
}

func (n *rewardNotifier) Subscribe(userID uint) (<-chan dto.RewardEvent, func()) {
	channel := make(chan dto.RewardEvent, rewardBufferSize)

	n.broker.subscribe(userID, channel)
	observability.RewardStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			n.broker.unsubscribe(userID, channel)
			observability.RewardStreamClients().Dec()
		})
	}

	return channel, cleanup
}

func (n *rewardNotifier) deliver(event dto.RewardEvent, source string) {
	observability.RewardEvents().WithLabelValues(source).Inc()
	n.broker.broadcast(event.UserID, event)
}

// publish sends the envelope on every transport. A failing transport does not stop the others.
func (n *rewardNotifier) publish(ctx context.Context, event dto.RewardEvent) error {
	if len(n.transports) == 0 {
		return nil
	}

	envelope := rewardEnvelope{
		ID:     uuid.NewString(),
		Source: n.nodeID,
		Event:  event,
		SentAt: n.now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	var errs []error
	for _, transport := range n.transports {
		if err := transport.Publish(ctx, payload); err != nil {
			n.logger.Warn().Err(err).Str("transport", transport.Name()).Msg("reward transport publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", transport.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (n *rewardNotifier) consumeRedis(ctx context.Context) {
	pubsub := n.redis.Subscribe(ctx, n.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			n.logger.Error().Err(err).Msg("reward redis subscription closed")
			return
		}
		n.handleEvent([]byte(msg.Payload), "redis")
	}
}

func (n *rewardNotifier) consumeNATS(ctx context.Context) {
	// Each node needs every event for its own sockets, so the queue group is per node.
	sub, err := n.nats.QueueSubscribe(n.natsSubject, "levelup-rewards-"+n.nodeID, func(msg *nats.Msg) {
		n.handleEvent(msg.Data, "nats")
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to subscribe to nats rewards subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			n.logger.Warn().Err(err).Msg("failed to drain rewards nats subscription")
		}
	}()
}

func (n *rewardNotifier) handleEvent(payload []byte, source string) {
	var envelope rewardEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		n.logger.Warn().Err(err).Msg("invalid reward event payload")
		return
	}

	if envelope.Source == n.nodeID {
		return
	}
	if !n.firstSighting(envelope.ID) {
		return
	}

	n.deliver(envelope.Event, source)
}

// firstSighting reports whether the envelope id has not been delivered yet.
func (n *rewardNotifier) firstSighting(id string) bool {
	if id == "" {
		return true
	}

	now := n.now()
	n.seenMu.Lock()
	defer n.seenMu.Unlock()

	if seenAt, ok := n.seen[id]; ok && now.Sub(seenAt) < rewardDedupeWindow {
		return false
	}
	if len(n.seen) >= rewardDedupePrune {
		for key, seenAt := range n.seen {
			if now.Sub(seenAt) >= rewardDedupeWindow {
				delete(n.seen, key)
			}
		}
	}
	n.seen[id] = now
	return true
}

func (b *rewardBroker) subscribe(userID uint, ch chan dto.RewardEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.RewardEvent]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *rewardBroker) unsubscribe(userID uint, ch chan dto.RewardEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		if _, exists := subscribers[ch]; !exists {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *rewardBroker) broadcast(userID uint, event dto.RewardEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}
