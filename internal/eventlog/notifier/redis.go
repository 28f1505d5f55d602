package notifier

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"go.uber.org/zap"
)

// RedisNotifier publishes append signals on a Redis channel so consumers in
// other replicas wake up. Local subscribers are served through a Hub fed by
// the channel subscription.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	local   *Hub
	log     *zap.Logger
	pubsub  *redis.PubSub
	done    chan struct{}
}

func NewRedisNotifier(client *redis.Client, channel string, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		local:   NewHub(),
		log:     log.Named("eventlog.notifier"),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the channel and relays messages until Close.
func (n *RedisNotifier) Start(ctx context.Context) error {
	n.pubsub = n.client.Subscribe(ctx, n.channel)
	if _, err := n.pubsub.Receive(ctx); err != nil {
		_ = n.pubsub.Close()
		return err
	}

	go func() {
		defer close(n.done)
		for msg := range n.pubsub.Channel() {
			position, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				n.log.Warn("ignoring malformed append signal", zap.String("payload", msg.Payload))
				continue
			}
			n.local.Notify(ctx, position)
		}
	}()
	return nil
}

func (n *RedisNotifier) Close() error {
	if n.pubsub == nil {
		return nil
	}
	err := n.pubsub.Close()
	<-n.done
	return err
}

// Notify publishes the position; local subscribers are also woken directly
// so a Redis outage only degrades cross-replica latency.
func (n *RedisNotifier) Notify(ctx context.Context, position int64) {
	n.local.Notify(ctx, position)
	if err := n.client.Publish(ctx, n.channel, strconv.FormatInt(position, 10)).Err(); err != nil {
		n.log.Warn("publish append signal failed", zap.Error(err))
	}
}

func (n *RedisNotifier) Subscribe() (<-chan int64, func()) {
	return n.local.Subscribe()
}

var _ domain.Notifier = (*RedisNotifier)(nil)
