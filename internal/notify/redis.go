package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier delivers change notifications over Redis pub/sub. The
// backend publishes to "<prefix><channel>" whenever a collection changes;
// reconnects are go-redis's concern.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// RedisConfig holds Redis notifier settings.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// NewRedisNotifier creates a Redis-backed notifier and verifies the
// connection.
func NewRedisNotifier(cfg RedisConfig, logger *zap.Logger) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisNotifier{
		client: client,
		prefix: cfg.ChannelPrefix,
		logger: logger,
	}, nil
}

// Subscribe subscribes to one change channel.
func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error) {
	pubsub := n.client.Subscribe(ctx, n.prefix+channel)

	// Confirm the subscription before handing out the channel so events
	// published after Subscribe returns are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	events := make(chan Event, 8)
	var once sync.Once
	done := make(chan struct{})

	go func() {
		defer close(events)
		msgs := pubsub.Channel()
		table, filter := parseChannel(channel)
		for {
			select {
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case events <- Event{Channel: channel, Table: table, Filter: filter, At: time.Now()}:
				default:
					// A slow consumer re-fetches on the next event
					// anyway; dropping here is safe.
					n.logger.Debug("dropping change event for slow consumer",
						zap.String("channel", channel))
				}
			case <-done:
				return
			}
		}
	}()

	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return events, unsubscribe, nil
}

// Close closes the underlying Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
